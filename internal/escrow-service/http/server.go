package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fitstake/p2p-wager-platform/internal/escrow-service/dto"
	"github.com/fitstake/p2p-wager-platform/internal/escrow-service/repo"
)

// Repo define as operações de custódia usadas pelo handler HTTP.
type Repo interface {
	GetOrCreateWallet(ctx context.Context, groupID, userID string) (walletID string, balance int64, err error)
	Deposit(ctx context.Context, groupID, userID string, amount int64, externalRef string) (walletID string, newBalance int64, err error)
	Balance(ctx context.Context, groupID, userID string) (int64, error)
	Lock(ctx context.Context, betID, groupID, userID string, amount int64) error
	Refund(ctx context.Context, betID, groupID, userID string) error
	Distribute(ctx context.Context, betID, groupID, winnerID string, winnerAmount, groupFee int64) error
	HeldForBet(ctx context.Context, betID string) (int64, error)
}

// Server expõe a API HTTP do coordenador de custódia.
type Server struct {
	log  *zap.Logger
	repo Repo
}

func NewServer(log *zap.Logger, repo Repo) *Server { return &Server{log: log, repo: repo} }

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/escrow/wallet", s.getWallet)      // GET ?group_id=&user_id=
	mux.HandleFunc("/escrow/balance", s.balance)       // GET ?group_id=&user_id=
	mux.HandleFunc("/escrow/deposit", s.deposit)       // POST
	mux.HandleFunc("/escrow/lock", s.lock)             // POST
	mux.HandleFunc("/escrow/refund", s.refund)         // POST
	mux.HandleFunc("/escrow/distribute", s.distribute) // POST
	mux.HandleFunc("/escrow/held", s.held)             // GET ?bet_id=
	return mux
}

// getWallet retorna (ou cria) a carteira do membro no grupo.
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("group_id")
	userID := r.URL.Query().Get("user_id")
	if groupID == "" || userID == "" {
		http.Error(w, "group_id and user_id required", http.StatusBadRequest)
		return
	}
	walletID, bal, err := s.repo.GetOrCreateWallet(r.Context(), groupID, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.WalletResponse{UserID: userID, GroupID: groupID, WalletID: walletID, Balance: bal})
}

// balance retorna o saldo disponível (fora de custódia) do membro.
func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("group_id")
	userID := r.URL.Query().Get("user_id")
	if groupID == "" || userID == "" {
		http.Error(w, "group_id and user_id required", http.StatusBadRequest)
		return
	}
	bal, err := s.repo.Balance(r.Context(), groupID, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.BalanceResponse{UserID: userID, GroupID: groupID, Balance: bal})
}

// deposit credita a carteira do membro.
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.GroupID == "" || req.UserID == "" || req.Amount <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	walletID, bal, err := s.repo.Deposit(r.Context(), req.GroupID, req.UserID, req.Amount, req.ExternalRef)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.WalletResponse{UserID: req.UserID, GroupID: req.GroupID, WalletID: walletID, Balance: bal})
}

// lock retém o stake de um participante para uma aposta.
func (s *Server) lock(w http.ResponseWriter, r *http.Request) {
	var req dto.LockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.BetID == "" || req.GroupID == "" || req.UserID == "" || req.Amount <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := s.repo.Lock(r.Context(), req.BetID, req.GroupID, req.UserID, req.Amount); err != nil {
		s.writeRepoError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"LOCKED"}`))
}

// refund devolve um stake retido.
func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	var req dto.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.BetID == "" || req.GroupID == "" || req.UserID == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := s.repo.Refund(r.Context(), req.BetID, req.GroupID, req.UserID); err != nil {
		s.writeRepoError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"REFUNDED"}`))
}

// distribute liquida o pote: parcela do vencedor + taxa do grupo.
func (s *Server) distribute(w http.ResponseWriter, r *http.Request) {
	var req dto.DistributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.BetID == "" || req.GroupID == "" || req.WinnerID == "" || req.WinnerAmount < 0 || req.GroupFee < 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := s.repo.Distribute(r.Context(), req.BetID, req.GroupID, req.WinnerID, req.WinnerAmount, req.GroupFee); err != nil {
		s.writeRepoError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"SETTLED"}`))
}

// held informa o total ainda retido de uma aposta.
func (s *Server) held(w http.ResponseWriter, r *http.Request) {
	betID := r.URL.Query().Get("bet_id")
	if betID == "" {
		http.Error(w, "bet_id required", http.StatusBadRequest)
		return
	}
	held, err := s.repo.HeldForBet(r.Context(), betID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.HeldResponse{BetID: betID, Held: held})
}

func (s *Server) writeRepoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrInsufficientFunds):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, repo.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, repo.ErrPotMismatch):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.log.Error("escrow operation failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
