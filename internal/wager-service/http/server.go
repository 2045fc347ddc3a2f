package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fitstake/p2p-wager-platform/internal/wager-service/cache"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/dto"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/engine"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/repo"
)

// Lifecycle é o recorte do gerenciador de ciclo de vida usado pelos handlers
// de mutação.
type Lifecycle interface {
	Create(ctx context.Context, in engine.CreateInput) (*repo.Bet, error)
	Accept(ctx context.Context, betID, userID string) (*repo.Bet, error)
	Decline(ctx context.Context, betID, userID string) (*repo.Bet, error)
	Arbitrate(ctx context.Context, betID, arbiterID, winnerID string) (*repo.Bet, error)
}

// Store é o recorte de leitura do repositório de apostas.
type Store interface {
	GetBet(ctx context.Context, betID string) (*repo.Bet, error)
	ListBetsForGroup(ctx context.Context, groupID string) ([]*repo.Bet, error)
	ListActiveBetsForUser(ctx context.Context, userID string) ([]*repo.Bet, error)
	ListPendingArbitration(ctx context.Context, arbiterID string) ([]*repo.Bet, error)
	GetProgressPair(ctx context.Context, betID string) (map[string]repo.ProgressRecord, error)
	GetProfiles(ctx context.Context, userIDs []string) (map[string]repo.Profile, error)
}

// Snapshots guarda projeções de listagem com TTL curto.
type Snapshots interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Invalidate(ctx context.Context, keys ...string)
}

// Server expõe a API REST de apostas P2P. Toda mutação passa pelo gerenciador
// de ciclo de vida; as listagens leem do Postgres com snapshot em Redis.
type Server struct {
	log       *zap.Logger
	lifecycle Lifecycle
	repo      Store
	cache     Snapshots
}

func NewServer(log *zap.Logger, lc Lifecycle, r Store, c Snapshots) *Server {
	return &Server{log: log, lifecycle: lc, repo: r, cache: c}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/wagers", s.createWager)
	r.Get("/v1/wagers/{id}", s.getWager)
	r.Post("/v1/wagers/{id}/accept", s.acceptWager)
	r.Post("/v1/wagers/{id}/decline", s.declineWager)
	r.Post("/v1/wagers/{id}/arbitrate", s.arbitrateWager)
	r.Get("/v1/groups/{id}/wagers", s.listGroupWagers)
	r.Get("/v1/users/{id}/wagers/active", s.listUserActiveWagers)
	r.Get("/v1/arbiters/{id}/pending", s.listPendingArbitration)
	return r
}

func (s *Server) createWager(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.ChallengerID == "" || req.OpponentID == "" || req.GroupID == "" {
		writeError(w, http.StatusBadRequest, "challenger_id, opponent_id and group_id are required")
		return
	}
	if req.TargetValue <= 0 {
		writeError(w, http.StatusBadRequest, "target_value must be positive")
		return
	}

	b, err := s.lifecycle.Create(r.Context(), engine.CreateInput{
		ChallengerID:  req.ChallengerID,
		OpponentID:    req.OpponentID,
		GroupID:       req.GroupID,
		ConditionType: repo.ConditionType(req.ConditionType),
		StakeAmount:   req.StakeAmount,
		DurationDays:  req.DurationDays,
		Conditions: repo.Conditions{
			TargetValue:       req.TargetValue,
			Unit:              req.Unit,
			Description:       req.Description,
			ReferenceDistance: req.ReferenceDistance,
		},
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.cache.Invalidate(r.Context(), cache.KeyGroup(b.GroupID))
	writeJSON(w, http.StatusCreated, dto.NewWagerView(b))
}

func (s *Server) getWager(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b, err := s.repo.GetBet(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	view := dto.NewWagerView(b)
	view.Progress = s.progressViews(r, b)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) acceptWager(w http.ResponseWriter, r *http.Request) {
	s.action(w, r, s.lifecycle.Accept)
}

func (s *Server) declineWager(w http.ResponseWriter, r *http.Request) {
	s.action(w, r, s.lifecycle.Decline)
}

func (s *Server) action(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, betID, userID string) (*repo.Bet, error)) {

	id := chi.URLParam(r, "id")
	var req dto.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}

	b, err := fn(r.Context(), id, req.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.cache.Invalidate(r.Context(),
		cache.KeyGroup(b.GroupID),
		cache.KeyUser(b.ChallengerID),
		cache.KeyUser(b.OpponentID),
	)
	writeJSON(w, http.StatusOK, dto.NewWagerView(b))
}

func (s *Server) arbitrateWager(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dto.ArbitrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.ArbiterID == "" || req.WinnerID == "" {
		writeError(w, http.StatusBadRequest, "arbiter_id and winner_id required")
		return
	}

	b, err := s.lifecycle.Arbitrate(r.Context(), id, req.ArbiterID, req.WinnerID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.cache.Invalidate(r.Context(),
		cache.KeyGroup(b.GroupID),
		cache.KeyUser(b.ChallengerID),
		cache.KeyUser(b.OpponentID),
	)

	winnerAmount, groupFee := engine.Payout(b.StakeAmount)
	writeJSON(w, http.StatusOK, dto.SettlementView{
		BetID:        b.ID,
		WinnerID:     b.WinnerID,
		Pot:          2 * b.StakeAmount,
		WinnerAmount: winnerAmount,
		GroupFee:     groupFee,
	})
}

func (s *Server) listGroupWagers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var cached []dto.WagerView
	if ok, _ := s.cache.Get(r.Context(), cache.KeyGroup(id), &cached); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	bets, err := s.repo.ListBetsForGroup(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	// perfis de exibição de todos os participantes numa busca só
	ids := make([]string, 0, 2*len(bets))
	for _, b := range bets {
		ids = append(ids, b.ChallengerID, b.OpponentID)
	}
	profiles, err := s.repo.GetProfiles(r.Context(), ids)
	if err != nil {
		profiles = nil
	}

	views := make([]dto.WagerView, 0, len(bets))
	for _, b := range bets {
		v := dto.NewWagerView(b)
		v.Participants = participantViews(b, profiles)
		if b.Status == repo.StatusActive {
			v.Progress = s.progressViews(r, b)
		}
		views = append(views, v)
	}
	_ = s.cache.Set(r.Context(), cache.KeyGroup(id), views)
	writeJSON(w, http.StatusOK, views)
}

func participantViews(b *repo.Bet, profiles map[string]repo.Profile) []dto.ParticipantView {
	out := make([]dto.ParticipantView, 0, 2)
	for _, uid := range []string{b.ChallengerID, b.OpponentID} {
		pv := dto.ParticipantView{UserID: uid}
		if p, ok := profiles[uid]; ok {
			pv.Username = p.Username
			pv.AvatarURL = p.AvatarURL
		}
		out = append(out, pv)
	}
	return out
}

func (s *Server) listUserActiveWagers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var cached []dto.WagerView
	if ok, _ := s.cache.Get(r.Context(), cache.KeyUser(id), &cached); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	bets, err := s.repo.ListActiveBetsForUser(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	views := make([]dto.WagerView, 0, len(bets))
	for _, b := range bets {
		v := dto.NewWagerView(b)
		v.Progress = s.progressViews(r, b)
		views = append(views, v)
	}
	_ = s.cache.Set(r.Context(), cache.KeyUser(id), views)
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) listPendingArbitration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	bets, err := s.repo.ListPendingArbitration(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	views := make([]dto.WagerView, 0, len(bets))
	for _, b := range bets {
		v := dto.NewWagerView(b)
		v.Progress = s.progressViews(r, b)
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

// progressViews monta os placares dos dois participantes, enriquecidos com o
// username do perfil quando disponível. Falhas aqui degradam a resposta, não
// a derrubam.
func (s *Server) progressViews(r *http.Request, b *repo.Bet) []dto.ProgressView {
	recs, err := s.repo.GetProgressPair(r.Context(), b.ID)
	if err != nil {
		s.log.Warn("progress lookup failed", zap.String("betId", b.ID), zap.Error(err))
		return nil
	}

	profiles, err := s.repo.GetProfiles(r.Context(), []string{b.ChallengerID, b.OpponentID})
	if err != nil {
		profiles = nil
	}

	views := make([]dto.ProgressView, 0, 2)
	for _, uid := range []string{b.ChallengerID, b.OpponentID} {
		rec, ok := recs[uid]
		if !ok {
			rec = repo.ProgressRecord{BetID: b.ID, UserID: uid}
		}
		v := dto.ProgressView{
			UserID:      uid,
			Cumulative:  rec.Cumulative,
			GoalReached: rec.GoalReached,
			EventCount:  rec.EventCount,
			UpdatedAt:   rec.UpdatedAt,
		}
		if p, ok := profiles[uid]; ok {
			v.Username = p.Username
		}
		views = append(views, v)
	}
	return views
}

// writeDomainError traduz a taxonomia de erros do domínio para status HTTP.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repo.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, repo.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, repo.ErrAcceptExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, repo.ErrDuplicateBet),
		errors.Is(err, repo.ErrNotPending),
		errors.Is(err, repo.ErrNotComplete),
		errors.Is(err, repo.ErrArbitrationNotPending):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repo.ErrSelfChallenge),
		errors.Is(err, repo.ErrInvalidDuration),
		errors.Is(err, repo.ErrInvalidStake),
		errors.Is(err, repo.ErrInvalidCondition),
		errors.Is(err, repo.ErrInvalidWinner):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repo.ErrEscrowUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}
