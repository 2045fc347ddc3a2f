package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	escrowdto "github.com/fitstake/p2p-wager-platform/internal/wager-service/escrow/dto"
	"github.com/fitstake/p2p-wager-platform/internal/wager-service/repo"
)

// Client é o cliente HTTP do coordenador de custódia. Todas as operações de
// escrita são idempotentes no servidor por (bet, operação), então qualquer
// chamada pode ser repetida após timeout sem risco de dupla movimentação.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

// Lock retém `amount` créditos do participante para a aposta.
func (c *Client) Lock(ctx context.Context, betID, userID, groupID string, amount int64) error {
	return c.post(ctx, "/escrow/lock", escrowdto.LockRequest{
		BetID: betID, UserID: userID, GroupID: groupID, Amount: amount,
	})
}

// Refund devolve um stake retido; no-op no servidor se já devolvido.
func (c *Client) Refund(ctx context.Context, betID, userID, groupID string, amount int64) error {
	return c.post(ctx, "/escrow/refund", escrowdto.RefundRequest{
		BetID: betID, UserID: userID, GroupID: groupID, Amount: amount,
	})
}

// Distribute liquida o pote retido: parcela do vencedor e taxa do grupo.
func (c *Client) Distribute(ctx context.Context, betID, winnerID string, winnerAmount, groupFee int64, groupID string) error {
	return c.post(ctx, "/escrow/distribute", escrowdto.DistributeRequest{
		BetID: betID, WinnerID: winnerID, WinnerAmount: winnerAmount,
		GroupFee: groupFee, GroupID: groupID,
	})
}

// Balance consulta o saldo disponível (fora de custódia) do membro no grupo.
func (c *Client) Balance(ctx context.Context, groupID, userID string) (int64, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/escrow/balance?group_id="+groupID+"&user_id="+userID, nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return 0, fmt.Errorf("escrow balance http %d", res.StatusCode)
	}
	var out escrowdto.BalanceResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusPaymentRequired {
		return repo.ErrInsufficientFunds
	}
	if res.StatusCode >= 300 {
		return fmt.Errorf("escrow %s http %d", path, res.StatusCode)
	}
	return nil
}
