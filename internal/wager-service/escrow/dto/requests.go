package dto

// LockRequest retém o stake de um participante para uma aposta.
type LockRequest struct {
	BetID   string `json:"bet_id"`
	UserID  string `json:"user_id"`
	GroupID string `json:"group_id"`
	Amount  int64  `json:"amount"`
}

// RefundRequest devolve um stake retido ao participante.
type RefundRequest struct {
	BetID   string `json:"bet_id"`
	UserID  string `json:"user_id"`
	GroupID string `json:"group_id"`
	Amount  int64  `json:"amount"`
}

// DistributeRequest liquida uma aposta: parcela do vencedor e taxa do grupo.
type DistributeRequest struct {
	BetID        string `json:"bet_id"`
	WinnerID     string `json:"winner_id"`
	WinnerAmount int64  `json:"winner_amount"`
	GroupFee     int64  `json:"group_fee"`
	GroupID      string `json:"group_id"`
}
