package dto

type DepositRequest struct {
	GroupID     string `json:"group_id"`
	UserID      string `json:"user_id"`
	Amount      int64  `json:"amount"`
	ExternalRef string `json:"external_ref,omitempty"` // opcional p/ rastreio no ledger
}

type LockRequest struct {
	BetID   string `json:"bet_id"`
	UserID  string `json:"user_id"`
	GroupID string `json:"group_id"`
	Amount  int64  `json:"amount"`
}

type RefundRequest struct {
	BetID   string `json:"bet_id"`
	UserID  string `json:"user_id"`
	GroupID string `json:"group_id"`
	Amount  int64  `json:"amount"`
}

type DistributeRequest struct {
	BetID        string `json:"bet_id"`
	WinnerID     string `json:"winner_id"`
	WinnerAmount int64  `json:"winner_amount"`
	GroupFee     int64  `json:"group_fee"`
	GroupID      string `json:"group_id"`
}
