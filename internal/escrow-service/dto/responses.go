package dto

type WalletResponse struct {
	UserID   string `json:"user_id"`
	GroupID  string `json:"group_id"`
	WalletID string `json:"wallet_id"`
	Balance  int64  `json:"balance"`
}

type BalanceResponse struct {
	UserID  string `json:"user_id"`
	GroupID string `json:"group_id"`
	Balance int64  `json:"balance"`
}

type HeldResponse struct {
	BetID string `json:"bet_id"`
	Held  int64  `json:"held"`
}
