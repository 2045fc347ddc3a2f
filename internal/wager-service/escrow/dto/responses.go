package dto

// BalanceResponse é o saldo disponível de um membro no grupo.
type BalanceResponse struct {
	UserID  string `json:"user_id"`
	GroupID string `json:"group_id"`
	Balance int64  `json:"balance"`
}

// ErrorResponse é o corpo de erro do coordenador de custódia.
type ErrorResponse struct {
	Error string `json:"error"`
}
