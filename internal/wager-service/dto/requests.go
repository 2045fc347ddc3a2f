package dto

// CreateWagerRequest abre um desafio entre dois membros do grupo.
type CreateWagerRequest struct {
	ChallengerID  string  `json:"challenger_id"`
	OpponentID    string  `json:"opponent_id"`
	GroupID       string  `json:"group_id"`
	ConditionType string  `json:"condition_type"`
	StakeAmount   int64   `json:"stake_amount"`
	DurationDays  int     `json:"duration_days"`
	TargetValue   float64 `json:"target_value"`
	Unit          string  `json:"unit"`
	Description   string  `json:"description,omitempty"`
	// Só para fastest_split: distância de referência em metros.
	ReferenceDistance float64 `json:"reference_distance,omitempty"`
}

// ActionRequest identifica quem está agindo sobre a aposta (accept/decline).
type ActionRequest struct {
	UserID string `json:"user_id"`
}

// ArbitrateRequest registra a decisão do árbitro do grupo.
type ArbitrateRequest struct {
	ArbiterID string `json:"arbiter_id"`
	WinnerID  string `json:"winner_id"`
}
