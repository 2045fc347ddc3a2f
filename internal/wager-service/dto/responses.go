package dto

import (
	"time"

	"github.com/fitstake/p2p-wager-platform/internal/wager-service/repo"
)

// WagerView é a projeção de leitura de uma aposta.
type WagerView struct {
	ID           string `json:"id"`
	ChallengerID string `json:"challenger_id"`
	OpponentID   string `json:"opponent_id"`
	GroupID      string `json:"group_id"`

	ConditionType string  `json:"condition_type"`
	ConditionName string  `json:"condition_name"`
	StakeAmount   int64   `json:"stake_amount"`
	StakeTier     string  `json:"stake_tier"`
	TargetValue   float64 `json:"target_value"`
	Unit          string  `json:"unit"`
	Description   string  `json:"description,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	AcceptDeadline time.Time  `json:"accept_deadline"`
	DurationDays   int        `json:"duration_days"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`

	Status            string `json:"status"`
	ArbitrationStatus string `json:"arbitration_status"`
	WinnerID          string `json:"winner_id,omitempty"`

	Participants []ParticipantView `json:"participants,omitempty"`
	Progress     []ProgressView    `json:"progress,omitempty"`
}

// ParticipantView identifica um participante com seu perfil de exibição.
type ParticipantView struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ProgressView é o placar de um participante na aposta.
type ProgressView struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	Cumulative  float64   `json:"cumulative"`
	GoalReached bool      `json:"goal_reached"`
	EventCount  int       `json:"event_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SettlementView detalha a divisão do pote após a arbitragem.
type SettlementView struct {
	BetID        string `json:"bet_id"`
	WinnerID     string `json:"winner_id"`
	Pot          int64  `json:"pot"`
	WinnerAmount int64  `json:"winner_amount"`
	GroupFee     int64  `json:"group_fee"`
}

// ErrorResponse é o corpo padrão de erro da API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StakeTierName rotula o tier de um valor de stake.
func StakeTierName(amount int64) string {
	switch amount {
	case repo.StakeLow:
		return "low"
	case repo.StakeMedium:
		return "medium"
	case repo.StakeHigh:
		return "high"
	}
	return "custom"
}

// NewWagerView projeta o modelo persistido para a resposta da API.
func NewWagerView(b *repo.Bet) WagerView {
	return WagerView{
		ID:                b.ID,
		ChallengerID:      b.ChallengerID,
		OpponentID:        b.OpponentID,
		GroupID:           b.GroupID,
		ConditionType:     string(b.ConditionType),
		ConditionName:     b.ConditionType.DisplayName(),
		StakeAmount:       b.StakeAmount,
		StakeTier:         StakeTierName(b.StakeAmount),
		TargetValue:       b.Conditions.TargetValue,
		Unit:              b.Conditions.Unit,
		Description:       b.Conditions.Description,
		CreatedAt:         b.CreatedAt,
		AcceptDeadline:    b.AcceptDeadline,
		DurationDays:      b.DurationDays,
		StartDate:         b.StartDate,
		EndDate:           b.EndDate,
		Status:            string(b.Status),
		ArbitrationStatus: string(b.ArbitrationStatus),
		WinnerID:          b.WinnerID,
	}
}
