package repo

import "time"

// Status é o estado do ciclo de vida de uma aposta P2P.
// Transições são unidirecionais; nenhum estado é revisitado.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusDeclined  Status = "DECLINED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// Open indica se a aposta ainda ocupa a "vaga" do par (challenger, opponent) no grupo.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusAccepted || s == StatusActive
}

// ArbitrationStatus só avança: NOT_NEEDED -> PENDING -> IN_PROGRESS -> COMPLETED.
type ArbitrationStatus string

const (
	ArbitrationNotNeeded  ArbitrationStatus = "NOT_NEEDED"
	ArbitrationPending    ArbitrationStatus = "PENDING"
	ArbitrationInProgress ArbitrationStatus = "IN_PROGRESS"
	ArbitrationCompleted  ArbitrationStatus = "COMPLETED"
)

// ConditionType determina o algoritmo de pontuação da aposta.
type ConditionType string

const (
	ConditionDistanceGoal ConditionType = "distance_goal"
	ConditionDurationGoal ConditionType = "duration_goal"
	ConditionStreakDays   ConditionType = "streak_days"
	ConditionFastestSplit ConditionType = "fastest_split"
)

func (t ConditionType) Valid() bool {
	switch t {
	case ConditionDistanceGoal, ConditionDurationGoal, ConditionStreakDays, ConditionFastestSplit:
		return true
	}
	return false
}

func (t ConditionType) DisplayName() string {
	switch t {
	case ConditionDistanceGoal:
		return "Distance Goal"
	case ConditionDurationGoal:
		return "Duration Goal"
	case ConditionStreakDays:
		return "Streak Challenge"
	case ConditionFastestSplit:
		return "Fastest Split"
	}
	return string(t)
}

// Tiers fixos de stake, em créditos custodiais. Valores arbitrários são rejeitados.
const (
	StakeLow    int64 = 1000
	StakeMedium int64 = 5000
	StakeHigh   int64 = 10000
)

func ValidStake(amount int64) bool {
	return amount == StakeLow || amount == StakeMedium || amount == StakeHigh
}

// Conditions parametriza a condição da aposta.
// TargetValue: meta (distância, minutos, dias ou pace alvo em seg/km).
// ReferenceDistance: só para fastest_split — distância de referência em metros;
// eventos fora de ±5% dela não pontuam.
type Conditions struct {
	TargetValue       float64 `json:"target_value"`
	Unit              string  `json:"unit"` // "km" | "mi" | "min" | "days" | "sec_per_km"
	Description       string  `json:"description,omitempty"`
	ReferenceDistance float64 `json:"reference_distance,omitempty"`
}

// Bet é o modelo persistido no Postgres.
// Identidade e parâmetros são imutáveis após a criação; status, arbitration_status
// e winner_id só mudam via CAS no repositório.
type Bet struct {
	ID           string
	ChallengerID string
	OpponentID   string
	GroupID      string

	ConditionType ConditionType
	StakeAmount   int64
	Conditions    Conditions

	CreatedAt      time.Time
	AcceptDeadline time.Time
	DurationDays   int
	StartDate      *time.Time // definido no accept
	EndDate        *time.Time

	Status            Status
	ArbitrationStatus ArbitrationStatus
	WinnerID          string // vazio até a arbitragem concluir

	UpdatedAt time.Time
}

// Participant informa se userID é uma das partes da aposta.
func (b *Bet) Participant(userID string) bool {
	return userID == b.ChallengerID || userID == b.OpponentID
}

// Activity é um treino reportado, persistido por (bet, participante, event_id).
// Reentrega do mesmo event_id sobrescreve o registro anterior.
type Activity struct {
	EventID        string
	UserID         string
	WorkoutType    string
	StartedAt      time.Time
	DurationSecs   int64
	DistanceMeters float64
}

// ProgressRecord é o placar acumulado de um participante em uma aposta.
// Escrito apenas pelo caminho de avaliação de progresso; congelado quando a
// aposta sai de ACTIVE.
type ProgressRecord struct {
	BetID       string
	UserID      string
	Cumulative  float64
	GoalReached bool
	EventCount  int
	UpdatedAt   time.Time
}

// Profile é o perfil de exibição de um usuário (fonte externa, espelhado localmente).
type Profile struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Group é o grupo dono da aposta; o árbitro é o capitão designado.
type Group struct {
	ID        string
	Name      string
	ArbiterID string
}
