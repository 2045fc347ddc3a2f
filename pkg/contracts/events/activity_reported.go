package events

import "time"

// ActivityReported é o evento emitido pelo pipeline de ingestão de treinos.
// EventID é estável por treino: reentregas carregam o mesmo id.
type ActivityReported struct {
	EventID        string    `json:"event_id"`
	UserID         string    `json:"user_id"`
	WorkoutType    string    `json:"workout_type"` // "running" | "walking" | "cycling" | ...
	StartedAt      time.Time `json:"started_at"`
	DurationSecs   int64     `json:"duration_secs"`
	DistanceMeters float64   `json:"distance_meters,omitempty"`
	TsUnixMs       int64     `json:"ts_unix_ms"`
}
