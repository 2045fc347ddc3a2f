package progress

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fitstake/p2p-wager-platform/internal/wager-service/repo"
)

// TrackerRepo é o recorte de persistência usado pelo rastreador de progresso.
type TrackerRepo interface {
	UpsertActivity(ctx context.Context, betID string, act repo.Activity) error
	ListActivities(ctx context.Context, betID, userID string) ([]repo.Activity, error)
	SaveProgress(ctx context.Context, rec repo.ProgressRecord) error
}

// Tracker aplica treinos reportados ao placar de uma aposta.
// Único escritor dos ProgressRecords; o detector de conclusão apenas lê.
type Tracker struct {
	log  *zap.Logger
	repo TrackerRepo
	now  func() time.Time
}

func NewTracker(log *zap.Logger, r TrackerRepo) *Tracker {
	return &Tracker{log: log, repo: r, now: time.Now}
}

// Apply registra um treino para um participante e recomputa o placar.
// O acumulado sai sempre da reavaliação do razão completo de eventos, então a
// reentrega de um event_id já registrado deixa o valor inalterado.
func (t *Tracker) Apply(ctx context.Context, b *repo.Bet, act repo.Activity) (*repo.ProgressRecord, error) {
	if b.Status != repo.StatusActive {
		return nil, nil // placar congela fora de ACTIVE
	}
	if !b.Participant(act.UserID) {
		return nil, nil
	}
	if !Relevant(b.ConditionType, act) {
		return nil, nil
	}
	if b.StartDate != nil && act.StartedAt.Before(*b.StartDate) {
		return nil, nil // treino anterior ao início da aposta
	}
	if b.EndDate != nil && act.StartedAt.After(*b.EndDate) {
		return nil, nil
	}

	if err := t.repo.UpsertActivity(ctx, b.ID, act); err != nil {
		return nil, fmt.Errorf("upsert activity: %w", err)
	}

	acts, err := t.repo.ListActivities(ctx, b.ID, act.UserID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	res := Evaluate(b, acts, t.now())
	rec := repo.ProgressRecord{
		BetID:       b.ID,
		UserID:      act.UserID,
		Cumulative:  res.Cumulative,
		GoalReached: res.GoalReached,
		EventCount:  len(res.Contributions),
		UpdatedAt:   t.now(),
	}
	if err := t.repo.SaveProgress(ctx, rec); err != nil {
		return nil, fmt.Errorf("save progress: %w", err)
	}

	t.log.Debug("progress updated",
		zap.String("betId", b.ID),
		zap.String("userId", act.UserID),
		zap.Float64("cumulative", rec.Cumulative),
		zap.Bool("goalReached", rec.GoalReached),
	)
	return &rec, nil
}
