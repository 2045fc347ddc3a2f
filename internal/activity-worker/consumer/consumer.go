package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fitstake/p2p-wager-platform/internal/wager-service/repo"
	"github.com/fitstake/p2p-wager-platform/pkg/contracts/events"
)

// Limites de sanidade de um treino reportado. Eventos fora deles vão direto
// para a DLQ sem tocar nos placares.
const (
	maxDurationSecs = 86400
)

// Bets é o recorte de consulta usado para rotear um treino às apostas ativas.
type Bets interface {
	ListActiveBetsForUser(ctx context.Context, userID string) ([]*repo.Bet, error)
}

// Tracker aplica um treino ao placar de uma aposta.
type Tracker interface {
	Apply(ctx context.Context, b *repo.Bet, act repo.Activity) (*repo.ProgressRecord, error)
}

// Detector reavalia a conclusão de uma aposta após o placar mudar.
type Detector interface {
	CheckBet(ctx context.Context, betID string) error
}

// Processor consome eventos de treino do Kafka e os aplica a todas as apostas
// ativas do usuário. Callbacks de métricas podem ser usadas por etapa.
type Processor struct {
	Log      *zap.Logger
	Reader   *kafka.Reader
	DLQ      *kafka.Writer
	Bets     Bets
	Tracker  Tracker
	Detector Detector

	OnConsumed func()       // métricas (counter++)
	OnApplied  func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo.
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.errMetric("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		var ev events.ActivityReported
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			p.Log.Warn("invalid message", zap.Error(err))
			p.errMetric("decode")
			p.toDLQ(ctx, m.Value)
			continue
		}

		if !valid(ev) {
			p.Log.Warn("activity rejected",
				zap.String("eventId", ev.EventID),
				zap.Int64("durationSecs", ev.DurationSecs),
				zap.Float64("distanceMeters", ev.DistanceMeters),
			)
			p.errMetric("validate")
			p.toDLQ(ctx, m.Value)
			continue
		}

		if err := p.processOne(ctx, ev); err != nil {
			p.Log.Error("process activity",
				zap.String("eventId", ev.EventID),
				zap.String("userId", ev.UserID),
				zap.Error(err),
			)
			p.errMetric("apply")
			p.toDLQ(ctx, m.Value)
		}
	}
}

// processOne roteia um treino para todas as apostas ativas do usuário.
// O mesmo evento pode pontuar em várias apostas ao mesmo tempo.
func (p *Processor) processOne(ctx context.Context, ev events.ActivityReported) error {
	bets, err := p.Bets.ListActiveBetsForUser(ctx, ev.UserID)
	if err != nil {
		return err
	}

	act := repo.Activity{
		EventID:        ev.EventID,
		UserID:         ev.UserID,
		WorkoutType:    ev.WorkoutType,
		StartedAt:      ev.StartedAt,
		DurationSecs:   ev.DurationSecs,
		DistanceMeters: ev.DistanceMeters,
	}

	for _, b := range bets {
		rec, err := p.Tracker.Apply(ctx, b, act)
		if err != nil {
			return err
		}
		if rec == nil {
			continue // treino irrelevante para esta aposta
		}
		if p.OnApplied != nil {
			p.OnApplied()
		}
		if err := p.Detector.CheckBet(ctx, b.ID); err != nil {
			p.Log.Warn("completion check failed", zap.String("betId", b.ID), zap.Error(err))
		}
	}
	return nil
}

// valid aplica os limites de sanidade de um evento de treino.
func valid(ev events.ActivityReported) bool {
	if ev.EventID == "" || ev.UserID == "" {
		return false
	}
	if ev.DurationSecs <= 0 || ev.DurationSecs > maxDurationSecs {
		return false
	}
	if ev.DistanceMeters < 0 {
		return false
	}
	return !ev.StartedAt.IsZero()
}

func (p *Processor) toDLQ(ctx context.Context, value []byte) {
	if p.DLQ == nil {
		return
	}
	if err := p.DLQ.WriteMessages(ctx, kafka.Message{Value: value, Time: time.Now()}); err != nil {
		p.Log.Warn("dlq write failed", zap.Error(err))
	}
}

func (p *Processor) errMetric(phase string) {
	if p.OnError != nil {
		p.OnError(phase)
	}
}
