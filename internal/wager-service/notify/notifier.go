package notify

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fitstake/p2p-wager-platform/pkg/contracts/events"
)

// KafkaNotifier publica notificações de ciclo de vida no tópico de
// notificações. Fire-and-forget: falha de publicação é logada e descartada,
// nunca desfaz a transição de estado que a originou.
type KafkaNotifier struct {
	log    *zap.Logger
	writer *kafka.Writer
}

func NewKafkaNotifier(log *zap.Logger, w *kafka.Writer) *KafkaNotifier {
	return &KafkaNotifier{log: log, writer: w}
}

func (n *KafkaNotifier) Notify(ctx context.Context, ev events.WagerNotification) {
	b, _ := json.Marshal(ev)
	msg := kafka.Message{
		Key:   []byte(ev.RecipientUserID),
		Value: b,
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		n.log.Warn("notification publish failed",
			zap.String("kind", ev.Kind),
			zap.String("betId", ev.BetID),
			zap.Error(err),
		)
	}
}

// NopNotifier descarta notificações; usado em ferramentas e testes.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, events.WagerNotification) {}
