package events

import "time"

// Tipos de notificação emitidos pelo wager-service a cada transição.
const (
	NotifyInvited              = "invited"
	NotifyAccepted             = "accepted"
	NotifyDeclined             = "declined"
	NotifyExpired              = "expired"
	NotifyArbitrationRequested = "arbitration_requested"
	NotifySettled              = "settled"
)

// WagerNotification é publicada no tópico wager_notifications.
// A entrega é melhor-esforço: falha de publicação nunca desfaz a transição.
type WagerNotification struct {
	Kind            string            `json:"kind"`
	BetID           string            `json:"bet_id"`
	RecipientUserID string            `json:"recipient_user_id"`
	Payload         map[string]string `json:"payload,omitempty"`
	Ts              time.Time         `json:"ts"`
}
