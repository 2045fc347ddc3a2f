package topics

const (
	// Atividades (treinos reportados pelo pipeline de ingestão)
	ActivityEvents = "activity_events"

	// Notificações de apostas P2P (fire-and-forget)
	WagerNotifications = "wager_notifications"

	// DLQs
	ActivityEventsDLQ = "activity_events_dlq"
)
