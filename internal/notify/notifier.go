package notify

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// Notifier delivers customer-facing billing notifications. Delivery is
// fire-and-forget: billing writes never depend on its success.
type Notifier interface {
	Notify(ctx context.Context, customerID snowflake.ID, eventType string, payload map[string]any)
}

// LogNotifier is the default delivery adapter. A real deployment swaps in an
// email/SMS gateway behind the same interface.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) Notifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) Notify(_ context.Context, customerID snowflake.ID, eventType string, payload map[string]any) {
	n.log.Info("notification",
		zap.String("customer_id", customerID.String()),
		zap.String("event_type", eventType),
		zap.Any("payload", payload),
	)
}
