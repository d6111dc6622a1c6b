package operator

import (
	"context"

	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/pkg/logger"
)

// NoopNotifier logs what would have been sent. Used when neither the bot
// token nor the SMTP fallback is configured; escalations still flip session
// state, the operator just has to find them in the admin views.
type NoopNotifier struct {
	log logger.ILogger
}

var _ Notifier = &NoopNotifier{}

func NewNoopNotifier(log logger.ILogger) *NoopNotifier {
	return &NoopNotifier{log: log}
}

func (n *NoopNotifier) Notify(ctx context.Context, notification Notification) error {
	n.log.Warn("operator", "operator channel not configured, notification dropped", map[string]interface{}{
		"session_id": notification.SessionId,
		"kind":       notification.Kind,
	})
	return nil
}
