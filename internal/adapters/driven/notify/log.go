// Package notify delivers operator and customer notifications.
package notify

import (
	"context"
	"log/slog"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// Ensure LogNotifier implements the interface.
var _ driven.Notifier = (*LogNotifier)(nil)

// LogNotifier writes notifications to the log. Used when no Pub/Sub topic is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log notifier
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the notification at warn level
func (n *LogNotifier) Notify(ctx context.Context, notification *domain.Notification) error {
	n.logger.WarnContext(ctx, "notification",
		"notification_id", notification.ID,
		"kind", notification.Kind,
		"account_id", notification.AccountID,
		"webhook_url", notification.WebhookURL,
		"reason", notification.Reason,
	)
	return nil
}
