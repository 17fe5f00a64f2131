package driven

import (
	"context"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// WebhookSender posts signed bodies to customer webhooks
type WebhookSender interface {
	// Send POSTs body with the signature header attached.
	// Returns the HTTP status, or an error for transport failures and timeouts.
	Send(ctx context.Context, url string, body []byte, signature string) (int, error)
}

// Notifier publishes operator/customer notifications
type Notifier interface {
	Notify(ctx context.Context, n *domain.Notification) error
}
