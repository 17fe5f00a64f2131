package domain

import (
	"fmt"
	"time"
)

// NotificationKind identifies an operator/customer notification
type NotificationKind string

const (
	// NotificationWebhookDisabled is emitted when a webhook is auto-disabled
	NotificationWebhookDisabled NotificationKind = "webhook_disabled"
)

// Notification is published to operators and the affected customer
type Notification struct {
	ID         string           `json:"id"`
	Kind       NotificationKind `json:"kind"`
	AccountID  string           `json:"account_id"`
	WebhookURL string           `json:"webhook_url,omitempty"`
	Reason     string           `json:"reason"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewWebhookDisabledNotification builds the notification for an auto-disabled webhook
func NewWebhookDisabledNotification(accountID, webhookURL string, failures int64) *Notification {
	return &Notification{
		ID:         GenerateID(),
		Kind:       NotificationWebhookDisabled,
		AccountID:  accountID,
		WebhookURL: webhookURL,
		Reason:     fmt.Sprintf("webhook disabled after %d consecutive delivery failures", failures),
		OccurredAt: time.Now(),
	}
}
