package domain

import (
	"fmt"
	"time"
)

// DefaultIdempotencyRetention is how long idempotency records are kept
const DefaultIdempotencyRetention = 7 * 24 * time.Hour

// IdempotencyRecord marks a payload hash as processed within a scope.
// Records are write-once.
type IdempotencyRecord struct {
	Scope     string    `json:"scope"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// DeviceUploadScope scopes device uploads to their connection
func DeviceUploadScope(connectionID string) string {
	return "device:" + connectionID
}

// PurgeResult reports what a purge removed
type PurgeResult struct {
	Records     int64 `json:"records"`
	WebhookLogs int64 `json:"webhook_logs"`
}

// UploadResult summarises one device upload
type UploadResult struct {
	Accepted  int  `json:"accepted"`
	Dropped   int  `json:"dropped"`
	Duplicate bool `json:"duplicate"`
}

// StravaEvent is an inbound Strava push event
type StravaEvent struct {
	ObjectID       int64             `json:"object_id"`
	ObjectType     string            `json:"object_type"`
	AspectType     string            `json:"aspect_type"`
	SubscriptionID int64             `json:"subscription_id"`
	OwnerID        int64             `json:"owner_id"`
	EventTime      int64             `json:"event_time"`
	Updates        map[string]string `json:"updates,omitempty"`
}

// Scope returns the idempotency scope for the event tuple
func (e *StravaEvent) Scope() string {
	return fmt.Sprintf("strava:%d:%s:%s:%d:%d", e.ObjectID, e.ObjectType, e.AspectType, e.SubscriptionID, e.OwnerID)
}

// FitbitNotification is one entry of an inbound Fitbit subscription notification
type FitbitNotification struct {
	CollectionType string `json:"collectionType"`
	Date           string `json:"date"`
	OwnerID        string `json:"ownerId"`
	OwnerType      string `json:"ownerType"`
	SubscriptionID string `json:"subscriptionId"`
}

// Scope returns the idempotency scope for the notification tuple
func (n *FitbitNotification) Scope() string {
	return fmt.Sprintf("fitbit:%s:%s:%s:%s", n.CollectionType, n.Date, n.OwnerID, n.SubscriptionID)
}
