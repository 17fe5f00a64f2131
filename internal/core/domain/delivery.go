package domain

import "time"

const (
	// DefaultChunkSize is the maximum number of points per webhook POST
	DefaultChunkSize = 500

	// DefaultFailureThreshold is the consecutive failure count that disables a webhook
	DefaultFailureThreshold = 5
)

// UnprocessedChunk is a payload that could not be delivered and waits for replay
type UnprocessedChunk struct {
	ID           string       `json:"id"`
	ConnectionID string       `json:"connection_id"`
	Provider     ProviderType `json:"provider"`
	Payload      Payload      `json:"payload"`
	CreatedAt    time.Time    `json:"created_at"`
}

// NewUnprocessedChunk creates a chunk for the connection
func NewUnprocessedChunk(connectionID string, provider ProviderType, payload Payload) *UnprocessedChunk {
	return &UnprocessedChunk{
		ID:           GenerateID(),
		ConnectionID: connectionID,
		Provider:     provider,
		Payload:      payload,
		CreatedAt:    time.Now(),
	}
}

// DataSyncMetric aggregates the values delivered for one data type in one chunk
type DataSyncMetric struct {
	AccountID string       `json:"account_id"`
	DataType  string       `json:"data_type"`
	Provider  ProviderType `json:"provider"`
	Value     float64      `json:"value"`
	CreatedAt time.Time    `json:"created_at"`
}

// MetricsFor sums point values per data type of a delivered chunk
func MetricsFor(accountID string, provider ProviderType, chunk Payload) []*DataSyncMetric {
	now := time.Now()
	metrics := make([]*DataSyncMetric, 0, len(chunk))
	for _, t := range chunk.Types() {
		var total float64
		for _, p := range chunk[t] {
			total += p.Value
		}
		metrics = append(metrics, &DataSyncMetric{
			AccountID: accountID,
			DataType:  t,
			Provider:  provider,
			Value:     total,
			CreatedAt: now,
		})
	}
	return metrics
}

// WebhookLog is a debug copy of a delivered chunk
type WebhookLog struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	UserUUID  string    `json:"user_uuid"`
	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// WebhookBody is the JSON body posted to customer webhooks
type WebhookBody struct {
	Data Payload `json:"data"`
	UUID string  `json:"uuid"`
}

// DeliveryResult summarises one delivery call
type DeliveryResult struct {
	Sent      int  `json:"sent"`
	Persisted int  `json:"persisted"`
	Disabled  bool `json:"disabled"`
}

// Success reports whether every chunk was accepted by the webhook
func (r *DeliveryResult) Success() bool {
	return r.Persisted == 0
}

// ReplayResult summarises one replay run
type ReplayResult struct {
	Total     int     `json:"total"`
	Delivered int     `json:"delivered"`
	Partial   int     `json:"partial"`
	Failed    int     `json:"failed"`
	Skipped   int     `json:"skipped"`
	Duration  float64 `json:"duration_seconds"`
	// Ran is false when another instance held the replay lock
	Ran bool `json:"ran"`
}
