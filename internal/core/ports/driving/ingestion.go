package driving

import (
	"context"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// IngestionService accepts device uploads and provider push notifications
type IngestionService interface {
	// UploadDeviceData ingests a HealthKit upload authenticated by the account key
	UploadDeviceData(ctx context.Context, accountKey, userUUID string, body []byte) (*domain.UploadResult, error)

	// VerifyStravaSubscription answers the Strava subscription handshake
	VerifyStravaSubscription(mode, token, challenge string) (string, error)

	// HandleStravaEvent processes one Strava push event
	HandleStravaEvent(ctx context.Context, body []byte) error

	// VerifyFitbitSubscriber checks the Fitbit subscriber verification code
	VerifyFitbitSubscriber(code string) bool

	// HandleFitbitNotification processes a signed Fitbit notification batch
	HandleFitbitNotification(ctx context.Context, body []byte, signature string) error
}

// ConnectionService manages provider link lifecycle
type ConnectionService interface {
	Connect(ctx context.Context, req domain.ConnectRequest) (*domain.ProviderLink, error)
	Disconnect(ctx context.Context, linkID string) error
	Status(ctx context.Context, linkID string) (*domain.LinkStatus, error)
}
