package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven/mocks"
	"github.com/Pulkit07/metric-health-backend/internal/normalisers"
	"github.com/Pulkit07/metric-health-backend/internal/signing"
)

const fitbitSecret = "fitbit-secret"

type ingestionFixture struct {
	svc         *IngestionService
	accounts    *mocks.MockAccountStore
	connections *mocks.MockConnectionStore
	links       *mocks.MockLinkStore
	queue       *mocks.MockTaskQueue
	sender      *mocks.MockWebhookSender
	unprocessed *mocks.MockUnprocessedStore
}

func newIngestionFixture(t *testing.T) *ingestionFixture {
	t.Helper()
	f := &ingestionFixture{
		accounts:    mocks.NewMockAccountStore(),
		connections: mocks.NewMockConnectionStore(),
		links:       mocks.NewMockLinkStore(),
		queue:       mocks.NewMockTaskQueue(),
		sender:      mocks.NewMockWebhookSender(http.StatusOK),
		unprocessed: mocks.NewMockUnprocessedStore(),
	}
	f.accounts.Put(&domain.Account{
		ID:                "acc-1",
		Key:               "app-key",
		WebhookURL:        "https://hook.example",
		DataStorageOption: domain.StorageDeny,
		EnabledDataTypes:  []string{domain.DataTypeSteps, domain.DataTypeWeight},
	})
	_, _ = f.connections.Create(context.Background(), &domain.Connection{ID: "conn-1", AccountID: "acc-1", UserUUID: "user-1"})

	delivery := NewDeliveryService(DeliveryServiceConfig{
		Accounts:    f.accounts,
		Unprocessed: f.unprocessed,
		Metrics:     mocks.NewMockMetricStore(),
		Sender:      f.sender,
		Failures:    mocks.NewMockFailureCounter(),
		Notifier:    mocks.NewMockNotifier(),
	})
	f.svc = NewIngestionService(IngestionServiceConfig{
		Accounts:               f.accounts,
		Connections:            f.connections,
		Links:                  f.links,
		Guard:                  NewIdempotencyGuard(IdempotencyGuardConfig{Store: mocks.NewMockIdempotencyStore()}),
		Delivery:               delivery,
		Normalisers:            normalisers.DefaultRegistry(),
		Queue:                  f.queue,
		StravaVerifyToken:      "strava-verify",
		FitbitVerificationCode: "fitbit-verify",
		FitbitClientSecret:     fitbitSecret,
	})
	return f
}

func (f *ingestionFixture) addLink(id string, provider domain.ProviderType, mutate func(*domain.ProviderLink)) {
	link := &domain.ProviderLink{
		ID:           id,
		ConnectionID: "conn-1",
		AccountID:    "acc-1",
		Provider:     provider,
		RefreshToken: "rt",
		LoggedIn:     true,
	}
	if mutate != nil {
		mutate(link)
	}
	_ = f.links.Save(context.Background(), link)
}

const healthKitUpload = `{
	"steps": [
		{"value": 120, "date_from": 1700000000000, "date_to": 1700000060000, "source_name": "iPhone"},
		{"value": 80, "date_from": 1700000060000, "date_to": 1700000120000, "source_name": null}
	],
	"water": [{"value": 0.5, "date_from": 1700000000000, "date_to": 1700000000000}],
	"heart_rate": [{"value": 70, "date_from": 1700000000000, "date_to": 1700000000000}]
}`

func TestUploadDeviceData_DeliversEnabledTypes(t *testing.T) {
	f := newIngestionFixture(t)
	f.addLink("hk-1", domain.ProviderTypeAppleHealthKit, nil)

	result, err := f.svc.UploadDeviceData(context.Background(), "app-key", "user-1", []byte(healthKitUpload))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 2, result.Dropped)
	assert.False(t, result.Duplicate)

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	body, err := sent[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, "user-1", body.UUID)
	require.Len(t, body.Data[domain.DataTypeSteps], 2)
	assert.NotContains(t, body.Data, domain.DataTypeWaterConsumed)

	iphone := body.Data[domain.DataTypeSteps][0]
	require.NotNil(t, iphone.SourceDevice)
	assert.Equal(t, "iPhone", *iphone.SourceDevice)
	assert.Nil(t, body.Data[domain.DataTypeSteps][1].SourceDevice)

	link := f.links.Snapshot("hk-1")
	require.NotNil(t, link.LastSync)
	assert.Equal(t, int64(1700000120000), link.LastSync.UnixMilli())
}

func TestUploadDeviceData_DuplicateIsAcknowledged(t *testing.T) {
	f := newIngestionFixture(t)
	f.addLink("hk-1", domain.ProviderTypeAppleHealthKit, nil)
	ctx := context.Background()

	_, err := f.svc.UploadDeviceData(ctx, "app-key", "user-1", []byte(healthKitUpload))
	require.NoError(t, err)

	result, err := f.svc.UploadDeviceData(ctx, "app-key", "user-1", []byte(healthKitUpload))
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Len(t, f.sender.Sent(), 1)
}

func TestUploadDeviceData_Rejections(t *testing.T) {
	f := newIngestionFixture(t)
	f.addLink("hk-1", domain.ProviderTypeAppleHealthKit, nil)
	ctx := context.Background()

	_, err := f.svc.UploadDeviceData(ctx, "wrong-key", "user-1", []byte(healthKitUpload))
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	_, err = f.svc.UploadDeviceData(ctx, "app-key", "stranger", []byte(healthKitUpload))
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = f.svc.UploadDeviceData(ctx, "app-key", "user-1", []byte(`[1,2]`))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = f.svc.UploadDeviceData(ctx, "", "user-1", []byte(healthKitUpload))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	assert.Empty(t, f.sender.Sent())
}

func TestUploadDeviceData_NoHealthKitLink(t *testing.T) {
	f := newIngestionFixture(t)
	f.addLink("gf-1", domain.ProviderTypeGoogleFit, nil)

	_, err := f.svc.UploadDeviceData(context.Background(), "app-key", "user-1", []byte(healthKitUpload))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUploadDeviceData_WebhookFailurePersists(t *testing.T) {
	f := newIngestionFixture(t)
	f.addLink("hk-1", domain.ProviderTypeAppleHealthKit, nil)
	f.sender.Status = http.StatusBadGateway

	_, err := f.svc.UploadDeviceData(context.Background(), "app-key", "user-1", []byte(healthKitUpload))
	require.NoError(t, err)
	assert.Len(t, f.unprocessed.Remaining(), 1)
}

func stravaEvent(aspect string, eventTime int64, updates string) []byte {
	return []byte(fmt.Sprintf(`{"aspect_type":%q,"event_time":%d,"object_id":1360128428,
		"object_type":"activity","owner_id":134815,"subscription_id":120475,"updates":%s}`,
		aspect, eventTime, updates))
}

func TestHandleStravaEvent_EnqueuesSync(t *testing.T) {
	f := newIngestionFixture(t)
	f.addLink("st-1", domain.ProviderTypeStrava, func(l *domain.ProviderLink) { l.ProviderUserID = "134815" })
	ctx := context.Background()

	require.NoError(t, f.svc.HandleStravaEvent(ctx, stravaEvent("create", 1516126040, "{}")))

	// redelivery of the same event differs only in event_time
	require.NoError(t, f.svc.HandleStravaEvent(ctx, stravaEvent("create", 1516126099, "{}")))

	pending := f.queue.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, domain.TaskTypeSyncLink, pending[0].Type)
	assert.Equal(t, "st-1", pending[0].LinkID())

	// a different aspect is a different event
	require.NoError(t, f.svc.HandleStravaEvent(ctx, stravaEvent("update", 1516126100, `{"title":"Lunch"}`)))
	assert.Len(t, f.queue.Pending(), 2)
}

func TestHandleStravaEvent_UnknownAthleteIgnored(t *testing.T) {
	f := newIngestionFixture(t)

	require.NoError(t, f.svc.HandleStravaEvent(context.Background(), stravaEvent("create", 1, "{}")))
	assert.Empty(t, f.queue.Pending())
}

func TestHandleStravaEvent_Deauthorize(t *testing.T) {
	f := newIngestionFixture(t)
	f.addLink("st-1", domain.ProviderTypeStrava, func(l *domain.ProviderLink) { l.ProviderUserID = "134815" })

	body := []byte(`{"aspect_type":"update","event_time":1516126040,"object_id":134815,
		"object_type":"athlete","owner_id":134815,"subscription_id":120475,"updates":{"authorized":"false"}}`)
	require.NoError(t, f.svc.HandleStravaEvent(context.Background(), body))

	link := f.links.Snapshot("st-1")
	assert.False(t, link.LoggedIn)
	assert.Empty(t, link.RefreshToken)
	assert.Empty(t, f.queue.Pending())
}

func TestHandleStravaEvent_Invalid(t *testing.T) {
	f := newIngestionFixture(t)

	err := f.svc.HandleStravaEvent(context.Background(), []byte(`not json`))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	err = f.svc.HandleStravaEvent(context.Background(), []byte(`{"object_type":"activity"}`))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestVerifyStravaSubscription(t *testing.T) {
	f := newIngestionFixture(t)

	challenge, err := f.svc.VerifyStravaSubscription("subscribe", "strava-verify", "15f7d1a91c1f40f8a748fd134752feb3")
	require.NoError(t, err)
	assert.Equal(t, "15f7d1a91c1f40f8a748fd134752feb3", challenge)

	_, err = f.svc.VerifyStravaSubscription("subscribe", "wrong", "c")
	assert.Error(t, err)
	_, err = f.svc.VerifyStravaSubscription("unsubscribe", "strava-verify", "c")
	assert.Error(t, err)
}

const fitbitBatch = `[
	{"collectionType":"activities","date":"2024-05-09","ownerId":"228S74","ownerType":"user","subscriptionId":"sub-1"},
	{"collectionType":"body","date":"2024-05-09","ownerId":"228S74","ownerType":"user","subscriptionId":"sub-1"},
	{"collectionType":"activities","date":"2024-05-09","ownerId":"9XZ","ownerType":"user","subscriptionId":"sub-unknown"}
]`

func TestHandleFitbitNotification_EnqueuesOncePerLink(t *testing.T) {
	f := newIngestionFixture(t)
	f.addLink("fb-1", domain.ProviderTypeFitbit, func(l *domain.ProviderLink) { l.SubscriptionID = "sub-1" })
	f.addLink("fb-2", domain.ProviderTypeFitbit, func(l *domain.ProviderLink) { l.SubscriptionID = "sub-2" })
	body := []byte(`[
		{"collectionType":"activities","date":"2024-05-09","ownerId":"228S74","ownerType":"user","subscriptionId":"sub-1"},
		{"collectionType":"body","date":"2024-05-09","ownerId":"228S74","ownerType":"user","subscriptionId":"sub-1"},
		{"collectionType":"sleep","date":"2024-05-09","ownerId":"7QQ","ownerType":"user","subscriptionId":"sub-2"},
		{"collectionType":"activities","date":"2024-05-09","ownerId":"9XZ","ownerType":"user","subscriptionId":"sub-unknown"}
	]`)

	require.NoError(t, f.svc.HandleFitbitNotification(context.Background(), body, signing.Sign(body, fitbitSecret)))

	pending := f.queue.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "fb-1", pending[0].LinkID())
	assert.Equal(t, "fb-2", pending[1].LinkID())
	assert.Equal(t, 1, f.queue.Batches)

	// replayed batch is fully deduplicated
	require.NoError(t, f.svc.HandleFitbitNotification(context.Background(), body, signing.Sign(body, fitbitSecret)))
	assert.Len(t, f.queue.Pending(), 2)
	assert.Equal(t, 1, f.queue.Batches)
}

func TestHandleFitbitNotification_BadSignature(t *testing.T) {
	f := newIngestionFixture(t)
	f.addLink("fb-1", domain.ProviderTypeFitbit, func(l *domain.ProviderLink) { l.SubscriptionID = "sub-1" })
	body := []byte(fitbitBatch)

	err := f.svc.HandleFitbitNotification(context.Background(), body, signing.Sign(body, "other"))
	assert.True(t, errors.Is(err, domain.ErrInvalidSignature))

	err = f.svc.HandleFitbitNotification(context.Background(), body, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidSignature))
	assert.Empty(t, f.queue.Pending())
}

func TestHandleFitbitNotification_LoggedOutLinkSkipped(t *testing.T) {
	f := newIngestionFixture(t)
	f.addLink("fb-1", domain.ProviderTypeFitbit, func(l *domain.ProviderLink) {
		l.SubscriptionID = "sub-1"
		l.MarkLoggedOut()
	})
	body := []byte(fitbitBatch)

	require.NoError(t, f.svc.HandleFitbitNotification(context.Background(), body, signing.Sign(body, fitbitSecret)))
	assert.Empty(t, f.queue.Pending())
}

func TestHandleFitbitNotification_EnqueueFailure(t *testing.T) {
	f := newIngestionFixture(t)
	f.addLink("fb-1", domain.ProviderTypeFitbit, func(l *domain.ProviderLink) { l.SubscriptionID = "sub-1" })
	f.queue.EnqueueFn = func(task *domain.Task) error { return errors.New("queue down") }
	body := []byte(fitbitBatch)

	err := f.svc.HandleFitbitNotification(context.Background(), body, signing.Sign(body, fitbitSecret))
	assert.ErrorContains(t, err, "queue down")
}

func TestVerifyFitbitSubscriber(t *testing.T) {
	f := newIngestionFixture(t)
	assert.True(t, f.svc.VerifyFitbitSubscriber("fitbit-verify"))
	assert.False(t, f.svc.VerifyFitbitSubscriber("nope"))
	assert.False(t, f.svc.VerifyFitbitSubscriber(""))

}
