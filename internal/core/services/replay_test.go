package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven/mocks"
)

type replayFixture struct {
	svc         *ReplayService
	delivery    *deliveryFixture
	lock        *mocks.MockDistributedLock
	connections *mocks.MockConnectionStore
}

func newReplayFixture(t *testing.T, cfg ReplayServiceConfig) *replayFixture {
	t.Helper()
	d := newDeliveryFixture(t, http.StatusOK)
	f := &replayFixture{
		delivery:    d,
		lock:        mocks.NewMockDistributedLock(),
		connections: mocks.NewMockConnectionStore(d.conn),
	}
	cfg.Unprocessed = d.unprocessed
	cfg.Connections = f.connections
	cfg.Accounts = d.accounts
	cfg.Delivery = d.svc
	cfg.Lock = f.lock
	f.svc = NewReplayService(cfg)
	return f
}

// seed stores n single-point chunks, oldest first, and returns their IDs
func (f *replayFixture) seed(t *testing.T, n int) []string {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		chunk := domain.NewUnprocessedChunk("conn-1", domain.ProviderTypeGoogleFit, domain.Payload{
			domain.DataTypeSteps: makePoints(1, float64(i)),
		})
		chunk.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, f.delivery.unprocessed.Save(context.Background(), chunk))
		ids[i] = chunk.ID
	}
	f.delivery.unprocessed.Saved = nil
	return ids
}

func TestReplay_DeletesDeliveredKeepsFailed(t *testing.T) {
	f := newReplayFixture(t, ReplayServiceConfig{})
	ids := f.seed(t, 3)
	// newest first: ids[2], ids[1], ids[0]
	f.delivery.sender.Statuses = []int{200, 500, 200}

	result, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Ran)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Delivered)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{ids[1]}, f.delivery.unprocessed.Remaining())
	assert.Empty(t, f.delivery.unprocessed.Saved)
}

func TestReplay_MostRecentFirst(t *testing.T) {
	f := newReplayFixture(t, ReplayServiceConfig{BatchSize: 2})
	f.seed(t, 5)

	_, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)

	sent := f.delivery.sender.Sent()
	require.Len(t, sent, 5)
	var values []float64
	for _, r := range sent {
		body, err := r.Decode()
		require.NoError(t, err)
		values = append(values, body.Data[domain.DataTypeSteps][0].Value)
	}
	assert.Equal(t, []float64{4, 3, 2, 1, 0}, values)
	assert.Empty(t, f.delivery.unprocessed.Remaining())
}

func TestReplay_LockHeldIsNoop(t *testing.T) {
	f := newReplayFixture(t, ReplayServiceConfig{})
	f.seed(t, 2)
	f.lock.SetLockHeld(ReplayLockName, time.Hour)

	result, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Ran)
	assert.Empty(t, f.delivery.sender.Sent())
	assert.Len(t, f.delivery.unprocessed.Remaining(), 2)
}

func TestReplay_SkipsOversizedAndUnconfigured(t *testing.T) {
	f := newReplayFixture(t, ReplayServiceConfig{MaxChunkPoints: 10})
	big := domain.NewUnprocessedChunk("conn-1", domain.ProviderTypeGoogleFit, domain.Payload{domain.DataTypeSteps: makePoints(11, 1)})
	require.NoError(t, f.delivery.unprocessed.Save(context.Background(), big))
	orphan := domain.NewUnprocessedChunk("conn-missing", domain.ProviderTypeGoogleFit, domain.Payload{domain.DataTypeSteps: makePoints(1, 1)})
	require.NoError(t, f.delivery.unprocessed.Save(context.Background(), orphan))

	result, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, f.delivery.unprocessed.Remaining(), 2)
	assert.Empty(t, f.delivery.sender.Sent())
}

func TestReplay_NoWebhookLeavesRows(t *testing.T) {
	f := newReplayFixture(t, ReplayServiceConfig{})
	f.delivery.accounts.Put(&domain.Account{ID: "acc-1", Key: "secret"})
	f.seed(t, 2)

	result, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, f.delivery.unprocessed.Remaining(), 2)
}

func TestReplay_PartialChunkShrinks(t *testing.T) {
	f := newReplayFixture(t, ReplayServiceConfig{})
	chunk := domain.NewUnprocessedChunk("conn-1", domain.ProviderTypeGoogleFit, domain.Payload{
		domain.DataTypeCalories: makePoints(1, 1),
		domain.DataTypeSteps:    makePoints(3, 1),
	})
	require.NoError(t, f.delivery.unprocessed.Save(context.Background(), chunk))
	f.delivery.sender.Statuses = []int{200, 500}

	result, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Partial)

	page, err := f.delivery.unprocessed.ListRecentFirst(context.Background(), nil, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 3, page[0].Payload.Count())
	assert.NotContains(t, page[0].Payload, domain.DataTypeCalories)
}

func TestReplay_PartialChunkShrinkFailureCountsAsFailed(t *testing.T) {
	f := newReplayFixture(t, ReplayServiceConfig{})
	chunk := domain.NewUnprocessedChunk("conn-1", domain.ProviderTypeGoogleFit, domain.Payload{
		domain.DataTypeCalories: makePoints(1, 1),
		domain.DataTypeSteps:    makePoints(3, 1),
	})
	require.NoError(t, f.delivery.unprocessed.Save(context.Background(), chunk))
	f.delivery.sender.Statuses = []int{200, 500}
	f.delivery.unprocessed.UpdatePayloadFn = func(id string, payload domain.Payload) error {
		return errors.New("db down")
	}

	result, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Partial)
	assert.Equal(t, 1, result.Failed)

	page, err := f.delivery.unprocessed.ListRecentFirst(context.Background(), nil, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 4, page[0].Payload.Count(), "row keeps the points that were already sent")
}

func TestReplay_AutoDisableStopsLaterSends(t *testing.T) {
	f := newReplayFixture(t, ReplayServiceConfig{})
	f.seed(t, domain.DefaultFailureThreshold+2)
	f.delivery.sender.Status = http.StatusInternalServerError

	result, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultFailureThreshold, result.Failed)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, f.delivery.sender.Sent(), domain.DefaultFailureThreshold)
	assert.Equal(t, 1, f.delivery.notifier.Count())
}
