package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven/mocks"
)

// Mock services for testing

type mockIngestionService struct {
	uploadFn       func(ctx context.Context, key, userUUID string, body []byte) (*domain.UploadResult, error)
	stravaVerifyFn func(mode, token, challenge string) (string, error)
	stravaEventFn  func(ctx context.Context, body []byte) error
	fitbitVerifyFn func(code string) bool
	fitbitNotifyFn func(ctx context.Context, body []byte, signature string) error
}

func (m *mockIngestionService) UploadDeviceData(ctx context.Context, key, userUUID string, body []byte) (*domain.UploadResult, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, key, userUUID, body)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIngestionService) VerifyStravaSubscription(mode, token, challenge string) (string, error) {
	if m.stravaVerifyFn != nil {
		return m.stravaVerifyFn(mode, token, challenge)
	}
	return "", domain.ErrInvalidSignature
}

func (m *mockIngestionService) HandleStravaEvent(ctx context.Context, body []byte) error {
	if m.stravaEventFn != nil {
		return m.stravaEventFn(ctx, body)
	}
	return nil
}

func (m *mockIngestionService) VerifyFitbitSubscriber(code string) bool {
	if m.fitbitVerifyFn != nil {
		return m.fitbitVerifyFn(code)
	}
	return false
}

func (m *mockIngestionService) HandleFitbitNotification(ctx context.Context, body []byte, signature string) error {
	if m.fitbitNotifyFn != nil {
		return m.fitbitNotifyFn(ctx, body, signature)
	}
	return nil
}

type mockConnectionService struct {
	connectFn    func(ctx context.Context, req domain.ConnectRequest) (*domain.ProviderLink, error)
	disconnectFn func(ctx context.Context, id string) error
	statusFn     func(ctx context.Context, id string) (*domain.LinkStatus, error)
}

func (m *mockConnectionService) Connect(ctx context.Context, req domain.ConnectRequest) (*domain.ProviderLink, error) {
	if m.connectFn != nil {
		return m.connectFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockConnectionService) Disconnect(ctx context.Context, id string) error {
	if m.disconnectFn != nil {
		return m.disconnectFn(ctx, id)
	}
	return nil
}

func (m *mockConnectionService) Status(ctx context.Context, id string) (*domain.LinkStatus, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

// mockAuthAdapter accepts the token "valid" and rejects everything else
type mockAuthAdapter struct{}

func (mockAuthAdapter) GenerateToken(claims *domain.AdminClaims) (string, error) {
	return "valid", nil
}

func (mockAuthAdapter) ParseToken(token string) (*domain.AdminClaims, error) {
	if token != "valid" {
		return nil, fmt.Errorf("%w: bad token", domain.ErrTokenInvalid)
	}
	return domain.NewAdminClaims("ops", time.Hour), nil
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(ctx context.Context) error { return m.err }

type testServer struct {
	*Server
	ingestion   *mockIngestionService
	connections *mockConnectionService
	queue       *mocks.MockTaskQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		ingestion:   &mockIngestionService{},
		connections: &mockConnectionService{},
		queue:       mocks.NewMockTaskQueue(),
	}
	ts.Server = NewServer(DefaultConfig(), Deps{
		Ingestion:   ts.ingestion,
		Connections: ts.connections,
		TaskQueue:   ts.queue,
		Auth:        mockAuthAdapter{},
		DB:          mockPinger{},
	})
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rr, req)
	return rr
}

func adminRequest(method, target string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer valid")
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}

// Health endpoints

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestHandleReady(t *testing.T) {
	tests := []struct {
		name   string
		db     Pinger
		redis  Pinger
		status int
	}{
		{"all up", mockPinger{}, mockPinger{}, http.StatusOK},
		{"no redis configured", mockPinger{}, nil, http.StatusOK},
		{"database down", mockPinger{err: errors.New("refused")}, nil, http.StatusServiceUnavailable},
		{"redis down", mockPinger{}, mockPinger{err: errors.New("refused")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(DefaultConfig(), Deps{DB: tt.db, Redis: tt.redis})
			rr := httptest.NewRecorder()
			s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
			if rr.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rr.Code)
			}
		})
	}
}

func TestHandleVersion(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(httptest.NewRequest(http.MethodGet, "/version", nil))

	var resp VersionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Version != "dev" {
		t.Errorf("expected version dev, got %s", resp.Version)
	}
	if resp.Runtime != nil {
		t.Errorf("expected no runtime section, got %+v", resp.Runtime)
	}
}

func TestHandleVersion_Runtime(t *testing.T) {
	rt := domain.NewRuntimeConfig("api", domain.BackendRedis, domain.BackendRedis, domain.BackendRedis)
	s := NewServer(DefaultConfig(), Deps{Runtime: rt})

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/version", nil))

	var resp VersionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Runtime == nil || resp.Runtime.Queue != "redis" || resp.Runtime.Notifier != "log" {
		t.Errorf("unexpected runtime: %+v", resp.Runtime)
	}
}

// Device ingestion

func TestHandleHealthKitUpload_RawBody(t *testing.T) {
	ts := newTestServer(t)
	var gotKey, gotUser, gotBody string
	ts.ingestion.uploadFn = func(ctx context.Context, key, userUUID string, body []byte) (*domain.UploadResult, error) {
		gotKey, gotUser, gotBody = key, userUUID, string(body)
		return &domain.UploadResult{Accepted: 3, Dropped: 1}, nil
	}

	rr := ts.do(httptest.NewRequest(http.MethodPost, "/v1/healthkit/upload?key=k1&user_uuid=u1",
		strings.NewReader(`{"steps":[]}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotKey != "k1" || gotUser != "u1" || gotBody != `{"steps":[]}` {
		t.Errorf("unexpected upload args: %q %q %q", gotKey, gotUser, gotBody)
	}

	var resp UploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success || resp.Accepted != 3 || resp.Dropped != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleHealthKitUpload_MultipartFile(t *testing.T) {
	ts := newTestServer(t)
	var gotBody string
	ts.ingestion.uploadFn = func(ctx context.Context, key, userUUID string, body []byte) (*domain.UploadResult, error) {
		gotBody = string(body)
		return &domain.UploadResult{}, nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("data", "export.json")
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprint(part, `{"weight":[]}`)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/healthkit/upload?key=k1&user_uuid=u1", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := ts.do(req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotBody != `{"weight":[]}` {
		t.Errorf("expected file contents, got %q", gotBody)
	}
}

func TestHandleHealthKitUpload_MultipartWithoutData(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "x")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/healthkit/upload?key=k1&user_uuid=u1", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := ts.do(req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
	if msg := decodeError(t, rr); msg != "missing data file" {
		t.Errorf("unexpected error: %s", msg)
	}
}

func TestHandleHealthKitUpload_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"no connection", fmt.Errorf("link: %w", domain.ErrNotFound), http.StatusBadRequest, "no connection exists for this user"},
		{"bad key", domain.ErrUnauthorized, http.StatusUnauthorized, "invalid account key"},
		{"bad payload", domain.ErrInvalidInput, http.StatusBadRequest, "invalid upload payload"},
		{"store failure", errors.New("boom"), http.StatusInternalServerError, "failed to process upload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.ingestion.uploadFn = func(ctx context.Context, key, userUUID string, body []byte) (*domain.UploadResult, error) {
				return nil, tt.err
			}

			rr := ts.do(httptest.NewRequest(http.MethodPost, "/v1/healthkit/upload?key=k&user_uuid=u", strings.NewReader("{}")))
			if rr.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rr.Code)
			}
			if msg := decodeError(t, rr); msg != tt.message {
				t.Errorf("expected error %q, got %q", tt.message, msg)
			}
		})
	}
}

func TestHandleHealthKitUpload_TooLarge(t *testing.T) {
	ts := newTestServer(t)
	ts.maxUpload = 8
	ts.ingestion.uploadFn = func(ctx context.Context, key, userUUID string, body []byte) (*domain.UploadResult, error) {
		t.Error("upload should not reach the service")
		return nil, nil
	}

	rr := ts.do(httptest.NewRequest(http.MethodPost, "/v1/healthkit/upload?key=k&user_uuid=u",
		strings.NewReader(`{"steps":[1,2,3,4,5]}`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

// Strava push

func TestHandleStravaVerify(t *testing.T) {
	ts := newTestServer(t)
	ts.ingestion.stravaVerifyFn = func(mode, token, challenge string) (string, error) {
		if mode == "subscribe" && token == "tok" {
			return challenge, nil
		}
		return "", domain.ErrInvalidSignature
	}

	rr := ts.do(httptest.NewRequest(http.MethodGet,
		"/v1/strava/webhook?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=abc", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["hub.challenge"] != "abc" {
		t.Errorf("expected challenge echo, got %v", resp)
	}

	rr = ts.do(httptest.NewRequest(http.MethodGet,
		"/v1/strava/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=abc", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleStravaEvent(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"accepted", nil, http.StatusOK},
		{"malformed", domain.ErrInvalidInput, http.StatusBadRequest},
		{"queue down", errors.New("redis down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			var got string
			ts.ingestion.stravaEventFn = func(ctx context.Context, body []byte) error {
				got = string(body)
				return tt.err
			}

			rr := ts.do(httptest.NewRequest(http.MethodPost, "/v1/strava/webhook", strings.NewReader(`{"owner_id":1}`)))
			if rr.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rr.Code)
			}
			if got != `{"owner_id":1}` {
				t.Errorf("unexpected body forwarded: %q", got)
			}
		})
	}
}

// Fitbit push

func TestHandleFitbitVerify(t *testing.T) {
	ts := newTestServer(t)
	ts.ingestion.fitbitVerifyFn = func(code string) bool { return code == "c0de" }

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/v1/fitbit/webhook?verify=c0de", nil))
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rr.Code)
	}

	rr = ts.do(httptest.NewRequest(http.MethodGet, "/v1/fitbit/webhook?verify=nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleFitbitNotification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"accepted", nil, http.StatusNoContent},
		{"bad signature", domain.ErrInvalidSignature, http.StatusNotFound},
		{"not a batch", domain.ErrInvalidInput, http.StatusBadRequest},
		{"enqueue failure", errors.New("queue down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			var gotSig string
			ts.ingestion.fitbitNotifyFn = func(ctx context.Context, body []byte, signature string) error {
				gotSig = signature
				return tt.err
			}

			req := httptest.NewRequest(http.MethodPost, "/v1/fitbit/webhook", strings.NewReader(`[]`))
			req.Header.Set("X-Fitbit-Signature", "c2ln")
			rr := ts.do(req)

			if rr.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rr.Code)
			}
			if gotSig != "c2ln" {
				t.Errorf("expected signature header forwarded, got %q", gotSig)
			}
		})
	}
}

// Admin triggers

func TestAdminTriggers_EnqueueTasks(t *testing.T) {
	tests := []struct {
		path     string
		taskType domain.TaskType
		payload  map[string]string
	}{
		{"/v1/admin/sync/strava", domain.TaskTypeSyncProvider, map[string]string{"provider": "strava"}},
		{"/v1/admin/links/link-9/sync", domain.TaskTypeSyncLink, map[string]string{"link_id": "link-9"}},
		{"/v1/admin/replay", domain.TaskTypeReplayUnprocessed, nil},
		{"/v1/admin/purge", domain.TaskTypePurgeIdempotency, nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ts := newTestServer(t)
			rr := ts.do(adminRequest(http.MethodPost, tt.path, nil))

			if rr.Code != http.StatusAccepted {
				t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
			}

			pending := ts.queue.Pending()
			if len(pending) != 1 {
				t.Fatalf("expected 1 task, got %d", len(pending))
			}
			task := pending[0]
			if task.Type != tt.taskType {
				t.Errorf("expected task type %s, got %s", tt.taskType, task.Type)
			}
			for k, v := range tt.payload {
				if task.Payload[k] != v {
					t.Errorf("expected payload %s=%s, got %s", k, v, task.Payload[k])
				}
			}

			var resp TaskResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.TaskID != task.ID {
				t.Errorf("expected task id %s, got %s", task.ID, resp.TaskID)
			}
		})
	}
}

func TestAdminTriggers_RequireToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(httptest.NewRequest(http.MethodPost, "/v1/admin/replay", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/replay", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rr = ts.do(req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
	if len(ts.queue.Pending()) != 0 {
		t.Error("no task should be enqueued without a valid token")
	}
}

func TestTriggerProviderSync_RejectsPushProvider(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(adminRequest(http.MethodPost, "/v1/admin/sync/apple_healthkit", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestTrigger_EnqueueFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.queue.EnqueueFn = func(task *domain.Task) error { return errors.New("queue down") }

	rr := ts.do(adminRequest(http.MethodPost, "/v1/admin/purge", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rr.Code)
	}
}

func TestQueueStats(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	done := domain.NewReplayTask()
	_ = ts.queue.EnqueueBatch(ctx, []*domain.Task{domain.NewPurgeTask(), done})
	_ = ts.queue.Ack(ctx, done.ID)

	rr := ts.do(adminRequest(http.MethodGet, "/v1/admin/queue", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var stats driven.QueueStats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.PendingCount != 1 || stats.CompletedCount != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	rr = ts.do(httptest.NewRequest(http.MethodGet, "/v1/admin/queue", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 without token, got %d", rr.Code)
	}
}

func TestGetTask(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(adminRequest(http.MethodPost, "/v1/admin/links/link-7/sync", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rr.Code)
	}
	var accepted TaskResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("failed to decode task response: %v", err)
	}

	rr = ts.do(adminRequest(http.MethodGet, "/v1/admin/tasks/"+accepted.TaskID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var task domain.Task
	if err := json.Unmarshal(rr.Body.Bytes(), &task); err != nil {
		t.Fatalf("failed to decode task: %v", err)
	}
	if task.ID != accepted.TaskID || task.Status != domain.TaskStatusPending || task.LinkID() != "link-7" {
		t.Errorf("unexpected task %+v", task)
	}

	rr = ts.do(adminRequest(http.MethodGet, "/v1/admin/tasks/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

// Admin link management

func TestHandleConnect(t *testing.T) {
	ts := newTestServer(t)
	var got domain.ConnectRequest
	ts.connections.connectFn = func(ctx context.Context, req domain.ConnectRequest) (*domain.ProviderLink, error) {
		got = req
		return &domain.ProviderLink{ID: "link-1", Provider: req.Provider, LoggedIn: true}, nil
	}

	body := []byte(`{"account_id":"acc-1","user_uuid":"u1","provider":"fitbit","refresh_token":"rt","expires_in":3600}`)
	rr := ts.do(adminRequest(http.MethodPost, "/v1/admin/links", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.AccountID != "acc-1" || got.Provider != domain.ProviderTypeFitbit || got.ExpiresIn != 3600 {
		t.Errorf("unexpected connect request: %+v", got)
	}

	var status domain.LinkStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.LinkID != "link-1" || !status.LoggedIn {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestHandleConnect_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"validation", `{}`, fmt.Errorf("%w: account_id and user_uuid are required", domain.ErrInvalidInput), http.StatusBadRequest},
		{"unknown account", `{}`, domain.ErrNotFound, http.StatusNotFound},
		{"store failure", `{}`, errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.connections.connectFn = func(ctx context.Context, req domain.ConnectRequest) (*domain.ProviderLink, error) {
				return nil, tt.err
			}

			rr := ts.do(adminRequest(http.MethodPost, "/v1/admin/links", []byte(tt.body)))
			if rr.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rr.Code)
			}
		})
	}
}

func TestHandleConnect_ValidationMessage(t *testing.T) {
	ts := newTestServer(t)
	ts.connections.connectFn = func(ctx context.Context, req domain.ConnectRequest) (*domain.ProviderLink, error) {
		return nil, fmt.Errorf("%w: refresh_token is required for strava", domain.ErrInvalidInput)
	}

	rr := ts.do(adminRequest(http.MethodPost, "/v1/admin/links", []byte(`{}`)))
	if msg := decodeError(t, rr); msg != "refresh_token is required for strava" {
		t.Errorf("unexpected error message: %q", msg)
	}
}

func TestHandleLinkStatus(t *testing.T) {
	ts := newTestServer(t)
	last := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ts.connections.statusFn = func(ctx context.Context, id string) (*domain.LinkStatus, error) {
		if id != "link-1" {
			return nil, domain.ErrNotFound
		}
		return &domain.LinkStatus{LinkID: id, Provider: domain.ProviderTypeStrava, LastSync: &last}, nil
	}

	rr := ts.do(adminRequest(http.MethodGet, "/v1/admin/links/link-1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var status domain.LinkStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.LoggedIn || status.LastSync == nil || !status.LastSync.Equal(last) {
		t.Errorf("unexpected status: %+v", status)
	}

	rr = ts.do(adminRequest(http.MethodGet, "/v1/admin/links/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleDisconnect(t *testing.T) {
	ts := newTestServer(t)
	var got string
	ts.connections.disconnectFn = func(ctx context.Context, id string) error {
		got = id
		return nil
	}

	rr := ts.do(adminRequest(http.MethodDelete, "/v1/admin/links/link-1", nil))
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rr.Code)
	}
	if got != "link-1" {
		t.Errorf("expected link-1, got %s", got)
	}

	ts.connections.disconnectFn = func(ctx context.Context, id string) error { return domain.ErrNotFound }
	rr = ts.do(adminRequest(http.MethodDelete, "/v1/admin/links/link-2", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}
