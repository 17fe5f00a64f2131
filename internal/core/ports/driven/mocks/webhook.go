package mocks

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
)

// SentRequest captures one webhook POST
type SentRequest struct {
	URL       string
	Body      []byte
	Signature string
}

// Decode unmarshals the captured body
func (r SentRequest) Decode() (*domain.WebhookBody, error) {
	var body domain.WebhookBody
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return nil, err
	}
	return &body, nil
}

// MockWebhookSender records sends and answers with scripted statuses.
// Statuses are consumed in order; once exhausted, Status is returned.
type MockWebhookSender struct {
	mu       sync.Mutex
	Requests []SentRequest
	Statuses []int
	Status   int

	SendFn func(ctx context.Context, url string, body []byte, signature string) (int, error)
}

func NewMockWebhookSender(status int) *MockWebhookSender {
	return &MockWebhookSender{Status: status}
}

func (m *MockWebhookSender) Send(ctx context.Context, url string, body []byte, signature string) (int, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, SentRequest{URL: url, Body: body, Signature: signature})
	status := m.Status
	if len(m.Statuses) > 0 {
		status = m.Statuses[0]
		m.Statuses = m.Statuses[1:]
	}
	m.mu.Unlock()

	if m.SendFn != nil {
		return m.SendFn(ctx, url, body, signature)
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, nil
}

// Sent returns a copy of the captured requests
func (m *MockWebhookSender) Sent() []SentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentRequest(nil), m.Requests...)
}

// MockNotifier records notifications
type MockNotifier struct {
	mu            sync.Mutex
	Notifications []*domain.Notification
	NotifyErr     error
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications = append(m.Notifications, n)
	return m.NotifyErr
}

// Count returns the number of notifications sent
func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Notifications)
}
