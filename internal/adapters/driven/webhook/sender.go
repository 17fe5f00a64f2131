package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/imroc/req/v3"

	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/Pulkit07/metric-health-backend/internal/signing"
)

// Ensure Sender implements the interface.
var _ driven.WebhookSender = (*Sender)(nil)

// DefaultTimeout bounds each webhook POST
const DefaultTimeout = 10 * time.Second

// Sender posts signed JSON bodies to customer webhooks.
type Sender struct {
	client *req.Client
	header string
}

// NewSender creates a sender. An empty header falls back to signing.HeaderName.
func NewSender(timeout time.Duration, header string) *Sender {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if header == "" {
		header = signing.HeaderName
	}
	return &Sender{
		client: req.C().
			SetTimeout(timeout).
			SetUserAgent("heka-webhook/1.0"),
		header: header,
	}
}

// Send POSTs the body and returns the response status.
// Transport failures and timeouts return an error and a zero status.
func (s *Sender) Send(ctx context.Context, url string, body []byte, signature string) (int, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(s.header, signature).
		SetBodyBytes(body).
		Post(url)
	if err != nil {
		return 0, fmt.Errorf("post webhook: %w", err)
	}
	return resp.StatusCode, nil
}
