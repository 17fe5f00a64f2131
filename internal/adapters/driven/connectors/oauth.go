package connectors

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/imroc/req/v3"
	"github.com/tidwall/gjson"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// DefaultTimeout bounds every provider HTTP call.
const DefaultTimeout = 10 * time.Second

// NewHTTPClient returns the req client shared by a provider's fetcher and refresher.
func NewHTTPClient(timeout time.Duration) *req.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return req.C().SetTimeout(timeout)
}

// RefreshRequest describes one refresh_token grant.
type RefreshRequest struct {
	TokenURL string
	Form     url.Values

	// BasicUser and BasicPassword send client credentials as HTTP Basic auth
	// instead of form fields.
	BasicUser     string
	BasicPassword string
}

// RefreshToken performs a refresh_token grant and classifies failures:
// a 4xx (other than 429) wraps domain.ErrProviderAuth, while transport
// errors, 429 and 5xx wrap domain.ErrProviderUnavailable.
func RefreshToken(ctx context.Context, client *req.Client, r RefreshRequest) (*driven.OAuthToken, error) {
	request := client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFormDataFromValues(r.Form)
	if r.BasicUser != "" {
		request.SetBasicAuth(r.BasicUser, r.BasicPassword)
	}

	resp, err := request.Post(r.TokenURL)
	if err != nil {
		return nil, fmt.Errorf("%w: token request: %v", domain.ErrProviderUnavailable, err)
	}
	if err := ClassifyStatus(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("token refresh failed: %w (status %d: %s)", err, resp.StatusCode, resp.String())
	}

	body := resp.Bytes()
	token := &driven.OAuthToken{
		AccessToken:  gjson.GetBytes(body, "access_token").String(),
		RefreshToken: gjson.GetBytes(body, "refresh_token").String(),
		ExpiresIn:    int(gjson.GetBytes(body, "expires_in").Int()),
		TokenType:    gjson.GetBytes(body, "token_type").String(),
		Scope:        gjson.GetBytes(body, "scope").String(),
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response without access_token", domain.ErrProviderUnavailable)
	}
	return token, nil
}

// ClassifyStatus maps a provider response status onto the connector error
// sentinels. It returns nil for 2xx.
func ClassifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests, status >= 500:
		return domain.ErrProviderUnavailable
	case status >= 400:
		return domain.ErrProviderAuth
	default:
		return domain.ErrProviderUnavailable
	}
}
