package connectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven/mocks"
)

func TestRegistry_Lookups(t *testing.T) {
	r := NewRegistry()
	strava := &mocks.MockConnector{ProviderType: domain.ProviderTypeStrava}
	fitbit := &mocks.MockConnector{ProviderType: domain.ProviderTypeFitbit}
	refresher := &mocks.MockTokenRefresher{}

	r.Register(strava, refresher)
	r.Register(fitbit, nil)

	c, err := r.Connector(domain.ProviderTypeStrava)
	require.NoError(t, err)
	assert.Same(t, strava, c)

	rf, err := r.Refresher(domain.ProviderTypeStrava)
	require.NoError(t, err)
	assert.Same(t, refresher, rf)

	_, err = r.Refresher(domain.ProviderTypeFitbit)
	assert.True(t, errors.Is(err, domain.ErrConnectorNotFound))

	_, err = r.Connector(domain.ProviderTypeGoogleFit)
	assert.True(t, errors.Is(err, domain.ErrConnectorNotFound))

	assert.Equal(t, []domain.ProviderType{domain.ProviderTypeFitbit, domain.ProviderTypeStrava}, r.SupportedProviders())
}

func TestRegistry_HooksDefaultToNoop(t *testing.T) {
	r := NewRegistry()
	assert.IsType(t, NoopHooks{}, r.Hooks(domain.ProviderTypeStrava))

	hooks := &mocks.MockLifecycleHooks{}
	r.RegisterHooks(domain.ProviderTypeFitbit, hooks)
	assert.Same(t, hooks, r.Hooks(domain.ProviderTypeFitbit))

	noop := NoopHooks{}
	link := &domain.ProviderLink{ID: "l1"}
	assert.NoError(t, noop.OnConnect(context.Background(), link))
	assert.NoError(t, noop.OnReconnect(context.Background(), link))
	assert.NoError(t, noop.OnDisconnect(context.Background(), link, "rt"))
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{200, nil},
		{204, nil},
		{400, domain.ErrProviderAuth},
		{401, domain.ErrProviderAuth},
		{403, domain.ErrProviderAuth},
		{429, domain.ErrProviderUnavailable},
		{500, domain.ErrProviderUnavailable},
		{503, domain.ErrProviderUnavailable},
		{302, domain.ErrProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := ClassifyStatus(tt.status)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestRefreshToken_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	tokenURL := srv.URL
	srv.Close()

	_, err := RefreshToken(context.Background(), NewHTTPClient(0), RefreshRequest{
		TokenURL: tokenURL,
		Form:     url.Values{"refresh_token": {"rt"}},
	})
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))
}

func TestRefreshToken_ParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		fmt.Fprint(w, `{"access_token":"a","refresh_token":"r","expires_in":3600,"token_type":"Bearer","scope":"activity"}`)
	}))
	defer srv.Close()

	token, err := RefreshToken(context.Background(), NewHTTPClient(0), RefreshRequest{
		TokenURL: srv.URL,
		Form:     url.Values{"refresh_token": {"rt"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "a", token.AccessToken)
	assert.Equal(t, "r", token.RefreshToken)
	assert.Equal(t, 3600, token.ExpiresIn)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, "activity", token.Scope)
}

func TestNewHTTPClient_Timeout(t *testing.T) {
	assert.Equal(t, 10*time.Second, NewHTTPClient(0).GetClient().Timeout)
	assert.Equal(t, 3*time.Second, NewHTTPClient(3*time.Second).GetClient().Timeout)
}
