package fitbit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Pulkit07/metric-health-backend/internal/adapters/driven/connectors"
	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// Ensure Hooks implements the interface.
var _ driven.LifecycleHooks = (*Hooks)(nil)

// Hooks keeps a Fitbit push subscription in step with the link.
type Hooks struct {
	connector *Connector
	tokens    driven.TokenProvider
}

// NewHooks creates Fitbit lifecycle hooks. Access tokens for subscribing come
// from the token provider so rotated refresh tokens are persisted.
func NewHooks(connector *Connector, tokens driven.TokenProvider) *Hooks {
	return &Hooks{connector: connector, tokens: tokens}
}

// OnConnect creates the subscription, assigning the link a subscription id first
// if it has none. The caller persists the link afterwards.
func (h *Hooks) OnConnect(ctx context.Context, link *domain.ProviderLink) error {
	if link.SubscriptionID == "" {
		link.SubscriptionID = domain.GenerateID()
	}
	token, err := h.tokens.AccessToken(ctx, link)
	if err != nil {
		return fmt.Errorf("fitbit subscribe: %w", err)
	}
	return h.connector.subscription(ctx, http.MethodPost, token, link)
}

// OnReconnect recreates the subscription.
func (h *Hooks) OnReconnect(ctx context.Context, link *domain.ProviderLink) error {
	return h.OnConnect(ctx, link)
}

// OnDisconnect deletes the subscription using the refresh token the link held
// before it was cleared.
func (h *Hooks) OnDisconnect(ctx context.Context, link *domain.ProviderLink, refreshToken string) error {
	if link.SubscriptionID == "" || refreshToken == "" {
		return nil
	}
	token, err := h.connector.Refresh(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("fitbit unsubscribe: %w", err)
	}
	return h.connector.subscription(ctx, http.MethodDelete, token.AccessToken, link)
}

func (c *Connector) subscription(ctx context.Context, method, token string, link *domain.ProviderLink) error {
	endpoint := fmt.Sprintf("%s/1/user/-/apiSubscriptions/%s.json", c.cfg.APIBaseURL, link.SubscriptionID)

	resp, err := c.client.R().
		SetContext(ctx).
		SetBearerAuthToken(token).
		SetHeader("Content-Type", "application/json").
		Send(method, endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		c.logger.Info("fitbit subscription updated",
			"link_id", link.ID,
			"method", method,
			"status", resp.StatusCode,
		)
		return nil
	case http.StatusConflict:
		c.logger.Warn("fitbit subscription exists with a different id", "link_id", link.ID)
		return nil
	}
	if err := connectors.ClassifyStatus(resp.StatusCode); err != nil {
		return fmt.Errorf("fitbit subscription %s: %w (status %d)", method, err, resp.StatusCode)
	}
	return nil
}
