package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// Ensure LinkTokenProvider implements the interface.
var _ driven.TokenProvider = (*LinkTokenProvider)(nil)

const (
	// expiryMargin treats tokens that expire within the margin as expired
	expiryMargin = time.Minute

	// defaultTokenLifetime applies when the provider omits expires_in
	defaultTokenLifetime = time.Hour
)

// refreshed is the outcome of one refresh shared by concurrent callers
type refreshed struct {
	accessToken  string
	refreshToken string
	expiry       time.Time
}

// LinkTokenProvider refreshes provider access tokens and caches them on the link.
// Concurrent refreshes of the same link collapse into one provider call.
type LinkTokenProvider struct {
	registry driven.ConnectorRegistry
	links    driven.LinkStore
	logger   *slog.Logger
	group    singleflight.Group
	now      func() time.Time
}

// NewLinkTokenProvider creates a token provider.
func NewLinkTokenProvider(registry driven.ConnectorRegistry, links driven.LinkStore, logger *slog.Logger) *LinkTokenProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkTokenProvider{
		registry: registry,
		links:    links,
		logger:   logger,
		now:      time.Now,
	}
}

// AccessToken returns the cached token while it is valid and refreshes otherwise.
func (p *LinkTokenProvider) AccessToken(ctx context.Context, link *domain.ProviderLink) (string, error) {
	if link.HasValidAccessToken(p.now().Add(expiryMargin)) {
		return link.AccessToken, nil
	}

	v, err, _ := p.group.Do(link.ID, func() (interface{}, error) {
		return p.refresh(ctx, link)
	})
	if err != nil {
		if errors.Is(err, domain.ErrProviderAuth) {
			link.MarkLoggedOut()
		}
		return "", err
	}

	r := v.(*refreshed)
	link.AccessToken = r.accessToken
	link.AccessTokenExpiry = &r.expiry
	if r.refreshToken != "" {
		link.RefreshToken = r.refreshToken
	}
	return r.accessToken, nil
}

func (p *LinkTokenProvider) refresh(ctx context.Context, link *domain.ProviderLink) (*refreshed, error) {
	if link.RefreshToken == "" {
		p.logOut(ctx, link, domain.ErrNoRefreshToken)
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderAuth, domain.ErrNoRefreshToken)
	}

	refresher, err := p.registry.Refresher(link.Provider)
	if err != nil {
		return nil, err
	}

	token, err := refresher.Refresh(ctx, link.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrProviderAuth) {
			p.logOut(ctx, link, err)
		}
		return nil, fmt.Errorf("refresh %s token: %w", link.Provider, err)
	}

	lifetime := time.Duration(token.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}
	r := &refreshed{
		accessToken:  token.AccessToken,
		refreshToken: token.RefreshToken,
		expiry:       p.now().Add(lifetime),
	}

	// The token is usable even if caching it failed; the next call refreshes again.
	if err := p.links.SaveTokens(ctx, link.ID, r.accessToken, r.expiry, r.refreshToken); err != nil {
		p.logger.Error("failed to persist refreshed tokens",
			"link_id", link.ID,
			"provider", link.Provider,
			"error", err,
		)
	}
	return r, nil
}

func (p *LinkTokenProvider) logOut(ctx context.Context, link *domain.ProviderLink, cause error) {
	p.logger.Warn("provider link logged out",
		"link_id", link.ID,
		"provider", link.Provider,
		"cause", cause,
	)
	if err := p.links.MarkLoggedOut(ctx, link.ID); err != nil {
		p.logger.Error("failed to mark link logged out", "link_id", link.ID, "error", err)
	}
}
