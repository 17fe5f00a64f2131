package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driving"
)

var _ driving.ConnectionService = (*ConnectionService)(nil)

// ConnectionService manages explicit provider link transitions: connect,
// reconnect and disconnect. Each transition runs the provider's lifecycle hooks.
type ConnectionService struct {
	accounts    driven.AccountStore
	connections driven.ConnectionStore
	links       driven.LinkStore
	registry    driven.ConnectorRegistry
	queue       driven.TaskQueue
	logger      *slog.Logger
	now         func() time.Time
}

// ConnectionServiceConfig holds dependencies for ConnectionService.
type ConnectionServiceConfig struct {
	Accounts    driven.AccountStore
	Connections driven.ConnectionStore
	Links       driven.LinkStore
	Registry    driven.ConnectorRegistry
	Queue       driven.TaskQueue
	Logger      *slog.Logger
}

// NewConnectionService creates a new connection service.
func NewConnectionService(cfg ConnectionServiceConfig) *ConnectionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionService{
		accounts:    cfg.Accounts,
		connections: cfg.Connections,
		links:       cfg.Links,
		registry:    cfg.Registry,
		queue:       cfg.Queue,
		logger:      logger,
		now:         time.Now,
	}
}

// Connect upserts the link for (account, user, provider) and marks it logged in.
// A new link runs OnConnect; a logged-out link runs OnReconnect.
// Pulled providers get an immediate sync.
func (s *ConnectionService) Connect(ctx context.Context, req domain.ConnectRequest) (*domain.ProviderLink, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.accounts.Get(ctx, req.AccountID); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	now := s.now()
	conn, err := s.connections.Create(ctx, &domain.Connection{
		ID:        domain.GenerateID(),
		AccountID: req.AccountID,
		UserUUID:  req.UserUUID,
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}

	link, err := s.links.GetByConnection(ctx, conn.ID, req.Provider)
	isNew := errors.Is(err, domain.ErrNotFound)
	if err != nil && !isNew {
		return nil, fmt.Errorf("get link: %w", err)
	}
	if isNew {
		link = &domain.ProviderLink{
			ID:           domain.GenerateID(),
			ConnectionID: conn.ID,
			AccountID:    conn.AccountID,
			Provider:     req.Provider,
			CreatedAt:    now,
		}
	}
	wasLoggedOut := !isNew && !link.LoggedIn

	link.LoggedIn = true
	link.RefreshToken = req.RefreshToken
	link.AccessToken = ""
	link.AccessTokenExpiry = nil
	if req.AccessToken != "" && req.ExpiresIn > 0 {
		expiry := now.Add(time.Duration(req.ExpiresIn) * time.Second)
		link.AccessToken = req.AccessToken
		link.AccessTokenExpiry = &expiry
	}
	if req.ProviderUserID != "" {
		link.ProviderUserID = req.ProviderUserID
	}
	link.SyncManualEntries = req.SyncManualEntries
	if req.DeviceUUIDs != nil {
		link.DeviceUUIDs = req.DeviceUUIDs
	}
	link.UpdatedAt = now

	// hooks may resolve a token through the store, so the link is saved first
	if err := s.links.Save(ctx, link); err != nil {
		return nil, fmt.Errorf("save link: %w", err)
	}

	hooks := s.registry.Hooks(link.Provider)
	var hookErr error
	switch {
	case isNew:
		hookErr = hooks.OnConnect(ctx, link)
	case wasLoggedOut:
		hookErr = hooks.OnReconnect(ctx, link)
	}
	if hookErr != nil {
		s.logger.Warn("lifecycle hook failed", "link_id", link.ID, "provider", link.Provider, "error", hookErr)
	}
	if isNew || wasLoggedOut {
		if err := s.links.Save(ctx, link); err != nil {
			return nil, fmt.Errorf("save link: %w", err)
		}
	}

	if link.Provider.IsPulled() {
		if err := s.queue.Enqueue(ctx, domain.NewSyncLinkTask(link.ID)); err != nil {
			s.logger.Warn("failed to enqueue initial sync", "link_id", link.ID, "error", err)
		}
	}

	s.logger.Info("provider connected",
		"link_id", link.ID,
		"connection_id", conn.ID,
		"provider", link.Provider,
		"reconnect", wasLoggedOut,
	)
	return link, nil
}

// Disconnect logs the link out at the user's request and runs OnDisconnect
// with the refresh token the link held before it was cleared.
func (s *ConnectionService) Disconnect(ctx context.Context, linkID string) error {
	link, err := s.links.Get(ctx, linkID)
	if err != nil {
		return fmt.Errorf("get link: %w", err)
	}
	if !link.LoggedIn {
		return nil
	}

	previous := link.RefreshToken
	link.MarkLoggedOut()
	link.UpdatedAt = s.now()
	if err := s.links.Save(ctx, link); err != nil {
		return fmt.Errorf("save link: %w", err)
	}

	if err := s.registry.Hooks(link.Provider).OnDisconnect(ctx, link, previous); err != nil {
		s.logger.Warn("disconnect hook failed", "link_id", link.ID, "provider", link.Provider, "error", err)
	}
	s.logger.Info("provider disconnected", "link_id", link.ID, "provider", link.Provider)
	return nil
}

// Status returns the connection-status view of a link.
func (s *ConnectionService) Status(ctx context.Context, linkID string) (*domain.LinkStatus, error) {
	link, err := s.links.Get(ctx, linkID)
	if err != nil {
		return nil, err
	}
	return link.Status(), nil
}
