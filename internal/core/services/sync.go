package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driving"
)

var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// SyncOrchestrator pulls new data for provider links and hands it to delivery.
// Each link sync runs under the link's distributed lock:
//  1. Reload the link and skip it when logged out
//  2. Obtain an access token (refreshing if needed)
//  3. Fetch points newer than the link's watermarks
//  4. Normalise to canonical types enabled on the account
//  5. Deliver and/or store according to the storage policy
//  6. Commit last_sync and the buffered watermarks
type SyncOrchestrator struct {
	links       driven.LinkStore
	connections driven.ConnectionStore
	accounts    driven.AccountStore
	registry    driven.ConnectorRegistry
	tokens      driven.TokenProvider
	normalisers driven.NormaliserRegistry
	delivery    *DeliveryService
	lock        driven.DistributedLock
	pool        pond.Pool
	lockTTL     time.Duration
	fanout      int
	logger      *slog.Logger
	now         func() time.Time
}

// SyncOrchestratorConfig holds dependencies for SyncOrchestrator.
type SyncOrchestratorConfig struct {
	Links       driven.LinkStore
	Connections driven.ConnectionStore
	Accounts    driven.AccountStore
	Registry    driven.ConnectorRegistry
	Tokens      driven.TokenProvider
	Normalisers driven.NormaliserRegistry
	Delivery    *DeliveryService
	Lock        driven.DistributedLock

	LockTTL       time.Duration
	FanoutSlice   int
	PoolSize      int
	PoolQueueSize int
	Logger        *slog.Logger
}

// NewSyncOrchestrator creates a new sync orchestrator.
func NewSyncOrchestrator(cfg SyncOrchestratorConfig) *SyncOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = domain.DefaultSyncLockTTL
	}
	if cfg.FanoutSlice <= 0 {
		cfg.FanoutSlice = domain.DefaultFanoutSlice
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 32
	}

	var opts []pond.Option
	if cfg.PoolQueueSize > 0 {
		opts = append(opts, pond.WithQueueSize(cfg.PoolQueueSize))
	}

	return &SyncOrchestrator{
		links:       cfg.Links,
		connections: cfg.Connections,
		accounts:    cfg.Accounts,
		registry:    cfg.Registry,
		tokens:      cfg.Tokens,
		normalisers: cfg.Normalisers,
		delivery:    cfg.Delivery,
		lock:        cfg.Lock,
		pool:        pond.NewPool(cfg.PoolSize, opts...),
		lockTTL:     cfg.LockTTL,
		fanout:      cfg.FanoutSlice,
		logger:      logger,
		now:         time.Now,
	}
}

// Close stops the fan-out pool after running tasks finish.
func (o *SyncOrchestrator) Close() {
	o.pool.StopAndWait()
}

// SyncLink synchronizes one provider link.
// A link whose lock is held elsewhere is skipped without error.
func (o *SyncOrchestrator) SyncLink(ctx context.Context, linkID string) (*domain.SyncResult, error) {
	startTime := o.now()
	lockName := domain.SyncLockName(linkID)

	acquired, err := o.lock.Acquire(ctx, lockName, o.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !acquired {
		o.logger.Debug("sync already in progress", "link_id", linkID)
		return &domain.SyncResult{LinkID: linkID, Skipped: true}, nil
	}
	defer func() {
		if err := o.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
			o.logger.Warn("failed to release sync lock", "link_id", linkID, "error", err)
		}
	}()

	// Reload under the lock so concurrent disconnects are observed
	link, err := o.links.Get(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	result := &domain.SyncResult{LinkID: link.ID, Provider: link.Provider}

	if !link.LoggedIn {
		result.Skipped = true
		return result, nil
	}

	conn, err := o.connections.Get(ctx, link.ConnectionID)
	if err != nil {
		return o.failSync(result, startTime, fmt.Errorf("get connection: %w", err))
	}
	account, err := o.accounts.Get(ctx, conn.AccountID)
	if err != nil {
		return o.failSync(result, startTime, fmt.Errorf("get account: %w", err))
	}

	token, err := o.tokens.AccessToken(ctx, link)
	if err != nil {
		if errors.Is(err, domain.ErrProviderAuth) {
			o.logger.Info("link logged out during sync", "link_id", link.ID, "provider", link.Provider)
			result.LoggedOut = true
			result.Error = err.Error()
			result.Duration = o.now().Sub(startTime).Seconds()
			return result, nil
		}
		return o.failSync(result, startTime, fmt.Errorf("access token: %w", err))
	}

	connector, err := o.registry.Connector(link.Provider)
	if err != nil {
		return o.failSync(result, startTime, err)
	}
	normaliser := o.normalisers.Get(link.Provider)
	if normaliser == nil {
		return o.failSync(result, startTime, fmt.Errorf("no normaliser for %s", link.Provider))
	}

	fetched, err := connector.Fetch(ctx, driven.FetchRequest{
		Link:        link,
		AccessToken: token,
		DataTypes:   normaliser.NativeTypes(account.EnabledDataTypes),
		Now:         startTime,
	})
	if err != nil {
		return o.failSync(result, startTime, fmt.Errorf("fetch: %w", err))
	}
	result.Stats.PointsFetched = fetched.Count()

	payload, dropped := o.normalisers.Normalise(link.Provider, fetched.Points, account.EnabledSet())
	result.Stats.PointsDropped = dropped

	delivered, err := o.delivery.Process(ctx, payload, account, conn, link.Provider)
	if err != nil {
		return o.failSync(result, startTime, fmt.Errorf("deliver: %w", err))
	}
	if delivered != nil {
		result.Stats.ChunksPersisted = delivered.Persisted
		if delivered.Success() {
			result.Stats.PointsDelivered = payload.Count()
		}
	}

	if err := o.links.CommitSync(ctx, link.ID, o.now(), fetched.Watermarks); err != nil {
		return o.failSync(result, startTime, fmt.Errorf("commit sync: %w", err))
	}

	result.Success = true
	result.Duration = o.now().Sub(startTime).Seconds()
	o.logger.Info("sync completed",
		"link_id", link.ID,
		"provider", link.Provider,
		"duration_seconds", result.Duration,
		"points_fetched", result.Stats.PointsFetched,
		"points_dropped", result.Stats.PointsDropped,
		"chunks_persisted", result.Stats.ChunksPersisted,
	)
	return result, nil
}

// failSync records the error on the result. Stored watermarks are untouched.
func (o *SyncOrchestrator) failSync(result *domain.SyncResult, startTime time.Time, err error) (*domain.SyncResult, error) {
	result.Success = false
	result.Error = err.Error()
	result.Duration = o.now().Sub(startTime).Seconds()

	o.logger.Error("sync failed",
		"link_id", result.LinkID,
		"provider", result.Provider,
		"error", err,
	)
	return result, err
}

// SyncProvider sweeps every eligible link of a provider. Links are grouped by
// account and dispatched in bounded slices; one failing link never aborts the sweep.
func (o *SyncOrchestrator) SyncProvider(ctx context.Context, provider domain.ProviderType) (*domain.SweepResult, error) {
	startTime := o.now()
	sweep := &domain.SweepResult{Provider: provider}

	if _, err := o.registry.Connector(provider); err != nil {
		return nil, err
	}

	links, err := o.links.ListEligible(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("list eligible links: %w", err)
	}

	var order []string
	byAccount := make(map[string][]*domain.ProviderLink)
	allowed := make(map[string]bool)
	for _, link := range links {
		ok, seen := allowed[link.AccountID]
		if !seen {
			account, err := o.accounts.Get(ctx, link.AccountID)
			ok = err == nil && account.HasWebhook() && account.AllowsWebhook()
			allowed[link.AccountID] = ok
		}
		if !ok {
			continue
		}
		if _, exists := byAccount[link.AccountID]; !exists {
			order = append(order, link.AccountID)
		}
		byAccount[link.AccountID] = append(byAccount[link.AccountID], link)
	}

	var mu sync.Mutex
	record := func(res *domain.SyncResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			sweep.Failed++
		case res.Skipped:
			sweep.Skipped++
		case res.LoggedOut:
			sweep.LoggedOut++
		default:
			sweep.Synced++
		}
	}

	for _, accountID := range order {
		accountLinks := byAccount[accountID]
		sweep.Eligible += len(accountLinks)

		for _, slice := range sliceLinks(accountLinks, o.fanout) {
			if ctx.Err() != nil {
				return sweep, ctx.Err()
			}

			group := o.pool.NewGroup()
			for _, link := range slice {
				linkID := link.ID
				group.Submit(func() {
					record(o.SyncLink(ctx, linkID))
				})
			}
			if err := group.Wait(); err != nil {
				o.logger.Error("sync slice aborted", "account_id", accountID, "error", err)
			}
		}
	}

	sweep.Duration = o.now().Sub(startTime).Seconds()
	o.logger.Info("provider sweep completed",
		"provider", provider,
		"eligible", sweep.Eligible,
		"synced", sweep.Synced,
		"skipped", sweep.Skipped,
		"logged_out", sweep.LoggedOut,
		"failed", sweep.Failed,
		"duration_seconds", sweep.Duration,
	)
	return sweep, nil
}

// sliceLinks splits links into consecutive slices of at most size
func sliceLinks(links []*domain.ProviderLink, size int) [][]*domain.ProviderLink {
	var out [][]*domain.ProviderLink
	for start := 0; start < len(links); start += size {
		end := start + size
		if end > len(links) {
			end = len(links)
		}
		out = append(out, links[start:end])
	}
	return out
}
