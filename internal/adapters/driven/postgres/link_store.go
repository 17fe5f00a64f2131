package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/lib/pq"
)

// Verify interface compliance
var _ driven.LinkStore = (*LinkStore)(nil)

// LinkStore implements driven.LinkStore using PostgreSQL.
// Tokens are sealed with the TokenCipher before they reach the table.
type LinkStore struct {
	db     *DB
	cipher *TokenCipher
}

// NewLinkStore creates a new LinkStore. A nil cipher stores tokens unencrypted.
func NewLinkStore(db *DB, cipher *TokenCipher) *LinkStore {
	return &LinkStore{db: db, cipher: cipher}
}

const linkColumns = `
	l.id, l.connection_id, l.provider, c.account_id,
	l.refresh_token, l.access_token, l.access_token_expiry,
	l.logged_in, l.last_sync, l.watermarks, l.sync_manual_entries, l.device_uuids,
	l.provider_user_id, l.subscription_id, l.created_at, l.updated_at`

const linkFrom = ` FROM provider_links l JOIN connections c ON c.id = l.connection_id `

func (s *LinkStore) scan(row interface{ Scan(...any) error }) (*domain.ProviderLink, error) {
	var l domain.ProviderLink
	var refresh, access, watermarks []byte
	var expiry, lastSync sql.NullTime

	err := row.Scan(
		&l.ID,
		&l.ConnectionID,
		&l.Provider,
		&l.AccountID,
		&refresh,
		&access,
		&expiry,
		&l.LoggedIn,
		&lastSync,
		&watermarks,
		&l.SyncManualEntries,
		pq.Array(&l.DeviceUUIDs),
		&l.ProviderUserID,
		&l.SubscriptionID,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if l.RefreshToken, err = s.cipher.Open(refresh); err != nil {
		return nil, fmt.Errorf("open refresh token of %s: %w", l.ID, err)
	}
	if l.AccessToken, err = s.cipher.Open(access); err != nil {
		return nil, fmt.Errorf("open access token of %s: %w", l.ID, err)
	}
	l.AccessTokenExpiry = TimePtr(expiry)
	l.LastSync = TimePtr(lastSync)

	l.Watermarks = make(map[string]int64)
	if len(watermarks) > 0 {
		if err := json.Unmarshal(watermarks, &l.Watermarks); err != nil {
			return nil, fmt.Errorf("decode watermarks of %s: %w", l.ID, err)
		}
	}
	return &l, nil
}

func (s *LinkStore) queryOne(ctx context.Context, where string, args ...any) (*domain.ProviderLink, error) {
	return s.scan(s.db.QueryRowContext(ctx, `SELECT `+linkColumns+linkFrom+where, args...))
}

// Get retrieves a link by ID
func (s *LinkStore) Get(ctx context.Context, id string) (*domain.ProviderLink, error) {
	return s.queryOne(ctx, `WHERE l.id = $1`, id)
}

// GetByConnection retrieves the link of a connection for one provider
func (s *LinkStore) GetByConnection(ctx context.Context, connectionID string, provider domain.ProviderType) (*domain.ProviderLink, error) {
	return s.queryOne(ctx, `WHERE l.connection_id = $1 AND l.provider = $2`, connectionID, string(provider))
}

// FindByProviderUser resolves a logged-in link from the provider's user id
func (s *LinkStore) FindByProviderUser(ctx context.Context, provider domain.ProviderType, providerUserID string) (*domain.ProviderLink, error) {
	return s.queryOne(ctx, `WHERE l.provider = $1 AND l.provider_user_id = $2 ORDER BY l.logged_in DESC, l.updated_at DESC LIMIT 1`,
		string(provider), providerUserID)
}

// FindBySubscription resolves a link from our push subscription id
func (s *LinkStore) FindBySubscription(ctx context.Context, provider domain.ProviderType, subscriptionID string) (*domain.ProviderLink, error) {
	return s.queryOne(ctx, `WHERE l.provider = $1 AND l.subscription_id = $2`, string(provider), subscriptionID)
}

// ListEligible returns logged-in links whose account has a webhook URL
func (s *LinkStore) ListEligible(ctx context.Context, provider domain.ProviderType) ([]*domain.ProviderLink, error) {
	query := `SELECT ` + linkColumns + linkFrom + `
		JOIN accounts a ON a.id = c.account_id
		WHERE l.provider = $1 AND l.logged_in AND a.webhook_url <> ''
		ORDER BY c.account_id, l.id`

	rows, err := s.db.QueryContext(ctx, query, string(provider))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*domain.ProviderLink
	for rows.Next() {
		l, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// Save creates or updates a link
func (s *LinkStore) Save(ctx context.Context, link *domain.ProviderLink) error {
	refresh, err := s.cipher.Seal(link.RefreshToken)
	if err != nil {
		return err
	}
	access, err := s.cipher.Seal(link.AccessToken)
	if err != nil {
		return err
	}
	watermarks, err := jsonb(link.Watermarks)
	if err != nil {
		return err
	}

	now := time.Now()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now

	query := `
		INSERT INTO provider_links (id, connection_id, provider, refresh_token, access_token, access_token_expiry,
			logged_in, last_sync, watermarks, sync_manual_entries, device_uuids, provider_user_id, subscription_id,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			refresh_token = EXCLUDED.refresh_token,
			access_token = EXCLUDED.access_token,
			access_token_expiry = EXCLUDED.access_token_expiry,
			logged_in = EXCLUDED.logged_in,
			sync_manual_entries = EXCLUDED.sync_manual_entries,
			device_uuids = EXCLUDED.device_uuids,
			provider_user_id = EXCLUDED.provider_user_id,
			subscription_id = EXCLUDED.subscription_id,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		link.ID,
		link.ConnectionID,
		string(link.Provider),
		nullBytes(refresh),
		nullBytes(access),
		NullTime(link.AccessTokenExpiry),
		link.LoggedIn,
		NullTime(link.LastSync),
		watermarks,
		link.SyncManualEntries,
		pq.Array(link.DeviceUUIDs),
		link.ProviderUserID,
		link.SubscriptionID,
		link.CreatedAt,
		link.UpdatedAt,
	)
	return err
}

// SaveTokens caches a fresh access token and any rotated refresh token
func (s *LinkStore) SaveTokens(ctx context.Context, id, accessToken string, expiry time.Time, refreshToken string) error {
	access, err := s.cipher.Seal(accessToken)
	if err != nil {
		return err
	}
	refresh, err := s.cipher.Seal(refreshToken)
	if err != nil {
		return err
	}

	query := `
		UPDATE provider_links
		SET access_token = $2, access_token_expiry = $3,
			refresh_token = COALESCE($4, refresh_token), updated_at = $5
		WHERE id = $1
	`
	return s.execOne(ctx, query, id, nullBytes(access), expiry, nullBytes(refresh), time.Now())
}

// MarkLoggedOut clears the credentials and flips logged_in to false
func (s *LinkStore) MarkLoggedOut(ctx context.Context, id string) error {
	query := `
		UPDATE provider_links
		SET logged_in = FALSE, refresh_token = NULL, access_token = NULL,
			access_token_expiry = NULL, updated_at = $2
		WHERE id = $1
	`
	return s.execOne(ctx, query, id, time.Now())
}

// CommitSync sets last_sync and merges watermarks, keeping the larger value per stream
func (s *LinkStore) CommitSync(ctx context.Context, id string, lastSync time.Time, watermarks map[string]int64) error {
	buffered, err := jsonb(watermarks)
	if err != nil {
		return err
	}

	query := `
		UPDATE provider_links p
		SET last_sync = $2, updated_at = $2,
			watermarks = p.watermarks || COALESCE((
				SELECT jsonb_object_agg(n.key, GREATEST(n.value::bigint, COALESCE((p.watermarks->>n.key)::bigint, n.value::bigint)))
				FROM jsonb_each_text($3::jsonb) n
			), '{}'::jsonb)
		WHERE p.id = $1
	`
	return s.execOne(ctx, query, id, lastSync, buffered)
}

// TouchLastSync sets last_sync without touching watermarks
func (s *LinkStore) TouchLastSync(ctx context.Context, id string, lastSync time.Time) error {
	return s.execOne(ctx, `UPDATE provider_links SET last_sync = $2, updated_at = $2 WHERE id = $1`, id, lastSync)
}

func (s *LinkStore) execOne(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
