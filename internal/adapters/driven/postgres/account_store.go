package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/lib/pq"
)

// Verify interface compliance
var (
	_ driven.AccountStore    = (*AccountStore)(nil)
	_ driven.ConnectionStore = (*ConnectionStore)(nil)
)

// AccountStore implements driven.AccountStore using PostgreSQL
type AccountStore struct {
	db *DB
}

// NewAccountStore creates a new AccountStore
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `id, name, api_key, webhook_url, data_storage_option, enabled_data_types, debug_store_webhook_logs`

func scanAccount(row interface{ Scan(...any) error }) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Key,
		&a.WebhookURL,
		&a.DataStorageOption,
		pq.Array(&a.EnabledDataTypes),
		&a.DebugStoreWebhookLogs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Get retrieves an account by ID
func (s *AccountStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, id))
}

// GetByKey retrieves an account by its API key
func (s *AccountStore) GetByKey(ctx context.Context, key string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE api_key = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, key))
}

// ClearWebhookURL removes the webhook URL after auto-disable
func (s *AccountStore) ClearWebhookURL(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE accounts SET webhook_url = '' WHERE id = $1`, id)
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

// ConnectionStore implements driven.ConnectionStore using PostgreSQL
type ConnectionStore struct {
	db *DB
}

// NewConnectionStore creates a new ConnectionStore
func NewConnectionStore(db *DB) *ConnectionStore {
	return &ConnectionStore{db: db}
}

func scanConnection(row interface{ Scan(...any) error }) (*domain.Connection, error) {
	var c domain.Connection
	err := row.Scan(&c.ID, &c.AccountID, &c.UserUUID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Get retrieves a connection by ID
func (s *ConnectionStore) Get(ctx context.Context, id string) (*domain.Connection, error) {
	query := `SELECT id, account_id, user_uuid, created_at FROM connections WHERE id = $1`
	return scanConnection(s.db.QueryRowContext(ctx, query, id))
}

// GetByUser retrieves the connection of an end user within an account
func (s *ConnectionStore) GetByUser(ctx context.Context, accountID, userUUID string) (*domain.Connection, error) {
	query := `SELECT id, account_id, user_uuid, created_at FROM connections WHERE account_id = $1 AND user_uuid = $2`
	return scanConnection(s.db.QueryRowContext(ctx, query, accountID, userUUID))
}

// Create inserts a connection or returns the existing one for (account, user)
func (s *ConnectionStore) Create(ctx context.Context, conn *domain.Connection) (*domain.Connection, error) {
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO connections (id, account_id, user_uuid, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, user_uuid) DO UPDATE SET user_uuid = EXCLUDED.user_uuid
		RETURNING id, account_id, user_uuid, created_at
	`
	return scanConnection(s.db.QueryRowContext(ctx, query, conn.ID, conn.AccountID, conn.UserUUID, conn.CreatedAt))
}
