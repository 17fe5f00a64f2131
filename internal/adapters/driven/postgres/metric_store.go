package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.MetricStore     = (*MetricStore)(nil)
	_ driven.WebhookLogStore = (*WebhookLogStore)(nil)
	_ driven.HealthDataStore = (*HealthDataStore)(nil)
)

// MetricStore records delivery aggregates
type MetricStore struct {
	db *DB
}

// NewMetricStore creates a new MetricStore
func NewMetricStore(db *DB) *MetricStore {
	return &MetricStore{db: db}
}

// RecordSyncMetrics inserts every metric in one transaction
func (s *MetricStore) RecordSyncMetrics(ctx context.Context, metrics []*domain.DataSyncMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO data_sync_metrics (account_id, data_type, provider, value, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range metrics {
			if _, err := stmt.ExecContext(ctx, m.AccountID, m.DataType, string(m.Provider), m.Value, m.CreatedAt); err != nil {
				return fmt.Errorf("insert metric %s/%s: %w", m.AccountID, m.DataType, err)
			}
		}
		return nil
	})
}

// WebhookLogStore keeps debug copies of delivered chunks
type WebhookLogStore struct {
	db *DB
}

// NewWebhookLogStore creates a new WebhookLogStore
func NewWebhookLogStore(db *DB) *WebhookLogStore {
	return &WebhookLogStore{db: db}
}

func (s *WebhookLogStore) Save(ctx context.Context, log *domain.WebhookLog) error {
	payload, err := json.Marshal(log.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO webhook_logs (id, account_id, user_uuid, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, log.ID, log.AccountID, log.UserUUID, payload, log.CreatedAt)
	return err
}

func (s *WebhookLogStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM webhook_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// HealthDataStore stores data for accounts whose storage policy allows it
type HealthDataStore struct {
	db *DB
}

// NewHealthDataStore creates a new HealthDataStore
func NewHealthDataStore(db *DB) *HealthDataStore {
	return &HealthDataStore{db: db}
}

// SaveEntries inserts every point of the payload in one transaction
func (s *HealthDataStore) SaveEntries(ctx context.Context, connectionID string, provider domain.ProviderType, payload domain.Payload) error {
	if payload.Count() == 0 {
		return nil
	}
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO health_data_entries
				(connection_id, provider, data_type, start_time, end_time, value, manual_entry, source_device, extra)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, dataType := range payload.Types() {
			for _, p := range payload[dataType] {
				extra, err := jsonb(p.Extra)
				if err != nil {
					return err
				}
				_, err = stmt.ExecContext(ctx,
					connectionID,
					string(provider),
					dataType,
					p.StartTime,
					p.EndTime,
					p.Value,
					p.ManualEntry,
					NullString(p.SourceDevice),
					extra,
				)
				if err != nil {
					return fmt.Errorf("insert %s entry: %w", dataType, err)
				}
			}
		}
		return nil
	})
}
