package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	upsertPriceSampleSQL = `INSERT INTO price_samples (
        item_id,
        bucket_ts,
        instant_buy,
        instant_sell,
        change_pct,
        buy_volume,
        sell_volume,
        source
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (item_id, bucket_ts) DO UPDATE
    SET
        instant_buy  = EXCLUDED.instant_buy,
        instant_sell = EXCLUDED.instant_sell,
        change_pct   = EXCLUDED.change_pct,
        buy_volume   = EXCLUDED.buy_volume,
        sell_volume  = EXCLUDED.sell_volume,
        source       = EXCLUDED.source;`

	listSamplesForItemSQL = `SELECT
        item_id,
        bucket_ts,
        instant_buy,
        instant_sell,
        change_pct,
        buy_volume,
        sell_volume,
        source,
        created_at
    FROM price_samples
    WHERE item_id = $1
      AND bucket_ts >= $2
      AND bucket_ts < $3
    ORDER BY bucket_ts;`

	countSamplesSQL = `SELECT COUNT(*) FROM price_samples;`

	insertAlertSQL = `INSERT INTO alerts (
        server_id,
        channel_id,
        item_id,
        alert_type,
        severity,
        change_pct,
        payload
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    RETURNING id, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        server_id,
        channel_id,
        item_id,
        alert_type,
        severity,
        change_pct,
        payload,
        created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`
)

// PriceSampleStore defines operations for price sample persistence.
type PriceSampleStore interface {
	UpsertPriceSample(ctx context.Context, sample PriceSample) error
	ListSamplesForItem(ctx context.Context, itemID int, from, to time.Time) ([]PriceSample, error)
	CountSamples(ctx context.Context) (int64, error)
}

// AlertAuditStore defines operations for alert auditing.
type AlertAuditStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// Store aggregates access to price samples and alert audit records.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertPriceSample persists or updates a price sample.
func (s *Store) UpsertPriceSample(ctx context.Context, sample PriceSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var changePct interface{}
	if sample.ChangePct != nil {
		changePct = sample.ChangePct.String()
	}

	_, execErr := pool.Exec(ctx, upsertPriceSampleSQL,
		sample.ItemID,
		sample.Bucket,
		sample.InstantBuy,
		sample.InstantSell,
		changePct,
		sample.BuyVolume,
		sample.SellVolume,
		sample.Source,
	)
	if execErr != nil {
		return fmt.Errorf("upsert price sample: %w", execErr)
	}
	return nil
}

// ListSamplesForItem lists one item's samples within a time window.
func (s *Store) ListSamplesForItem(ctx context.Context, itemID int, from, to time.Time) ([]PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesForItemSQL, itemID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples for item: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]PriceSample, 0)
	for rows.Next() {
		sample, scanErr := scanPriceSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// CountSamples counts stored samples.
func (s *Store) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	var changePct interface{}
	if alert.ChangePct != nil {
		changePct = alert.ChangePct.String()
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.ServerID,
		alert.ChannelID,
		alert.ItemID,
		alert.AlertType,
		alert.Severity,
		changePct,
		[]byte(alert.Payload),
	)

	rec := alert
	if scanErr := row.Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alert emissions.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		var rec AlertRecord
		var changePct sql.NullString
		var payload json.RawMessage
		if err := rows.Scan(
			&rec.ID,
			&rec.ServerID,
			&rec.ChannelID,
			&rec.ItemID,
			&rec.AlertType,
			&rec.Severity,
			&changePct,
			&payload,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		if changePct.Valid {
			parsed, convErr := decimal.NewFromString(changePct.String)
			if convErr != nil {
				return nil, fmt.Errorf("parse change pct: %w", convErr)
			}
			rec.ChangePct = &parsed
		}
		rec.Payload = payload

		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alert records.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func scanPriceSample(rows pgx.Rows) (PriceSample, error) {
	var (
		sample    PriceSample
		buy       sql.NullInt64
		sell      sql.NullInt64
		changePct sql.NullString
		buyVol    sql.NullInt64
		sellVol   sql.NullInt64
	)

	if err := rows.Scan(
		&sample.ItemID,
		&sample.Bucket,
		&buy,
		&sell,
		&changePct,
		&buyVol,
		&sellVol,
		&sample.Source,
		&sample.CreatedAt,
	); err != nil {
		return PriceSample{}, err
	}

	if buy.Valid {
		v := buy.Int64
		sample.InstantBuy = &v
	}
	if sell.Valid {
		v := sell.Int64
		sample.InstantSell = &v
	}
	if changePct.Valid {
		parsed, err := decimal.NewFromString(changePct.String)
		if err != nil {
			return PriceSample{}, fmt.Errorf("parse change pct: %w", err)
		}
		sample.ChangePct = &parsed
	}
	if buyVol.Valid {
		v := buyVol.Int64
		sample.BuyVolume = &v
	}
	if sellVol.Valid {
		v := sellVol.Int64
		sample.SellVolume = &v
	}

	return sample, nil
}
