package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chromebook-cache/backend/internal/usage/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a usage ledger repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create appends one observation.
func (r *PostgresRepository) Create(ctx context.Context, o *domain.Observation) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chromebook_usage (serial_number, asset_id, user_email, recorded_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		o.SerialNumber, toNullString(o.AssetID), o.UserEmail, o.RecordedAt, now)
	return err
}

// LatestBySerial returns the most recent observation for the serial number, or nil if none exists.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) LatestBySerial(ctx context.Context, serialNumber string) (*domain.Observation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, serial_number, asset_id, user_email, recorded_at, created_at, updated_at
		FROM chromebook_usage
		WHERE serial_number = $1
		ORDER BY recorded_at DESC
		LIMIT 1`,
		serialNumber)

	o, err := scanObservation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// FindBySerial returns observations for the exact serial number, newest first, limited.
func (r *PostgresRepository) FindBySerial(ctx context.Context, serialNumber string, limit int) ([]*domain.Observation, error) {
	return r.query(ctx, `
		SELECT id, serial_number, asset_id, user_email, recorded_at, created_at, updated_at
		FROM chromebook_usage
		WHERE serial_number = $1
		ORDER BY recorded_at DESC
		LIMIT $2`,
		serialNumber, limit)
}

// FindByUserEmail returns observations whose user email contains the fragment, newest first, limited.
func (r *PostgresRepository) FindByUserEmail(ctx context.Context, emailFragment string, limit int) ([]*domain.Observation, error) {
	return r.query(ctx, `
		SELECT id, serial_number, asset_id, user_email, recorded_at, created_at, updated_at
		FROM chromebook_usage
		WHERE user_email LIKE '%' || $1 || '%'
		ORDER BY recorded_at DESC
		LIMIT $2`,
		emailFragment, limit)
}

// FindByAssetID returns observations for the exact asset id, newest first, limited.
func (r *PostgresRepository) FindByAssetID(ctx context.Context, assetID string, limit int) ([]*domain.Observation, error) {
	return r.query(ctx, `
		SELECT id, serial_number, asset_id, user_email, recorded_at, created_at, updated_at
		FROM chromebook_usage
		WHERE asset_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2`,
		assetID, limit)
}

// DeleteRecordedBefore bulk-deletes observations recorded strictly before the cutoff.
func (r *PostgresRepository) DeleteRecordedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chromebook_usage WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Count returns the number of stored observations.
func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chromebook_usage`).Scan(&n)
	return n, err
}

// Bounds returns the newest and oldest recorded_at timestamps, or nils when empty.
func (r *PostgresRepository) Bounds(ctx context.Context) (*time.Time, *time.Time, error) {
	var newest, oldest sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(recorded_at), MIN(recorded_at) FROM chromebook_usage`,
	).Scan(&newest, &oldest)
	if err != nil {
		return nil, nil, err
	}
	var n, o *time.Time
	if newest.Valid {
		n = &newest.Time
	}
	if oldest.Valid {
		o = &oldest.Time
	}
	return n, o, nil
}

func (r *PostgresRepository) query(ctx context.Context, q string, args ...any) ([]*domain.Observation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Observation{}
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (*domain.Observation, error) {
	var o domain.Observation
	var assetID sql.NullString
	if err := row.Scan(&o.ID, &o.SerialNumber, &assetID, &o.UserEmail, &o.RecordedAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if assetID.Valid {
		o.AssetID = &assetID.String
	}
	return &o, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
