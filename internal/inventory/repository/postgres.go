package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chromebook-cache/backend/internal/inventory/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an inventory repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert creates or updates the device keyed by serial number, setting its asset id.
// updated_at is bumped on every sync observation, matching the registry's
// "last confirmed by inventory" meaning.
func (r *PostgresRepository) Upsert(ctx context.Context, serialNumber string, assetID *string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chromebook_inventory (serial_number, asset_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (serial_number)
		DO UPDATE SET asset_id = EXCLUDED.asset_id, updated_at = EXCLUDED.updated_at`,
		serialNumber, toNullString(assetID), now)
	return err
}

// GetBySerial returns the device for the serial number, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetBySerial(ctx context.Context, serialNumber string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, serial_number, asset_id, created_at, updated_at
		FROM chromebook_inventory
		WHERE serial_number = $1`,
		serialNumber)

	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// List returns all known devices ordered by serial number.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, serial_number, asset_id, created_at, updated_at
		FROM chromebook_inventory
		ORDER BY serial_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Count returns the number of known devices.
func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chromebook_inventory`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*domain.Device, error) {
	var d domain.Device
	var assetID sql.NullString
	if err := row.Scan(&d.ID, &d.SerialNumber, &assetID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if assetID.Valid {
		d.AssetID = &assetID.String
	}
	return &d, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
