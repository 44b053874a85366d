package repository

import (
	"context"
	"time"

	"chromebook-cache/backend/internal/usage/domain"
)

// Repository defines persistence for the usage history ledger.
type Repository interface {
	// Create appends one observation. The observation's ID is ignored.
	Create(ctx context.Context, o *domain.Observation) error
	// LatestBySerial returns the most recent observation for the serial
	// number (by recorded_at), or nil if none exists.
	LatestBySerial(ctx context.Context, serialNumber string) (*domain.Observation, error)
	// FindBySerial returns observations for the exact serial number,
	// newest first, limited.
	FindBySerial(ctx context.Context, serialNumber string, limit int) ([]*domain.Observation, error)
	// FindByUserEmail returns observations whose user email contains the
	// given fragment, newest first, limited.
	FindByUserEmail(ctx context.Context, emailFragment string, limit int) ([]*domain.Observation, error)
	// FindByAssetID returns observations for the exact asset id, newest first, limited.
	FindByAssetID(ctx context.Context, assetID string, limit int) ([]*domain.Observation, error)
	// DeleteRecordedBefore bulk-deletes observations recorded strictly
	// before the cutoff and returns the number deleted.
	DeleteRecordedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// Count returns the number of stored observations.
	Count(ctx context.Context) (int64, error)
	// Bounds returns the newest and oldest recorded_at timestamps, or
	// (nil, nil, nil) when the ledger is empty.
	Bounds(ctx context.Context) (newest, oldest *time.Time, err error)
}
