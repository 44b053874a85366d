package repository

import (
	"context"

	"chromebook-cache/backend/internal/inventory/domain"
)

// Repository defines persistence for the Chromebook inventory registry.
type Repository interface {
	// Upsert creates or updates the device keyed by serial number, setting its asset id.
	Upsert(ctx context.Context, serialNumber string, assetID *string) error
	// GetBySerial returns the device for the serial number, or nil if not found.
	GetBySerial(ctx context.Context, serialNumber string) (*domain.Device, error)
	// List returns all known devices ordered by serial number.
	List(ctx context.Context) ([]*domain.Device, error)
	// Count returns the number of known devices.
	Count(ctx context.Context) (int64, error)
}
