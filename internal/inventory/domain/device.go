package domain

import "time"

// Device is one managed Chromebook known from the directory inventory.
// SerialNumber is the immutable unique key; AssetID is the
// organization-assigned inventory label and may be absent.
type Device struct {
	ID           int64
	SerialNumber string
	AssetID      *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
