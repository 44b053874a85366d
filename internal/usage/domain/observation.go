package domain

import "time"

// Observation is one recorded fact: this user was most recently associated
// with this device at this time. Rows are appended by the reconciliation
// engine when the observed user changes and are never updated by it.
// AssetID is a denormalized copy captured at observation time; it may go
// stale relative to the inventory row.
type Observation struct {
	ID           int64
	SerialNumber string
	AssetID      *string
	UserEmail    string
	RecordedAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
