// Package cache is the reconciliation engine: it pulls device and usage data
// from the GAM CLI, reconciles it against the local inventory and usage
// ledger, sweeps old usage rows, and serves point lookups over the history.
package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"chromebook-cache/backend/internal/gam"
	invrepo "chromebook-cache/backend/internal/inventory/repository"
	usagedomain "chromebook-cache/backend/internal/usage/domain"
	usagerepo "chromebook-cache/backend/internal/usage/repository"
)

// DeviceSource is the slice of the GAM client the engine needs.
// *gam.Client implements it.
type DeviceSource interface {
	AllChromebooks(ctx context.Context) gam.Result
	ChromebooksByOUs(ctx context.Context, ous []string) gam.Result
	ChromebookLastUser(ctx context.Context, serialNumber string) gam.Result
}

// SyncStats summarizes one inventory sync pass.
type SyncStats struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// UsageStats summarizes one usage update pass. Every device in the input set
// increments Checked once and then exactly one of Created, Skipped, Failed.
type UsageStats struct {
	Checked int `json:"checked"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Service orchestrates sync passes and lookups.
type Service struct {
	source    DeviceSource
	inventory invrepo.Repository
	usage     usagerepo.Repository
	loc       *time.Location
	now       func() time.Time
}

// NewService returns a reconciliation engine over the given source and
// stores. loc is the wall-clock timezone for the retention cutoff.
func NewService(source DeviceSource, inventory invrepo.Repository, usage usagerepo.Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		source:    source,
		inventory: inventory,
		usage:     usage,
		loc:       loc,
		now:       time.Now,
	}
}

// SyncInventory pulls the complete fleet listing and upserts every device
// into the inventory registry. A source failure aborts the pass with zero
// stats; per-row store failures are counted and do not stop the batch.
func (s *Service) SyncInventory(ctx context.Context) SyncStats {
	var stats SyncStats

	result := s.source.AllChromebooks(ctx)
	if !result.Success {
		log.Printf("cache: failed to fetch chromebook inventory from GAM: %s", result.Error)
		return stats
	}

	rows, err := gam.ParseDeviceList(result.Output, gam.SerialHeader, gam.AssetHeader)
	if err != nil {
		log.Printf("cache: inventory sync: %v", err)
		return stats
	}
	if len(rows) == 0 {
		log.Printf("cache: no chromebook data returned from GAM")
		return stats
	}

	for _, row := range rows {
		stats.Total++
		if err := s.inventory.Upsert(ctx, row.SerialNumber, row.AssetID); err != nil {
			stats.Failed++
			log.Printf("cache: failed to sync chromebook %s: %v", row.SerialNumber, err)
			continue
		}
		stats.Updated++
	}

	log.Printf("cache: inventory sync completed: total=%d updated=%d failed=%d",
		stats.Total, stats.Updated, stats.Failed)
	return stats
}

// UpdateUsage checks the most recent user of every device in the inventory
// registry and appends an observation for each detected change.
func (s *Service) UpdateUsage(ctx context.Context) UsageStats {
	var stats UsageStats

	devices, err := s.inventory.List(ctx)
	if err != nil {
		log.Printf("cache: failed to list inventory: %v", err)
		return stats
	}

	for _, d := range devices {
		s.processDeviceUsage(ctx, d.SerialNumber, d.AssetID, &stats)
	}

	log.Printf("cache: usage update completed: checked=%d created=%d skipped=%d failed=%d",
		stats.Checked, stats.Created, stats.Skipped, stats.Failed)
	return stats
}

// UpdateUsageByOUs checks devices under the given OU paths, discovered
// fresh from GAM rather than the inventory registry; this path may see
// serials full inventory has not recorded yet. label tags the log lines
// (e.g. "ES").
func (s *Service) UpdateUsageByOUs(ctx context.Context, ous []string, label string) UsageStats {
	var stats UsageStats

	result := s.source.ChromebooksByOUs(ctx, ous)
	if !result.Success {
		log.Printf("cache: failed to fetch chromebooks from OUs for %s: %s", label, result.Error)
		return stats
	}

	rows, err := gam.ParseDeviceList(result.Output, gam.SerialHeader, gam.AssetHeader)
	if err != nil {
		log.Printf("cache: usage update for %s: %v", label, err)
		return stats
	}
	if len(rows) == 0 {
		log.Printf("cache: no chromebook data returned from OUs for %s (ous=%v)", label, ous)
		return stats
	}

	for _, row := range rows {
		s.processDeviceUsage(ctx, row.SerialNumber, row.AssetID, &stats)
	}

	log.Printf("cache: usage update completed for %s: checked=%d created=%d skipped=%d failed=%d (ous=%v)",
		label, stats.Checked, stats.Created, stats.Skipped, stats.Failed, ous)
	return stats
}

// processDeviceUsage checks one device and appends an observation when the
// observed user differs from the last recorded one. Consecutive identical
// observations never produce duplicate rows. Every failure is absorbed into
// stats so one device cannot abort the batch.
func (s *Service) processDeviceUsage(ctx context.Context, serialNumber string, assetID *string, stats *UsageStats) {
	stats.Checked++

	result := s.source.ChromebookLastUser(ctx, serialNumber)
	if !result.Success {
		stats.Failed++
		return
	}

	email := gam.ParseRecentUserEmail(result.Output)
	if email == "" {
		// Normal outcome: the device has no current usage data.
		stats.Skipped++
		return
	}

	latest, err := s.usage.LatestBySerial(ctx, serialNumber)
	if err != nil {
		stats.Failed++
		log.Printf("cache: failed to read latest usage for %s: %v", serialNumber, err)
		return
	}

	if latest != nil && latest.UserEmail == email {
		stats.Skipped++
		return
	}

	obs := &usagedomain.Observation{
		SerialNumber: serialNumber,
		AssetID:      assetID,
		UserEmail:    email,
		RecordedAt:   s.now().UTC(),
	}
	if err := s.usage.Create(ctx, obs); err != nil {
		stats.Failed++
		log.Printf("cache: failed to record usage for %s: %v", serialNumber, err)
		return
	}
	stats.Created++
}

// CleanupOldUsage deletes observations recorded strictly before the first
// instant of the previous calendar month, computed in the service's
// timezone. A row exactly at the cutoff is retained.
func (s *Service) CleanupOldUsage(ctx context.Context) (int64, error) {
	cutoff := previousMonthStart(s.now().In(s.loc))

	deleted, err := s.usage.DeleteRecordedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	log.Printf("cache: usage cleanup completed: deleted=%d cutoff=%s", deleted, cutoff.Format(time.RFC3339))
	return deleted, nil
}

// previousMonthStart returns the first instant of the calendar month before
// t's month, in t's location.
func previousMonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, -1, 0)
}

// ErrInvalidLimit is returned for lookup limits outside 1..10.
var ErrInvalidLimit = errors.New("cache: limit must be between 1 and 10")

const maxLookupLimit = 10

// FindBySerial returns cached observations for the exact serial number,
// newest first. limit defaults to 1 when zero.
func (s *Service) FindBySerial(ctx context.Context, serialNumber string, limit int) ([]*usagedomain.Observation, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	return s.usage.FindBySerial(ctx, serialNumber, limit)
}

// FindByUser returns cached observations whose user email contains the
// fragment, newest first. limit defaults to 1 when zero.
func (s *Service) FindByUser(ctx context.Context, emailFragment string, limit int) ([]*usagedomain.Observation, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	return s.usage.FindByUserEmail(ctx, emailFragment, limit)
}

// FindByAssetID returns cached observations for the exact asset id, newest
// first. limit defaults to 1 when zero.
func (s *Service) FindByAssetID(ctx context.Context, assetID string, limit int) ([]*usagedomain.Observation, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	return s.usage.FindByAssetID(ctx, assetID, limit)
}

func normalizeLimit(limit int) (int, error) {
	if limit == 0 {
		return 1, nil
	}
	if limit < 1 || limit > maxLookupLimit {
		return 0, ErrInvalidLimit
	}
	return limit, nil
}
