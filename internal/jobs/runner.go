// Package jobs defines the scheduled maintenance jobs and runs them under
// advisory exclusive-run flags so cron and the admin trigger do not overlap.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"chromebook-cache/backend/internal/cache"
	"chromebook-cache/backend/internal/runstate"
)

// Job names, as invoked by cron and the admin trigger.
const (
	SyncInventory = "sync-inventory"
	UpdateUsage   = "update-usage"
	UpdateUsageES = "update-usage-es"
	UpdateUsageMS = "update-usage-ms"
	UpdateUsageHS = "update-usage-hs"
	CleanupUsage  = "cleanup-usage"
)

// All lists every runnable job.
func All() []string {
	return []string{SyncInventory, UpdateUsage, UpdateUsageES, UpdateUsageMS, UpdateUsageHS, CleanupUsage}
}

var (
	// ErrUnknownJob is returned for a job name outside All().
	ErrUnknownJob = errors.New("jobs: unknown job")
	// ErrAlreadyRunning is returned when the job's running flag is set.
	ErrAlreadyRunning = errors.New("jobs: job is already running")
)

const lastRanTTL = 30 * 24 * time.Hour

// CacheService is the slice of the reconciliation engine the jobs drive.
// *cache.Service implements it.
type CacheService interface {
	SyncInventory(ctx context.Context) cache.SyncStats
	UpdateUsage(ctx context.Context) cache.UsageStats
	UpdateUsageByOUs(ctx context.Context, ous []string, label string) cache.UsageStats
	CleanupOldUsage(ctx context.Context) (int64, error)
}

// Report summarizes one completed job run.
type Report struct {
	Job       string            `json:"job"`
	RunID     string            `json:"run_id"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Sync      *cache.SyncStats  `json:"sync,omitempty"`
	Usage     *cache.UsageStats `json:"usage,omitempty"`
	Deleted   *int64            `json:"deleted,omitempty"`
	Failed    bool              `json:"failed"`
	Error     string            `json:"error,omitempty"`
}

// Reporter receives completed job reports, e.g. for telemetry export.
type Reporter interface {
	ReportJob(ctx context.Context, report Report)
}

// JobStatus is one job's entry in the status listing.
type JobStatus struct {
	Job     string  `json:"job"`
	Running bool    `json:"running"`
	RunID   string  `json:"run_id,omitempty"`
	LastRan *string `json:"last_ran,omitempty"`
}

// Runner executes jobs with running flags and last-ran stamps kept in the
// shared run-state store.
type Runner struct {
	cache    CacheService
	state    runstate.Store
	ouGroups map[string][]string
	reporter Reporter
	now      func() time.Time
}

// NewRunner returns a Runner. ouGroups maps the group labels ES, MS, HS to
// their OU paths. reporter may be nil.
func NewRunner(cacheService CacheService, state runstate.Store, ouGroups map[string][]string, reporter Reporter) *Runner {
	return &Runner{
		cache:    cacheService,
		state:    state,
		ouGroups: ouGroups,
		reporter: reporter,
		now:      time.Now,
	}
}

func runningKey(job string) string { return "job:" + job + ":running" }
func lastRanKey(job string) string { return "job:" + job + ":last_ran" }

// flagTTL is the safety net for a crashed run: the flag expires on its own
// after the longest plausible run of that job.
func flagTTL(job string) time.Duration {
	switch job {
	case UpdateUsage, UpdateUsageES, UpdateUsageMS, UpdateUsageHS:
		return 6 * time.Hour
	default:
		return time.Hour
	}
}

func known(job string) bool {
	for _, j := range All() {
		if j == job {
			return true
		}
	}
	return false
}

// Busy reports whether any job's running flag is set. The admin trigger
// refuses to start anything while one is.
func (r *Runner) Busy(ctx context.Context) (bool, error) {
	keys := make([]string, 0, len(All()))
	for _, j := range All() {
		keys = append(keys, runningKey(j))
	}
	return r.state.AnyPresent(ctx, keys)
}

// Status lists every job's running flag and last-ran stamp.
func (r *Runner) Status(ctx context.Context) ([]JobStatus, error) {
	statuses := make([]JobStatus, 0, len(All()))
	for _, j := range All() {
		s := JobStatus{Job: j}
		runID, running, err := r.state.Get(ctx, runningKey(j))
		if err != nil {
			return nil, err
		}
		s.Running = running
		s.RunID = runID
		if lastRan, ok, err := r.state.Get(ctx, lastRanKey(j)); err != nil {
			return nil, err
		} else if ok {
			s.LastRan = &lastRan
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// Run executes one job under its running flag. It returns ErrAlreadyRunning
// when the flag is already set, and otherwise always returns a report; the
// report's Failed field carries the scheduler failure policy (inventory sync
// fails on any row failure, usage updates fail when more than half the
// checked devices failed).
func (r *Runner) Run(ctx context.Context, job string) (*Report, error) {
	report, started, err := r.claim(ctx, job)
	if err != nil {
		return nil, err
	}
	r.finish(ctx, report, started)
	return report, nil
}

// Start claims the running flag like Run but executes the job in a
// background goroutine, detached from the caller's context. It returns the
// run id as soon as the flag is set; the report goes to the reporter only.
func (r *Runner) Start(ctx context.Context, job string) (string, error) {
	report, started, err := r.claim(ctx, job)
	if err != nil {
		return "", err
	}
	go r.finish(context.Background(), report, started)
	return report.RunID, nil
}

// claim validates the job name and sets its running flag, with an expiry
// safety net in case the process dies mid-run.
func (r *Runner) claim(ctx context.Context, job string) (*Report, time.Time, error) {
	if !known(job) {
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrUnknownJob, job)
	}

	if _, running, err := r.state.Get(ctx, runningKey(job)); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to check running flag for %s: %w", job, err)
	} else if running {
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrAlreadyRunning, job)
	}

	started := r.now()
	report := &Report{
		Job:       job,
		RunID:     uuid.NewString(),
		StartedAt: started.UTC(),
	}
	if err := r.state.Put(ctx, runningKey(job), report.RunID, started.Add(flagTTL(job))); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to set running flag for %s: %w", job, err)
	}
	return report, started, nil
}

// finish runs the job body, stamps last-ran, reports, and clears the flag.
func (r *Runner) finish(ctx context.Context, report *Report, started time.Time) {
	defer func() {
		if err := r.state.Delete(ctx, runningKey(report.Job)); err != nil {
			log.Printf("jobs: failed to clear running flag for %s: %v", report.Job, err)
		}
	}()

	r.execute(ctx, report.Job, report)

	report.Duration = r.now().Sub(started)
	stamp := started.UTC().Format(time.RFC3339)
	if err := r.state.Put(ctx, lastRanKey(report.Job), stamp, started.Add(lastRanTTL)); err != nil {
		log.Printf("jobs: failed to stamp last ran for %s: %v", report.Job, err)
	}

	if r.reporter != nil {
		r.reporter.ReportJob(ctx, *report)
	}
}

func (r *Runner) execute(ctx context.Context, job string, report *Report) {
	switch job {
	case SyncInventory:
		stats := r.cache.SyncInventory(ctx)
		report.Sync = &stats
		report.Failed = stats.Failed > 0
	case UpdateUsage:
		stats := r.cache.UpdateUsage(ctx)
		report.Usage = &stats
		report.Failed = usageFailed(stats)
	case UpdateUsageES, UpdateUsageMS, UpdateUsageHS:
		label := groupLabel(job)
		stats := r.cache.UpdateUsageByOUs(ctx, r.ouGroups[label], label)
		report.Usage = &stats
		report.Failed = usageFailed(stats)
	case CleanupUsage:
		deleted, err := r.cache.CleanupOldUsage(ctx)
		if err != nil {
			report.Failed = true
			report.Error = err.Error()
			return
		}
		report.Deleted = &deleted
	}
}

// usageFailed applies the majority-failure heuristic: a usage pass fails
// only when more than half the checked devices failed.
func usageFailed(stats cache.UsageStats) bool {
	return stats.Failed > stats.Checked/2
}

func groupLabel(job string) string {
	switch job {
	case UpdateUsageES:
		return "ES"
	case UpdateUsageMS:
		return "MS"
	case UpdateUsageHS:
		return "HS"
	}
	return ""
}
