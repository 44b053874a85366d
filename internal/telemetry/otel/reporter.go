package otel

import (
	"context"
	"log"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"

	"chromebook-cache/backend/internal/jobs"
)

// JobReporter exports completed job reports as OTel log records and counters.
// It implements jobs.Reporter.
type JobReporter struct {
	logger      otellog.Logger
	runs        metric.Int64Counter
	rowsCreated metric.Int64Counter
	rowsFailed  metric.Int64Counter
	rowsDeleted metric.Int64Counter
}

// NewJobReporter builds a reporter over the given providers. Returns nil
// (which callers treat as no reporter) when providers is nil.
func NewJobReporter(p *Providers) *JobReporter {
	if p == nil || p.LoggerProvider == nil || p.MeterProvider == nil {
		return nil
	}
	meter := p.MeterProvider.Meter("chromebook-cache.jobs")

	runs, err := meter.Int64Counter("job_runs_total",
		metric.WithDescription("Completed job runs"))
	if err != nil {
		log.Printf("telemetry: failed to create job_runs_total counter: %v", err)
	}
	created, err := meter.Int64Counter("job_rows_created_total",
		metric.WithDescription("Rows created by jobs"))
	if err != nil {
		log.Printf("telemetry: failed to create job_rows_created_total counter: %v", err)
	}
	failed, err := meter.Int64Counter("job_rows_failed_total",
		metric.WithDescription("Per-row failures across jobs"))
	if err != nil {
		log.Printf("telemetry: failed to create job_rows_failed_total counter: %v", err)
	}
	deleted, err := meter.Int64Counter("job_rows_deleted_total",
		metric.WithDescription("Rows deleted by the retention sweeper"))
	if err != nil {
		log.Printf("telemetry: failed to create job_rows_deleted_total counter: %v", err)
	}

	return &JobReporter{
		logger:      p.LoggerProvider.Logger("chromebook-cache.jobs"),
		runs:        runs,
		rowsCreated: created,
		rowsFailed:  failed,
		rowsDeleted: deleted,
	}
}

// ReportJob emits one log record and updates the counters for the run.
// Best-effort; it never blocks the job outcome.
func (r *JobReporter) ReportJob(ctx context.Context, report jobs.Report) {
	rec := otellog.Record{}
	rec.SetTimestamp(time.Now().UTC())
	rec.SetBody(otellog.StringValue("job run completed"))
	rec.AddAttributes(
		otellog.String("job", report.Job),
		otellog.String("run_id", report.RunID),
		otellog.Bool("failed", report.Failed),
		otellog.Int64("duration_ms", report.Duration.Milliseconds()),
	)
	if report.Sync != nil {
		rec.AddAttributes(
			otellog.Int("total", report.Sync.Total),
			otellog.Int("updated", report.Sync.Updated),
			otellog.Int("row_failures", report.Sync.Failed),
		)
	}
	if report.Usage != nil {
		rec.AddAttributes(
			otellog.Int("checked", report.Usage.Checked),
			otellog.Int("created", report.Usage.Created),
			otellog.Int("skipped", report.Usage.Skipped),
			otellog.Int("row_failures", report.Usage.Failed),
		)
	}
	if report.Deleted != nil {
		rec.AddAttributes(otellog.Int64("deleted", *report.Deleted))
	}
	if report.Error != "" {
		rec.AddAttributes(otellog.String("error", report.Error))
	}
	r.logger.Emit(ctx, rec)

	if r.runs != nil {
		r.runs.Add(ctx, 1)
	}
	if report.Sync != nil {
		r.add(ctx, r.rowsCreated, int64(report.Sync.Updated))
		r.add(ctx, r.rowsFailed, int64(report.Sync.Failed))
	}
	if report.Usage != nil {
		r.add(ctx, r.rowsCreated, int64(report.Usage.Created))
		r.add(ctx, r.rowsFailed, int64(report.Usage.Failed))
	}
	if report.Deleted != nil {
		r.add(ctx, r.rowsDeleted, *report.Deleted)
	}
}

func (r *JobReporter) add(ctx context.Context, c metric.Int64Counter, n int64) {
	if c != nil && n > 0 {
		c.Add(ctx, n)
	}
}

var _ jobs.Reporter = (*JobReporter)(nil)
