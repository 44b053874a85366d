// jobs runs one maintenance job to completion, for invocation from cron:
//
//	go run ./cmd/jobs sync-inventory
//	go run ./cmd/jobs update-usage-es
//
// The exit code follows the scheduler policy: inventory sync fails on any
// row failure, usage updates fail when more than half the checked devices
// failed. A job whose running flag is already set is skipped with exit 0 so
// overlapping cron fires are harmless.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"chromebook-cache/backend/internal/cache"
	"chromebook-cache/backend/internal/config"
	"chromebook-cache/backend/internal/db"
	"chromebook-cache/backend/internal/gam"
	invrepo "chromebook-cache/backend/internal/inventory/repository"
	"chromebook-cache/backend/internal/jobs"
	"chromebook-cache/backend/internal/runstate"
	"chromebook-cache/backend/internal/telemetry/otel"
	usagerepo "chromebook-cache/backend/internal/usage/repository"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: jobs <%s>\n", strings.Join(jobs.All(), "|"))
		os.Exit(2)
	}
	job := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "chromebook-cache-jobs", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	inventoryRepo := invrepo.NewPostgresRepository(database)
	usageRepo := usagerepo.NewPostgresRepository(database)

	gamRunner := gam.NewDockerRunner(cfg.GamContainer, cfg.GamPath)
	gamClient := gam.NewClient(gamRunner, cfg.GamTimeout(), cfg.GamBulkTimeout())

	cacheService := cache.NewService(gamClient, inventoryRepo, usageRepo, cfg.Location())

	var reporter jobs.Reporter
	if jr := otel.NewJobReporter(providers); jr != nil {
		reporter = jr
	}

	runner := jobs.NewRunner(cacheService, runstate.NewPostgresStore(database), map[string][]string{
		"ES": cfg.OUGroup("es"),
		"MS": cfg.OUGroup("ms"),
		"HS": cfg.OUGroup("hs"),
	}, reporter)

	report, err := runner.Run(ctx, job)
	if errors.Is(err, jobs.ErrAlreadyRunning) {
		log.Printf("%s is already running, skipping", job)
		return
	}
	if errors.Is(err, jobs.ErrUnknownJob) {
		fmt.Fprintf(os.Stderr, "unknown job %q; valid jobs: %s\n", job, strings.Join(jobs.All(), ", "))
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", job, err)
	}

	printReport(report)
	if report.Failed {
		os.Exit(1)
	}
}

func printReport(report *jobs.Report) {
	fmt.Printf("job:      %s\n", report.Job)
	fmt.Printf("run id:   %s\n", report.RunID)
	fmt.Printf("duration: %s\n", report.Duration.Round(time.Millisecond))
	if report.Sync != nil {
		fmt.Printf("total:    %d\nupdated:  %d\nfailed:   %d\n",
			report.Sync.Total, report.Sync.Updated, report.Sync.Failed)
	}
	if report.Usage != nil {
		fmt.Printf("checked:  %d\ncreated:  %d\nskipped:  %d\nfailed:   %d\n",
			report.Usage.Checked, report.Usage.Created, report.Usage.Skipped, report.Usage.Failed)
	}
	if report.Deleted != nil {
		fmt.Printf("deleted:  %d\n", *report.Deleted)
	}
	if report.Error != "" {
		fmt.Printf("error:    %s\n", report.Error)
	}
}
