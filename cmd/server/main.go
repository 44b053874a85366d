package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chromebook-cache/backend/internal/cache"
	"chromebook-cache/backend/internal/config"
	"chromebook-cache/backend/internal/db"
	"chromebook-cache/backend/internal/gam"
	invrepo "chromebook-cache/backend/internal/inventory/repository"
	"chromebook-cache/backend/internal/jobs"
	"chromebook-cache/backend/internal/runstate"
	"chromebook-cache/backend/internal/server"
	"chromebook-cache/backend/internal/telemetry/otel"
	usagerepo "chromebook-cache/backend/internal/usage/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "chromebook-cache", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
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

	runner := gam.NewDockerRunner(cfg.GamContainer, cfg.GamPath)
	gamClient := gam.NewClient(runner, cfg.GamTimeout(), cfg.GamBulkTimeout())

	cacheService := cache.NewService(gamClient, inventoryRepo, usageRepo, cfg.Location())

	var reporter jobs.Reporter
	if jr := otel.NewJobReporter(providers); jr != nil {
		reporter = jr
	}

	state := runstate.NewPostgresStore(database)
	jobRunner := jobs.NewRunner(cacheService, state, map[string][]string{
		"ES": cfg.OUGroup("es"),
		"MS": cfg.OUGroup("ms"),
		"HS": cfg.OUGroup("hs"),
	}, reporter)

	handler := server.NewRouter(cacheService, jobRunner, inventoryRepo, usageRepo, database)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
