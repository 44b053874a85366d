// Package server exposes the cached usage data and job controls over a JSON
// HTTP API.
package server

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	invrepo "chromebook-cache/backend/internal/inventory/repository"
	usagerepo "chromebook-cache/backend/internal/usage/repository"
)

// Pinger reports database reachability. *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewRouter creates the API router with all endpoints registered, wrapped
// with OpenTelemetry HTTP instrumentation.
func NewRouter(lookup LookupService, runner JobRunner, inventory invrepo.Repository, usage usagerepo.Repository, db Pinger) http.Handler {
	mux := http.NewServeMux()

	lookupHandler := &LookupHandler{Lookup: lookup}
	adminHandler := &AdminHandler{Inventory: inventory, Usage: usage, Runner: runner}

	mux.HandleFunc("POST /api/gam/chromebook-by-serial", lookupHandler.BySerial)
	mux.HandleFunc("POST /api/gam/chromebook-by-user", lookupHandler.ByUser)
	mux.HandleFunc("POST /api/gam/chromebook-by-asset", lookupHandler.ByAsset)

	mux.HandleFunc("GET /api/admin/stats", adminHandler.Stats)
	mux.HandleFunc("POST /api/admin/jobs/run", adminHandler.RunJob)
	mux.HandleFunc("GET /api/admin/jobs/status", adminHandler.JobStatus)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			jsonError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return otelhttp.NewHandler(mux, "http.server")
}
