package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	invrepo "chromebook-cache/backend/internal/inventory/repository"
	"chromebook-cache/backend/internal/jobs"
	usagerepo "chromebook-cache/backend/internal/usage/repository"
)

// JobRunner is the slice of the jobs runner the admin endpoints use.
// *jobs.Runner implements it.
type JobRunner interface {
	Busy(ctx context.Context) (bool, error)
	Start(ctx context.Context, job string) (runID string, err error)
	Status(ctx context.Context) ([]jobs.JobStatus, error)
}

// AdminHandler handles the cache statistics and job-control endpoints.
type AdminHandler struct {
	Inventory invrepo.Repository
	Usage     usagerepo.Repository
	Runner    JobRunner
}

type statsResponse struct {
	InventoryCount int64      `json:"inventory_count"`
	UsageCount     int64      `json:"usage_count"`
	LatestUsage    *time.Time `json:"latest_usage"`
	OldestUsage    *time.Time `json:"oldest_usage"`
}

type runJobRequest struct {
	Command string `json:"command"`
}

// Stats handles GET /api/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	inventoryCount, err := h.Inventory.Count(ctx)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to read inventory stats")
		return
	}
	usageCount, err := h.Usage.Count(ctx)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to read usage stats")
		return
	}
	latest, oldest, err := h.Usage.Bounds(ctx)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to read usage stats")
		return
	}

	jsonResponse(w, http.StatusOK, statsResponse{
		InventoryCount: inventoryCount,
		UsageCount:     usageCount,
		LatestUsage:    latest,
		OldestUsage:    oldest,
	})
}

// RunJob handles POST /api/admin/jobs/run. Only one job may run at a time
// across the whole system; a busy system yields 409.
func (h *AdminHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	var req runJobRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Command == "" {
		jsonError(w, http.StatusBadRequest, "command required")
		return
	}

	busy, err := h.Runner.Busy(r.Context())
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to check job state")
		return
	}
	if busy {
		jsonError(w, http.StatusConflict, "a job is already running")
		return
	}

	runID, err := h.Runner.Start(r.Context(), req.Command)
	if errors.Is(err, jobs.ErrUnknownJob) {
		jsonError(w, http.StatusBadRequest, "unknown job")
		return
	}
	if errors.Is(err, jobs.ErrAlreadyRunning) {
		jsonError(w, http.StatusConflict, "a job is already running")
		return
	}
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to start job")
		return
	}

	jsonResponse(w, http.StatusAccepted, map[string]any{
		"success": true,
		"job":     req.Command,
		"run_id":  runID,
	})
}

// JobStatus handles GET /api/admin/jobs/status.
func (h *AdminHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.Runner.Status(r.Context())
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to read job status")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"success": true, "jobs": statuses})
}
