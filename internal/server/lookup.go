package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"chromebook-cache/backend/internal/cache"
	"chromebook-cache/backend/internal/usage/domain"
)

// LookupService answers point queries over the cached usage history.
// *cache.Service implements it.
type LookupService interface {
	FindBySerial(ctx context.Context, serialNumber string, limit int) ([]*domain.Observation, error)
	FindByUser(ctx context.Context, emailFragment string, limit int) ([]*domain.Observation, error)
	FindByAssetID(ctx context.Context, assetID string, limit int) ([]*domain.Observation, error)
}

// LookupHandler handles the cached-usage query endpoints.
type LookupHandler struct {
	Lookup LookupService
}

type serialLookupRequest struct {
	SerialNumber string `json:"serial_number"`
	Limit        int    `json:"limit"`
}

type userLookupRequest struct {
	UserEmail string `json:"user_email"`
	Limit     int    `json:"limit"`
}

type assetLookupRequest struct {
	AssetID string `json:"asset_id"`
	Limit   int    `json:"limit"`
}

// observationJSON is the wire shape of one usage observation.
type observationJSON struct {
	SerialNumber string    `json:"serial_number"`
	AssetID      *string   `json:"asset_id"`
	UserEmail    string    `json:"user_email"`
	RecordedAt   time.Time `json:"recorded_at"`
}

func toObservationJSON(rows []*domain.Observation) []observationJSON {
	out := make([]observationJSON, 0, len(rows))
	for _, o := range rows {
		out = append(out, observationJSON{
			SerialNumber: o.SerialNumber,
			AssetID:      o.AssetID,
			UserEmail:    o.UserEmail,
			RecordedAt:   o.RecordedAt,
		})
	}
	return out
}

// writeLookup maps a lookup outcome to a response. An empty result is a
// success with an explanatory message, not an error.
func writeLookup(w http.ResponseWriter, rows []*domain.Observation, err error) {
	if errors.Is(err, cache.ErrInvalidLimit) {
		jsonError(w, http.StatusBadRequest, "limit must be between 1 and 10")
		return
	}
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	resp := map[string]any{"success": true, "data": toObservationJSON(rows)}
	if len(rows) == 0 {
		resp["message"] = "No usage data found"
	}
	jsonResponse(w, http.StatusOK, resp)
}

// BySerial handles POST /api/gam/chromebook-by-serial.
func (h *LookupHandler) BySerial(w http.ResponseWriter, r *http.Request) {
	var req serialLookupRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SerialNumber == "" {
		jsonError(w, http.StatusBadRequest, "serial_number required")
		return
	}

	rows, err := h.Lookup.FindBySerial(r.Context(), req.SerialNumber, req.Limit)
	writeLookup(w, rows, err)
}

// ByUser handles POST /api/gam/chromebook-by-user.
func (h *LookupHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	var req userLookupRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserEmail == "" {
		jsonError(w, http.StatusBadRequest, "user_email required")
		return
	}

	rows, err := h.Lookup.FindByUser(r.Context(), req.UserEmail, req.Limit)
	writeLookup(w, rows, err)
}

// ByAsset handles POST /api/gam/chromebook-by-asset.
func (h *LookupHandler) ByAsset(w http.ResponseWriter, r *http.Request) {
	var req assetLookupRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AssetID == "" {
		jsonError(w, http.StatusBadRequest, "asset_id required")
		return
	}

	rows, err := h.Lookup.FindByAssetID(r.Context(), req.AssetID, req.Limit)
	writeLookup(w, rows, err)
}
