package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Loutxo/bam-backend-sub000/internal/api/middleware"
	"github.com/Loutxo/bam-backend-sub000/internal/models"
)

// LocationRequest represents a reported GPS fix.
type LocationRequest struct {
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	AccuracyMeters float64    `json:"accuracy_meters,omitempty"`
	RecordedAt     *time.Time `json:"recorded_at,omitempty"`
}

// SubmitLocation ingests a location fix. The geofence evaluation runs
// asynchronously: the submission succeeds regardless of whether downstream
// evaluation completes, favoring availability of the ingestion path.
func (h *Handler) SubmitLocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req LocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		h.Error(w, http.StatusBadRequest, "coordinates out of range")
		return
	}

	recordedAt := time.Now().UTC()
	if req.RecordedAt != nil {
		recordedAt = req.RecordedAt.UTC()
	}

	fix := &models.LocationFix{
		UserID:         userID,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		AccuracyMeters: req.AccuracyMeters,
		RecordedAt:     recordedAt,
	}

	if err := h.store.SaveLocation(r.Context(), fix); err != nil {
		h.logger.Error().Str("user_id", userID.String()).Err(err).Msg("location save failed")
		h.Error(w, http.StatusInternalServerError, "failed to save location")
		return
	}

	// Queued synchronously, evaluated asynchronously: the response never
	// waits on evaluation, but two fixes from one user are applied in the
	// order their requests were accepted.
	h.evaluator.Enqueue(fix)

	h.JSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
