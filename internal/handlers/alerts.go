package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Loutxo/bam-backend-sub000/internal/api/middleware"
	"github.com/Loutxo/bam-backend-sub000/internal/models"
)

// ListAlerts returns the caller's geofence alerts, most recent first.
// Supports ?unread=true, ?limit= and ?offset=.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	alerts, err := h.store.ListAlertsByUser(r.Context(), userID, unreadOnly, limit, offset)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []models.GeofenceAlert{}
	}
	h.JSON(w, http.StatusOK, alerts)
}

// MarkAlertRead flips the read flag on one of the caller's alerts.
func (h *Handler) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	alertID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid alert ID format")
		return
	}

	updated, err := h.store.MarkAlertRead(r.Context(), alertID, userID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to update alert")
		return
	}
	if !updated {
		h.Error(w, http.StatusNotFound, "alert not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"status": "read"})
}
