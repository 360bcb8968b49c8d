package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Loutxo/bam-backend-sub000/internal/api/middleware"
	"github.com/Loutxo/bam-backend-sub000/internal/models"
)

const (
	minZoneRadius = 50
	maxZoneRadius = 10000
)

// CreateZoneRequest represents the zone creation request.
type CreateZoneRequest struct {
	Name          string  `json:"name"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	RadiusMeters  float64 `json:"radius_meters"`
	NotifyOnEnter *bool   `json:"notify_on_enter,omitempty"`
	NotifyOnExit  *bool   `json:"notify_on_exit,omitempty"`
}

// ListZones returns the caller's favorite zones.
func (h *Handler) ListZones(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	zones, err := h.store.ListZonesByUser(r.Context(), userID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list zones")
		return
	}
	if zones == nil {
		zones = []models.FavoriteZone{}
	}
	h.JSON(w, http.StatusOK, zones)
}

// CreateZone creates a favorite zone for the caller.
func (h *Handler) CreateZone(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		h.Error(w, http.StatusBadRequest, "coordinates out of range")
		return
	}
	if req.RadiusMeters < minZoneRadius || req.RadiusMeters > maxZoneRadius {
		h.Error(w, http.StatusBadRequest, "radius must be between 50 and 10000 meters")
		return
	}

	notifyEnter := true
	if req.NotifyOnEnter != nil {
		notifyEnter = *req.NotifyOnEnter
	}
	notifyExit := false
	if req.NotifyOnExit != nil {
		notifyExit = *req.NotifyOnExit
	}

	zone, err := h.store.CreateZone(r.Context(), &models.FavoriteZone{
		UserID:        userID,
		Name:          req.Name,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		RadiusMeters:  req.RadiusMeters,
		NotifyOnEnter: notifyEnter,
		NotifyOnExit:  notifyExit,
	})
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create zone")
		return
	}

	h.JSON(w, http.StatusCreated, zone)
}

// DeleteZone removes one of the caller's favorite zones.
func (h *Handler) DeleteZone(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	zoneID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid zone ID format")
		return
	}

	deleted, err := h.store.DeleteZone(r.Context(), zoneID, userID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to delete zone")
		return
	}
	if !deleted {
		h.Error(w, http.StatusNotFound, "zone not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
