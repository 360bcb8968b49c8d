package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Loutxo/bam-backend-sub000/internal/api/middleware"
	"github.com/Loutxo/bam-backend-sub000/internal/config"
	"github.com/Loutxo/bam-backend-sub000/internal/geofence"
	"github.com/Loutxo/bam-backend-sub000/internal/models"
	"github.com/Loutxo/bam-backend-sub000/internal/realtime"
	"github.com/Loutxo/bam-backend-sub000/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store      store.DataStore
	redis      *store.RedisStore
	registry   *realtime.Registry
	rooms      *realtime.Rooms
	dispatcher *realtime.Dispatcher
	evaluator  *geofence.Evaluator
	auth       *middleware.AuthMiddleware
	cfg        *config.Config
	logger     zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(
	ds store.DataStore,
	redis *store.RedisStore,
	registry *realtime.Registry,
	rooms *realtime.Rooms,
	dispatcher *realtime.Dispatcher,
	evaluator *geofence.Evaluator,
	auth *middleware.AuthMiddleware,
	cfg *config.Config,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		store:      ds,
		redis:      redis,
		registry:   registry,
		rooms:      rooms,
		dispatcher: dispatcher,
		evaluator:  evaluator,
		auth:       auth,
		cfg:        cfg,
		logger:     logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// authorizeRoom is the authorization check handed to the room membership
// table: the room's backing incident must exist, be active, and count the
// user among its participants. Store failures are wrapped so callers can
// tell a retryable condition from a refusal.
func (h *Handler) authorizeRoom(ctx context.Context, userID, roomID uuid.UUID) error {
	bam, err := h.store.GetBam(ctx, roomID)
	if err != nil {
		return fmt.Errorf("%w: %v", realtime.ErrStoreUnavailable, err)
	}
	if bam == nil {
		return realtime.ErrNotFound
	}
	if bam.Status != models.BamActive {
		return realtime.ErrRoomClosed
	}

	ok, err := h.store.IsBamParticipant(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", realtime.ErrStoreUnavailable, err)
	}
	if !ok {
		return realtime.ErrAccessDenied
	}
	return nil
}
