package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/Loutxo/bam-backend-sub000/internal/realtime"
)

// PushEventRequest is the "push domain event" entry point used by the
// moderation and gamification services.
type PushEventRequest struct {
	Type    string         `json:"type"`
	UserID  string         `json:"user_id,omitempty"`
	RoomID  string         `json:"room_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// PushEvent validates the event type against the fixed vocabulary and
// routes it through the dispatcher.
func (h *Handler) PushEvent(w http.ResponseWriter, r *http.Request) {
	var req PushEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	eventType := realtime.EventType(req.Type)
	if _, ok := realtime.RouteFor(eventType); !ok {
		h.Error(w, http.StatusBadRequest, "unknown event type")
		return
	}

	var target realtime.Target
	if req.UserID != "" {
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid user ID format")
			return
		}
		target.UserID = id
	}
	if req.RoomID != "" {
		id, err := uuid.Parse(req.RoomID)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid room ID format")
			return
		}
		target.RoomID = id
	}

	if err := h.dispatcher.Dispatch(r.Context(), eventType, target, req.Payload); err != nil {
		if errors.Is(err, realtime.ErrNotFound) {
			h.Error(w, http.StatusBadRequest, "event type requires a target")
			return
		}
		h.Error(w, http.StatusInternalServerError, "dispatch failed")
		return
	}

	h.JSON(w, http.StatusAccepted, map[string]string{"status": "dispatched"})
}
