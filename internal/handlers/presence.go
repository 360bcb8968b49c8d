package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Loutxo/bam-backend-sub000/internal/api/middleware"
	"github.com/Loutxo/bam-backend-sub000/internal/realtime"
)

// StatsResponse reports the realtime engine's live state.
type StatsResponse struct {
	ConnectedUsers  int `json:"connected_users"`
	ActiveRooms     int `json:"active_rooms"`
	LiveConnections int `json:"live_connections"`
}

// Stats returns connected-user count, active-room count and total live
// connections.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	// One connection per user, so the two counts coincide.
	count := h.registry.Count()
	h.JSON(w, http.StatusOK, StatsResponse{
		ConnectedUsers:  count,
		ActiveRooms:     h.rooms.Count(),
		LiveConnections: count,
	})
}

// PresenceResponse reports a single user's live status.
type PresenceResponse struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
	Status string `json:"status,omitempty"`
}

// Presence returns whether a user is online and their current status.
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}

	resp := PresenceResponse{
		UserID: userID.String(),
		Online: h.registry.IsOnline(userID),
	}
	if resp.Online {
		resp.Status = string(h.registry.StatusOf(userID))
	}
	h.JSON(w, http.StatusOK, resp)
}

// RoomMembersResponse lists the online members of a room.
type RoomMembersResponse struct {
	RoomID  string   `json:"room_id"`
	Members []string `json:"members"`
}

// RoomMembers returns the online members of a room. A room nobody has
// joined is simply empty, not an error.
func (h *Handler) RoomMembers(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID format")
		return
	}

	ids := h.rooms.MembersOf(roomID)
	members := make([]string, 0, len(ids))
	for _, id := range ids {
		members = append(members, id.String())
	}
	h.JSON(w, http.StatusOK, RoomMembersResponse{
		RoomID:  roomID.String(),
		Members: members,
	})
}

// RoomEvents returns the room's recent event history from Redis so a
// client joining late can backfill. Best-effort, bounded retention. The
// history includes message bodies, so it is gated by the same
// authorization check as joining the room.
func (h *Handler) RoomEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID format")
		return
	}

	if err := h.authorizeRoom(r.Context(), userID, roomID); err != nil {
		switch {
		case errors.Is(err, realtime.ErrNotFound):
			h.Error(w, http.StatusNotFound, "room not found")
		case errors.Is(err, realtime.ErrRoomClosed):
			h.Error(w, http.StatusForbidden, "room closed")
		case errors.Is(err, realtime.ErrAccessDenied):
			h.Error(w, http.StatusForbidden, "access denied")
		default:
			// Transient store failure, not a refusal.
			h.Error(w, http.StatusServiceUnavailable, "temporarily unavailable")
		}
		return
	}

	if h.redis == nil {
		h.JSON(w, http.StatusOK, []map[string]any{})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			since = n
		}
	}

	events, err := h.redis.GetRoomEvents(r.Context(), roomID.String(), limit, since)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to read room history")
		return
	}
	h.JSON(w, http.StatusOK, events)
}
