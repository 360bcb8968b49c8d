package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Loutxo/bam-backend-sub000/internal/realtime"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checking is handled by the CORS layer; the socket itself is
	// gated by the token check below.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient adapts a websocket connection to realtime.Conn. Sends go
// through a buffered channel drained by the write pump; a full buffer
// drops the frame rather than blocking the broadcaster.
type wsClient struct {
	conn      *websocket.Conn
	send      chan realtime.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan realtime.Event, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Send queues an event for delivery. Best-effort: returns an error when
// the connection is closed or the buffer is full.
func (c *wsClient) Send(ev realtime.Event) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	default:
	}
	select {
	case c.send <- ev:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// Close signals the write pump to shut the socket down. Idempotent.
func (c *wsClient) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// writePump serializes all writes to the socket and keeps it alive with
// pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// clientFrame is a message from the client over the socket.
type clientFrame struct {
	Action string `json:"action"`
	RoomID string `json:"room_id,omitempty"`
	Status string `json:"status,omitempty"`
	Typing bool   `json:"typing,omitempty"`
}

// WebSocket handles the live connection lifecycle. The token is verified
// before the upgrade; a bad identity never touches the registry.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	var respHeader http.Header
	if token == "" {
		// Browser clients cannot set an Authorization header on the
		// upgrade request and smuggle the token as a subprotocol. The
		// handshake must then select that subprotocol, or conforming
		// clients fail the connection.
		if token = r.Header.Get("Sec-WebSocket-Protocol"); token != "" {
			respHeader = http.Header{"Sec-WebSocket-Protocol": {token}}
		}
	}
	userID, err := h.auth.VerifyToken(token)
	if err != nil {
		h.Error(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		// Upgrade already wrote the response
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newWSClient(conn)
	go client.writePump()

	h.registry.Register(userID, client)
	h.logger.Info().Str("user_id", userID.String()).Msg("client connected")

	h.readPump(r.Context(), client, userID)
}

// readPump processes client frames until the socket drops, then tears
// down registry and room state. Teardown is skipped when this connection
// was superseded by a newer login, so the fresh session keeps its rooms.
func (h *Handler) readPump(ctx context.Context, client *wsClient, userID uuid.UUID) {
	defer func() {
		if _, current := h.registry.Unregister(client); current {
			for _, roomID := range h.rooms.RemoveFromAll(userID) {
				h.dispatchMemberLeft(ctx, userID, roomID)
			}
			h.logger.Info().Str("user_id", userID.String()).Msg("client disconnected")
		}
		client.Close()
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame clientFrame
		if err := client.conn.ReadJSON(&frame); err != nil {
			return
		}
		h.registry.Touch(userID)
		h.handleFrame(ctx, client, userID, &frame)
	}
}

func (h *Handler) handleFrame(ctx context.Context, client *wsClient, userID uuid.UUID, frame *clientFrame) {
	switch frame.Action {
	case "join":
		h.handleJoin(ctx, client, userID, frame.RoomID)
	case "leave":
		h.handleLeave(ctx, userID, frame.RoomID)
	case "status":
		h.handleStatus(ctx, userID, realtime.Status(frame.Status))
	case "typing":
		h.handleTyping(ctx, userID, frame.RoomID, frame.Typing)
	default:
		h.sendError(client, "unknown_action", frame.Action)
	}
}

func (h *Handler) handleJoin(ctx context.Context, client *wsClient, userID uuid.UUID, room string) {
	roomID, err := uuid.Parse(room)
	if err != nil {
		h.sendError(client, "invalid_room", "join")
		return
	}

	_, err = h.rooms.Join(ctx, userID, roomID, h.authorizeRoom)
	if err != nil {
		switch {
		case errors.Is(err, realtime.ErrAccessDenied):
			h.sendError(client, "access_denied", "join")
		case errors.Is(err, realtime.ErrNotFound):
			h.sendError(client, "not_found", "join")
		case errors.Is(err, realtime.ErrRoomClosed):
			h.sendError(client, "room_closed", "join")
		default:
			// Transient store failures must stay distinguishable from a
			// refusal so clients retry instead of giving up.
			h.logger.Error().Str("room_id", room).Err(err).Msg("room authorization failed")
			h.sendError(client, "unavailable", "join")
		}
		return
	}

	_ = h.dispatcher.Dispatch(ctx, realtime.EventMemberJoined, realtime.Target{RoomID: roomID}, map[string]any{
		"room_id": roomID.String(),
		"user_id": userID.String(),
	})
}

func (h *Handler) handleLeave(ctx context.Context, userID uuid.UUID, room string) {
	roomID, err := uuid.Parse(room)
	if err != nil {
		return
	}
	if h.rooms.Leave(userID, roomID) {
		h.dispatchMemberLeft(ctx, userID, roomID)
	}
}

func (h *Handler) handleStatus(ctx context.Context, userID uuid.UUID, status realtime.Status) {
	if !realtime.ValidStatus(status) {
		return
	}
	if !h.registry.SetStatus(userID, status) {
		return
	}
	for _, roomID := range h.rooms.RoomsOf(userID) {
		_ = h.dispatcher.Dispatch(ctx, realtime.EventPresenceChanged, realtime.Target{RoomID: roomID}, map[string]any{
			"user_id": userID.String(),
			"status":  string(status),
		})
	}
}

func (h *Handler) handleTyping(ctx context.Context, userID uuid.UUID, room string, typing bool) {
	roomID, err := uuid.Parse(room)
	if err != nil {
		return
	}
	// Only members may signal typing into a room.
	member := false
	for _, id := range h.rooms.MembersOf(roomID) {
		if id == userID {
			member = true
			break
		}
	}
	if !member {
		return
	}
	_ = h.dispatcher.Dispatch(ctx, realtime.EventTypingStatus, realtime.Target{RoomID: roomID}, map[string]any{
		"room_id": roomID.String(),
		"user_id": userID.String(),
		"typing":  typing,
	})
}

func (h *Handler) dispatchMemberLeft(ctx context.Context, userID, roomID uuid.UUID) {
	_ = h.dispatcher.Dispatch(ctx, realtime.EventMemberLeft, realtime.Target{RoomID: roomID}, map[string]any{
		"room_id": roomID.String(),
		"user_id": userID.String(),
	})

	// The last member leaving garbage-collects the room; its retained
	// history goes with it.
	if h.redis != nil && len(h.rooms.MembersOf(roomID)) == 0 {
		if err := h.redis.DropRoomEvents(ctx, roomID.String()); err != nil {
			h.logger.Warn().Str("room_id", roomID.String()).Err(err).Msg("history cleanup failed")
		}
	}
}

// sendError pushes an error frame to the client. Uses the same envelope
// shape as events so clients parse one format.
func (h *Handler) sendError(client *wsClient, code, action string) {
	_ = client.Send(realtime.Event{
		"type":      "error",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"code":      code,
		"action":    action,
	})
}
