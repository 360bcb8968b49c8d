package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Loutxo/bam-backend-sub000/internal/metrics"
)

// Status is a user's live presence status.
type Status string

const (
	StatusOnline Status = "online"
	StatusAway   Status = "away"
	StatusBusy   Status = "busy"
)

// ValidStatus reports whether s is one of the accepted presence statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy:
		return true
	}
	return false
}

type connection struct {
	conn         Conn
	status       Status
	lastActivity time.Time
}

// Registry maps a user identity to at most one live connection. It is a
// pure runtime cache: it starts empty on process restart and clients
// reconnect.
type Registry struct {
	mu     sync.RWMutex
	byUser map[uuid.UUID]*connection
	byConn map[Conn]uuid.UUID
	logger zerolog.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		byUser: make(map[uuid.UUID]*connection),
		byConn: make(map[Conn]uuid.UUID),
		logger: logger.With().Str("component", "registry").Logger(),
	}
}

// Register records a connection for a user, evicting and closing any prior
// connection for the same user. A new login supersedes an old one.
func (r *Registry) Register(userID uuid.UUID, c Conn) {
	var evicted Conn

	r.mu.Lock()
	if prev, ok := r.byUser[userID]; ok {
		delete(r.byConn, prev.conn)
		evicted = prev.conn
	}
	r.byUser[userID] = &connection{
		conn:         c,
		status:       StatusOnline,
		lastActivity: time.Now(),
	}
	r.byConn[c] = userID
	total := len(r.byUser)
	r.mu.Unlock()

	// Close outside the lock; the evicted handle's Close may block on I/O.
	if evicted != nil {
		_ = evicted.Close()
		r.logger.Debug().Str("user_id", userID.String()).Msg("superseded previous connection")
	}

	metrics.LiveConnections.Set(float64(total))
}

// Unregister removes the connection. It is a no-op if the handle is
// already gone, or if the user has since registered a different connection
// (supersession must not tear down the newer login).
func (r *Registry) Unregister(c Conn) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[c]
	if !ok {
		return uuid.Nil, false
	}
	delete(r.byConn, c)
	if cur, ok := r.byUser[userID]; ok && cur.conn == c {
		delete(r.byUser, userID)
	}
	metrics.LiveConnections.Set(float64(len(r.byUser)))
	return userID, true
}

// IsOnline reports whether the user has a live connection.
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[userID]
	return ok
}

// SetStatus updates the presence status. It is a silent no-op when the
// user has no live connection. Returns true if a status was recorded.
func (r *Registry) SetStatus(userID uuid.UUID, status Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byUser[userID]
	if !ok {
		return false
	}
	conn.status = status
	conn.lastActivity = time.Now()
	return true
}

// StatusOf returns the user's current status, or "" when offline.
func (r *Registry) StatusOf(userID uuid.UUID) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if conn, ok := r.byUser[userID]; ok {
		return conn.status
	}
	return ""
}

// Touch refreshes the last-activity timestamp for a user.
func (r *Registry) Touch(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.byUser[userID]; ok {
		conn.lastActivity = time.Now()
	}
}

// Get returns the live connection handle for a user.
func (r *Registry) Get(userID uuid.UUID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if conn, ok := r.byUser[userID]; ok {
		return conn.conn, true
	}
	return nil, false
}

// All returns every live connection handle.
func (r *Registry) All() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]Conn, 0, len(r.byUser))
	for _, c := range r.byUser {
		conns = append(conns, c.conn)
	}
	return conns
}

// Count returns the number of connected users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
