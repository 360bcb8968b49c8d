package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Loutxo/bam-backend-sub000/internal/metrics"
)

// AuthorizeFunc checks whether a user may join a room. It returns nil on
// success, ErrAccessDenied / ErrNotFound / ErrRoomClosed on refusal, and
// an ErrStoreUnavailable-wrapped error when the backing store failed.
type AuthorizeFunc func(ctx context.Context, userID, roomID uuid.UUID) error

// Rooms tracks which connected users participate in which rooms. Rooms are
// not pre-declared: they spring into existence on first join and are
// garbage collected when the last member leaves. Like the Registry, this
// is runtime-only state.
type Rooms struct {
	mu      sync.RWMutex
	members map[uuid.UUID]map[uuid.UUID]struct{} // roomID -> set of userIDs
	reg     *Registry
	logger  zerolog.Logger
}

// NewRooms creates an empty room membership table.
func NewRooms(reg *Registry, logger zerolog.Logger) *Rooms {
	return &Rooms{
		members: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		reg:     reg,
		logger:  logger.With().Str("component", "rooms").Logger(),
	}
}

// Join adds the user to the room after the authorization check passes.
// The check runs before any lock is taken, so a slow store call never
// blocks other membership operations. Returns the updated member list.
func (r *Rooms) Join(ctx context.Context, userID, roomID uuid.UUID, authorize AuthorizeFunc) ([]uuid.UUID, error) {
	if !r.reg.IsOnline(userID) {
		return nil, ErrUnauthenticated
	}

	if err := authorize(ctx, userID, roomID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	set, ok := r.members[roomID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		r.members[roomID] = set
	}
	set[userID] = struct{}{}
	list := make([]uuid.UUID, 0, len(set))
	for id := range set {
		list = append(list, id)
	}
	metrics.ActiveRooms.Set(float64(len(r.members)))
	r.mu.Unlock()

	return list, nil
}

// Leave removes the user's membership. Removing the last member deletes
// the room entry. Returns true if a membership was actually removed.
func (r *Rooms) Leave(userID, roomID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[roomID]
	if !ok {
		return false
	}
	if _, ok := set[userID]; !ok {
		return false
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(r.members, roomID)
	}
	metrics.ActiveRooms.Set(float64(len(r.members)))
	return true
}

// MembersOf returns the room's member set filtered to users that still
// have a live connection. Membership and connection state can transiently
// diverge on ungraceful disconnects; the filter self-heals the view.
func (r *Rooms) MembersOf(roomID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	set := r.members[roomID]
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	online := ids[:0]
	for _, id := range ids {
		if r.reg.IsOnline(id) {
			online = append(online, id)
		}
	}
	return online
}

// RoomsOf returns the rooms the user currently belongs to.
func (r *Rooms) RoomsOf(userID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rooms []uuid.UUID
	for roomID, set := range r.members {
		if _, ok := set[userID]; ok {
			rooms = append(rooms, roomID)
		}
	}
	return rooms
}

// RemoveFromAll drops the user from every room, returning the rooms that
// were affected so the caller can emit member-left events. Used on
// disconnect.
func (r *Rooms) RemoveFromAll(userID uuid.UUID) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var affected []uuid.UUID
	for roomID, set := range r.members {
		if _, ok := set[userID]; !ok {
			continue
		}
		delete(set, userID)
		affected = append(affected, roomID)
		if len(set) == 0 {
			delete(r.members, roomID)
		}
	}
	metrics.ActiveRooms.Set(float64(len(r.members)))
	return affected
}

// Count returns the number of rooms with at least one member.
func (r *Rooms) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
