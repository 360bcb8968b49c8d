package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SanctionPermanentBan is the sanction type that triggers a forced
// disconnect after the grace delay.
const SanctionPermanentBan = "permanent_ban"

// EventSink receives room-scoped events for history retention. Implemented
// by store.RedisStore; nil disables retention.
type EventSink interface {
	AddRoomEvent(ctx context.Context, roomID string, event map[string]any) error
}

// Target names the recipient of a dispatched event. Exactly one of the
// fields is consulted, depending on the event type's scope.
type Target struct {
	UserID uuid.UUID
	RoomID uuid.UUID
}

// Dispatcher is the public facade of the realtime engine: it takes domain
// events (zone transitions, proximity alerts, moderation and gamification
// events) and routes them through the broadcaster using the fixed
// vocabulary in events.go.
type Dispatcher struct {
	b        *Broadcaster
	reg      *Registry
	sink     EventSink
	banGrace time.Duration
	logger   zerolog.Logger
}

// NewDispatcher wires a dispatcher. The dispatcher is constructed first
// and handed by reference to the geofence engine and handlers; no global
// singletons.
func NewDispatcher(b *Broadcaster, reg *Registry, sink EventSink, banGrace time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		b:        b,
		reg:      reg,
		sink:     sink,
		banGrace: banGrace,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch routes one domain event. Unknown types are rejected; a missing
// recipient for the event's scope is rejected. Delivery itself is
// best-effort and its outcome is not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, t EventType, target Target, payload map[string]any) error {
	scope, ok := RouteFor(t)
	if !ok {
		return ErrUnknownEventType
	}

	ev := NewEvent(t, payload)

	switch scope {
	case ScopeUser:
		if target.UserID == uuid.Nil {
			return ErrNotFound
		}
		delivered := d.b.ToUser(target.UserID, ev)
		d.logger.Debug().
			Str("event", string(t)).
			Str("user_id", target.UserID.String()).
			Bool("delivered", delivered).
			Msg("dispatched")

	case ScopeRoom:
		if target.RoomID == uuid.Nil {
			return ErrNotFound
		}
		n := d.b.ToRoom(target.RoomID, ev)
		d.retain(ctx, target.RoomID, ev)
		d.logger.Debug().
			Str("event", string(t)).
			Str("room_id", target.RoomID.String()).
			Int("delivered", n).
			Msg("dispatched")

	case ScopeAll:
		n := d.b.ToAll(ev)
		d.logger.Debug().
			Str("event", string(t)).
			Int("delivered", n).
			Msg("broadcast")
	}

	if t == EventUserSanctioned && payload["sanction_type"] == SanctionPermanentBan {
		d.scheduleDisconnect(target.UserID)
	}

	return nil
}

// retain stores a room event in the history sink, best-effort.
func (d *Dispatcher) retain(ctx context.Context, roomID uuid.UUID, ev Event) {
	if d.sink == nil {
		return
	}
	if err := d.sink.AddRoomEvent(ctx, roomID.String(), ev); err != nil {
		d.logger.Warn().Str("room_id", roomID.String()).Err(err).Msg("event history write failed")
	}
}

// scheduleDisconnect closes a banned user's connection after a short grace
// period so the client can show the sanction notice. This is a UX
// courtesy, not a security boundary: the auth layer independently rejects
// the banned identity on future requests, and nothing here assumes the
// disconnect lands before the user acts again.
func (d *Dispatcher) scheduleDisconnect(userID uuid.UUID) {
	if userID == uuid.Nil {
		return
	}
	time.AfterFunc(d.banGrace, func() {
		conn, ok := d.reg.Get(userID)
		if !ok {
			return
		}
		d.logger.Info().Str("user_id", userID.String()).Msg("forced disconnect after permanent ban")
		_ = conn.Close()
	})
}
