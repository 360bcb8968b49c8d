package realtime

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Loutxo/bam-backend-sub000/internal/metrics"
)

// Broadcaster delivers events to single users, room members, or everyone.
// Delivery is best-effort and at-most-once: a send failure is logged and
// counted, never retried or surfaced. Durable alerts back every push that
// matters.
type Broadcaster struct {
	reg    *Registry
	rooms  *Rooms
	logger zerolog.Logger
}

// NewBroadcaster creates a broadcaster over the registry and room table.
func NewBroadcaster(reg *Registry, rooms *Rooms, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		reg:    reg,
		rooms:  rooms,
		logger: logger.With().Str("component", "broadcaster").Logger(),
	}
}

// ToUser delivers an event to the user's live connection. Returns false
// when the user is offline; the caller decides whether that matters.
func (b *Broadcaster) ToUser(userID uuid.UUID, ev Event) bool {
	conn, ok := b.reg.Get(userID)
	if !ok {
		metrics.EventsDropped.WithLabelValues("offline").Inc()
		return false
	}
	if err := conn.Send(ev); err != nil {
		b.logger.Debug().
			Str("user_id", userID.String()).
			Str("event", string(ev.Type())).
			Err(err).
			Msg("send failed")
		metrics.EventsDropped.WithLabelValues("send_error").Inc()
		return false
	}
	metrics.EventsDelivered.WithLabelValues(string(ev.Type())).Inc()
	return true
}

// ToRoom delivers an event to every connected member of the room. Returns
// the number of connections the event was handed to.
func (b *Broadcaster) ToRoom(roomID uuid.UUID, ev Event) int {
	delivered := 0
	for _, userID := range b.rooms.MembersOf(roomID) {
		if b.ToUser(userID, ev) {
			delivered++
		}
	}
	return delivered
}

// ToAll delivers an event to every live connection. Reserved for
// system-wide broadcasts such as new incident reports.
func (b *Broadcaster) ToAll(ev Event) int {
	delivered := 0
	for _, conn := range b.reg.All() {
		if err := conn.Send(ev); err != nil {
			metrics.EventsDropped.WithLabelValues("send_error").Inc()
			continue
		}
		metrics.EventsDelivered.WithLabelValues(string(ev.Type())).Inc()
		delivered++
	}
	return delivered
}
