package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fakeSink struct {
	mu     sync.Mutex
	events []map[string]any
	err    error
}

func (s *fakeSink) AddRoomEvent(_ context.Context, _ string, event map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func newTestEngine(t *testing.T) (*Registry, *Rooms, *Dispatcher, *fakeSink) {
	t.Helper()
	reg := NewRegistry(zerolog.Nop())
	rooms := NewRooms(reg, zerolog.Nop())
	b := NewBroadcaster(reg, rooms, zerolog.Nop())
	sink := &fakeSink{}
	d := NewDispatcher(b, reg, sink, 10*time.Millisecond, zerolog.Nop())
	return reg, rooms, d, sink
}

func TestDispatch_RejectsUnknownType(t *testing.T) {
	_, _, d, _ := newTestEngine(t)

	err := d.Dispatch(context.Background(), "mystery_event", Target{UserID: uuid.New()}, nil)
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestDispatch_RequiresTargetForScope(t *testing.T) {
	_, _, d, _ := newTestEngine(t)

	if err := d.Dispatch(context.Background(), EventBadgeEarned, Target{}, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("user-scoped event without user: expected ErrNotFound, got %v", err)
	}
	if err := d.Dispatch(context.Background(), EventNewMessage, Target{}, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("room-scoped event without room: expected ErrNotFound, got %v", err)
	}
}

func TestDispatch_UserScopedDelivery(t *testing.T) {
	reg, _, d, _ := newTestEngine(t)
	userID := uuid.New()
	c := &fakeConn{}
	reg.Register(userID, c)

	err := d.Dispatch(context.Background(), EventZoneEnter, Target{UserID: userID}, map[string]any{
		"zone_name": "Home",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := c.received()
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	ev := got[0]
	if ev["type"] != "zone_enter" {
		t.Errorf("expected type zone_enter, got %v", ev["type"])
	}
	if ev["zone_name"] != "Home" {
		t.Errorf("payload lost: %v", ev)
	}
	ts, _ := ev["timestamp"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", ts, err)
	}
}

func TestDispatch_OfflineRecipientIsNotAnError(t *testing.T) {
	_, _, d, _ := newTestEngine(t)

	// Best-effort delivery: the recipient being offline is a normal outcome.
	err := d.Dispatch(context.Background(), EventProximityAlert, Target{UserID: uuid.New()}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDispatch_RoomScopedDeliveryAndRetention(t *testing.T) {
	reg, rooms, d, sink := newTestEngine(t)
	roomID := uuid.New()

	a, b := uuid.New(), uuid.New()
	ca, cb := &fakeConn{}, &fakeConn{}
	reg.Register(a, ca)
	reg.Register(b, cb)
	for _, id := range []uuid.UUID{a, b} {
		if _, err := rooms.Join(context.Background(), id, roomID, allowAll); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	err := d.Dispatch(context.Background(), EventNewMessage, Target{RoomID: roomID}, map[string]any{
		"body": "anyone near the station?",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, c := range []*fakeConn{ca, cb} {
		if len(c.received()) != 1 {
			t.Errorf("expected each member to receive the event, got %d", len(c.received()))
		}
	}
	if len(sink.events) != 1 {
		t.Errorf("expected the room event to be retained, got %d", len(sink.events))
	}
}

func TestDispatch_AllScopedBroadcast(t *testing.T) {
	reg, _, d, _ := newTestEngine(t)

	conns := []*fakeConn{{}, {}, {}}
	for _, c := range conns {
		reg.Register(uuid.New(), c)
	}

	err := d.Dispatch(context.Background(), EventNewReport, Target{}, map[string]any{
		"title": "accident on A6",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, c := range conns {
		if len(c.received()) != 1 {
			t.Errorf("conn %d: expected broadcast delivery, got %d events", i, len(c.received()))
		}
	}
}

func TestDispatch_PermanentBanForcesDisconnect(t *testing.T) {
	reg, _, d, _ := newTestEngine(t)
	userID := uuid.New()
	c := &fakeConn{}
	reg.Register(userID, c)

	err := d.Dispatch(context.Background(), EventUserSanctioned, Target{UserID: userID}, map[string]any{
		"sanction_type": SanctionPermanentBan,
		"reason":        "repeated abuse",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The sanction notice lands first, the disconnect follows the grace delay.
	if len(c.received()) != 1 {
		t.Fatalf("expected the sanction event to be delivered, got %d", len(c.received()))
	}
	if c.isClosed() {
		t.Fatal("connection must not close before the grace delay")
	}

	deadline := time.Now().Add(time.Second)
	for !c.isClosed() {
		if time.Now().After(deadline) {
			t.Fatal("connection was never closed after permanent ban")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatch_LesserSanctionDoesNotDisconnect(t *testing.T) {
	reg, _, d, _ := newTestEngine(t)
	userID := uuid.New()
	c := &fakeConn{}
	reg.Register(userID, c)

	err := d.Dispatch(context.Background(), EventUserSanctioned, Target{UserID: userID}, map[string]any{
		"sanction_type": "warning",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if c.isClosed() {
		t.Error("a warning must not close the connection")
	}
}

func TestBroadcaster_SendFailureIsContained(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	rooms := NewRooms(reg, zerolog.Nop())
	b := NewBroadcaster(reg, rooms, zerolog.Nop())
	roomID := uuid.New()

	healthy := &fakeConn{}
	broken := &fakeConn{sendErr: errors.New("write: broken pipe")}
	a, bad := uuid.New(), uuid.New()
	reg.Register(a, healthy)
	reg.Register(bad, broken)
	for _, id := range []uuid.UUID{a, bad} {
		if _, err := rooms.Join(context.Background(), id, roomID, allowAll); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	delivered := b.ToRoom(roomID, NewEvent(EventTypingStatus, nil))
	if delivered != 1 {
		t.Errorf("expected delivery to the healthy member only, got %d", delivered)
	}
	if len(healthy.received()) != 1 {
		t.Error("healthy member should have received the event")
	}
}

func TestNewEvent_DoesNotMutateCallerPayload(t *testing.T) {
	payload := map[string]any{"level": 3}
	_ = NewEvent(EventLevelUp, payload)
	if _, ok := payload["type"]; ok {
		t.Error("caller's payload map was mutated")
	}
}
