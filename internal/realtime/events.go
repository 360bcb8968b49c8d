package realtime

import (
	"time"
)

// EventType identifies a real-time event in the fixed vocabulary.
type EventType string

const (
	EventZoneEnter       EventType = "zone_enter"
	EventZoneExit        EventType = "zone_exit"
	EventProximityAlert  EventType = "proximity_alert"
	EventBadgeEarned     EventType = "badge_earned"
	EventLevelUp         EventType = "level_up"
	EventStreakUpdate    EventType = "streak_update"
	EventUserReported    EventType = "user_reported"
	EventUserSanctioned  EventType = "user_sanctioned"
	EventNewReport       EventType = "new_report"
	EventNewMessage      EventType = "new_message"
	EventMemberJoined    EventType = "member_joined"
	EventMemberLeft      EventType = "member_left"
	EventTypingStatus    EventType = "typing_status"
	EventPresenceChanged EventType = "presence_changed"
)

// Scope is the fan-out strategy for an event type.
type Scope int

const (
	ScopeUser Scope = iota
	ScopeRoom
	ScopeAll
)

// routes is the closed vocabulary: every event type maps to exactly one
// fan-out strategy. Adding an event means adding a row here, nowhere else.
var routes = map[EventType]Scope{
	EventZoneEnter:       ScopeUser,
	EventZoneExit:        ScopeUser,
	EventProximityAlert:  ScopeUser,
	EventBadgeEarned:     ScopeUser,
	EventLevelUp:         ScopeUser,
	EventStreakUpdate:    ScopeUser,
	EventUserReported:    ScopeUser,
	EventUserSanctioned:  ScopeUser,
	EventNewReport:       ScopeAll,
	EventNewMessage:      ScopeRoom,
	EventMemberJoined:    ScopeRoom,
	EventMemberLeft:      ScopeRoom,
	EventTypingStatus:    ScopeRoom,
	EventPresenceChanged: ScopeRoom,
}

// RouteFor returns the fan-out scope for an event type, and whether the
// type is part of the vocabulary.
func RouteFor(t EventType) (Scope, bool) {
	s, ok := routes[t]
	return s, ok
}

// Event is the wire envelope delivered to clients. Every event carries at
// least "type" and an RFC3339 "timestamp"; the rest is type-specific.
type Event map[string]any

// NewEvent builds an envelope from a payload. The payload is copied so the
// caller's map is never mutated.
func NewEvent(t EventType, payload map[string]any) Event {
	ev := make(Event, len(payload)+2)
	for k, v := range payload {
		ev[k] = v
	}
	ev["type"] = string(t)
	ev["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return ev
}

// Type returns the envelope's event type.
func (e Event) Type() EventType {
	t, _ := e["type"].(string)
	return EventType(t)
}
