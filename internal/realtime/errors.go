package realtime

import "errors"

var (
	// ErrUnauthenticated means no valid identity was presented at connect
	// time. The connection is refused before any state is mutated.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrAccessDenied means a room join was rejected by the authorization
	// check. The connection itself stays open.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound means the referenced room, user or zone does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRoomClosed means the room's backing incident is no longer active.
	ErrRoomClosed = errors.New("room closed")

	// ErrStoreUnavailable wraps transient store failures. Callers must not
	// conflate it with ErrAccessDenied: one is retryable, the other is a
	// refusal.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUnknownEventType means an event type outside the fixed vocabulary
	// was pushed at the dispatcher.
	ErrUnknownEventType = errors.New("unknown event type")
)
