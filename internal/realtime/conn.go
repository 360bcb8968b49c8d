package realtime

// Conn is a live client connection capable of receiving events. The
// transport (websocket) lives in the handlers package; the engine only
// pushes envelopes and closes handles it evicts.
//
// Implementations must be comparable (pointer receivers) and safe for
// concurrent Send calls. Send is best-effort: an error or a dropped frame
// never propagates past the broadcaster.
type Conn interface {
	Send(event Event) error
	Close() error
}
