package events

// Event represents a structured state change emitted by the oracle core.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (RPC, indexers,
// metrics).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default for engines whose caller has not wired a subscriber.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
