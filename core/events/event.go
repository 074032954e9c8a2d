package events

// Payload is the wire representation of a structured state change emitted by
// the marketplace engines and consumed by downstream indexers.
type Payload struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Event represents a typed state change that can render itself as a payload.
type Event interface {
	EventType() string
	Event() *Payload
}

// Emitter broadcasts events to downstream subscribers (RPC streams, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default wired into engines until a real sink is attached.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
