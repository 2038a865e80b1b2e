package types

// Event represents a typed event emitted during a state transition. Attributes
// carry the canonical string encoding of the payload for indexers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
