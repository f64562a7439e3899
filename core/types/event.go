package types

// Event is a structured record of a state transition, suitable for JSON
// serialization toward RPC and gateway subscribers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
