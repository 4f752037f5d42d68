package ws

import "encoding/json"

// Event is the outbound wire envelope. Seq is assigned by the hub at
// broadcast time and increases monotonically, so a receiver can detect
// reordering or loss on its own connection.
type Event struct {
	Seq   uint64 `json:"seq"`
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// InboundEvent is the client-to-server envelope. Payload decoding is
// deferred until the event name is known.
type InboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
