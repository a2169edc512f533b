// Package proto defines the wire format for the Remote Bridge (§4.9):
// a small tagged JSON envelope, not generated protobuf. See the
// project's design notes for why a generated RPC stack was rejected
// here in favor of a hand-rolled envelope.
package proto

import "encoding/json"

// Kind discriminates what an Envelope carries.
type Kind string

const (
	// KindRequest forwards a DAP command's arguments to a peer. The
	// peer is expected to run it against its own local adapter and
	// reply with a KindResponse envelope carrying the same RequestID.
	KindRequest Kind = "request"

	// KindResponse answers a KindRequest envelope.
	KindResponse Kind = "response"

	// KindEvent forwards a DAP event (or reverse request) from the
	// peer's local adapter; it carries no RequestID and expects no
	// reply.
	KindEvent Kind = "event"
)

// Envelope is the unit exchanged with a remote peer. Command carries
// the DAP command or event name (e.g. "continue", "stopped",
// "runInTerminal"); Payload carries that message's Arguments or Body
// object, unmodified, as opaque JSON — the envelope format does not
// need to understand DAP semantics, only to route them.
type Envelope struct {
	SessionID uint64          `json:"sessionId"`
	ClientID  uint64          `json:"clientId"`
	RequestID string          `json:"requestId,omitempty"` // uuid; empty for KindEvent
	Kind      Kind            `json:"kind"`
	Command   string          `json:"command"`
	Success   bool            `json:"success,omitempty"`
	Message   string          `json:"message,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
