// Package realtime delivers call lifecycle events to connected clients.
//
// Every client joins rooms named after an identity: the owner's user id, or
// caller_<callId> for an anonymous caller. Delivery is at most once per
// connected socket; clients that miss an event recover by polling call status.
package realtime

const (
	EventIncomingCall     = "incoming-call"
	EventCallAccepted     = "call-accepted"
	EventCallRejected     = "call-rejected"
	EventCallEnded        = "call-ended"
	EventMaskedCallUpdate = "masked-call-update"
	EventEmergencyAlert   = "emergency-alert"
	EventJoined           = "joined"
	EventError            = "error"
)

// EventJoinUser is the only event clients send.
const EventJoinUser = "join-user"

// Event is the wire frame exchanged with clients.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

func NewEvent(name string, data any) Event {
	return Event{Name: name, Data: data}
}
