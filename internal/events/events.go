// Package events streams call lifecycle changes to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"qrcall/internal/calls/models"
)

type Type string

const (
	TypeInitiated Type = "call.initiated"
	TypeAnswered  Type = "call.answered"
	TypeRejected  Type = "call.rejected"
	TypeEnded     Type = "call.ended"
	TypeMissed    Type = "call.missed"
	TypeFailed    Type = "call.failed"
	TypeFallback  Type = "call.fallback"
)

// Event is one lifecycle change. It never carries caller phone numbers.
type Event struct {
	ID          string            `json:"eventId"`
	Type        Type              `json:"type"`
	CallID      string            `json:"callId"`
	ReceiverID  string            `json:"receiverId"`
	QRID        string            `json:"qrId"`
	Status      string            `json:"status"`
	CallMethod  string            `json:"callMethod"`
	EndedBy     string            `json:"endedBy,omitempty"`
	IsEmergency bool              `json:"isEmergency"`
	Source      string            `json:"source"`
	RequestID   string            `json:"requestId,omitempty"`
	OccurredAt  time.Time         `json:"occurredAt"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Emitter accepts events without blocking the caller.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// Discard drops every event. Used when no stream is configured.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(context.Context, Event) {}

// FromCall snapshots the public fields of call.
func FromCall(typ Type, call *models.Call, source string, attrs map[string]string) Event {
	return Event{
		Type:        typ,
		CallID:      call.ID,
		ReceiverID:  call.ReceiverID,
		QRID:        call.QRID,
		Status:      string(call.Status),
		CallMethod:  string(call.CallMethod),
		EndedBy:     string(call.EndedBy),
		IsEmergency: call.IsEmergency,
		Source:      source,
		Attributes:  attrs,
	}
}

// TypeFor maps a call status to the event announcing it.
func TypeFor(status models.Status) Type {
	switch status {
	case models.StatusAnswered:
		return TypeAnswered
	case models.StatusRejected:
		return TypeRejected
	case models.StatusEnded:
		return TypeEnded
	case models.StatusMissed:
		return TypeMissed
	case models.StatusFailed:
		return TypeFailed
	default:
		return TypeInitiated
	}
}

func newID() string { return uuid.NewString() }
