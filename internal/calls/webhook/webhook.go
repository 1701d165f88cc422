// Package webhook parses and authenticates masked relay callbacks.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"qrcall/internal/calls/models"
	dErrors "qrcall/pkg/domain-errors"
)

const SignatureHeader = "X-Webhook-Signature"

const signaturePrefix = "sha256="

type Kind string

const (
	KindAnswered Kind = "call_answered"
	KindEnded    Kind = "call_ended"
	KindFailed   Kind = "call_failed"
	// KindIgnored covers recognized events that never move the state machine.
	KindIgnored Kind = "ignored"
)

var ignoredTypes = map[string]bool{
	"call_initiated": true,
	"call_ringing":   true,
}

// Event is a validated relay event. Only the fields relevant to Kind are meaningful.
type Event struct {
	Kind         Kind
	RawType      string
	CallID       string
	SessionID    string
	Status       string
	Duration     int
	Timestamp    time.Time
	Participants json.RawMessage
}

// Target is the status this event drives the call towards. Ignored events have none.
func (e Event) Target() (models.Status, bool) {
	switch e.Kind {
	case KindAnswered:
		return models.StatusAnswered, true
	case KindEnded:
		return models.StatusEnded, true
	case KindFailed:
		return models.StatusFailed, true
	}
	return "", false
}

type payload struct {
	MaskedCallID string          `json:"masked_call_id"`
	CallID       string          `json:"call_id"`
	EventType    string          `json:"event_type"`
	Status       string          `json:"status"`
	Duration     int             `json:"duration"`
	Participants json.RawMessage `json:"participants"`
	Timestamp    string          `json:"timestamp"`
}

// Parse decodes a relay callback body, rejecting unknown event types and
// payloads without a call id.
func Parse(body []byte) (Event, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Event{}, models.ErrInvalidWebhook("malformed webhook payload")
	}
	if strings.TrimSpace(p.CallID) == "" {
		return Event{}, models.ErrInvalidWebhook("call_id is required")
	}

	ev := Event{
		RawType:      p.EventType,
		CallID:       p.CallID,
		SessionID:    p.MaskedCallID,
		Status:       p.Status,
		Duration:     max(p.Duration, 0),
		Participants: p.Participants,
	}
	switch Kind(p.EventType) {
	case KindAnswered, KindEnded, KindFailed:
		ev.Kind = Kind(p.EventType)
	default:
		if !ignoredTypes[p.EventType] {
			return Event{}, models.ErrInvalidWebhook("unsupported event type").
				WithDetail("eventType", p.EventType)
		}
		ev.Kind = KindIgnored
	}
	if p.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
			ev.Timestamp = ts
		}
	}
	return ev, nil
}

// Verify checks header against the hex HMAC-SHA256 of body. An empty secret
// disables verification.
func Verify(secret string, body []byte, header string) error {
	if secret == "" {
		return nil
	}
	sig, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "missing webhook signature").
			WithReason(models.ReasonInvalidWebhook)
	}
	got, err := hex.DecodeString(sig)
	if err != nil || !hmac.Equal(got, sign(secret, body)) {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid webhook signature").
			WithReason(models.ReasonInvalidWebhook)
	}
	return nil
}

// Sign returns the header value a relay would send for body.
func Sign(secret string, body []byte) string {
	return signaturePrefix + hex.EncodeToString(sign(secret, body))
}

func sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
