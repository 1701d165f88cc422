// Package masked talks to the third-party relay that bridges two phones
// through masked PSTN numbers.
package masked

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotConfigured = errors.New("masked relay is not configured")
	ErrCircuitOpen   = errors.New("masked relay circuit is open")
)

type StartRequest struct {
	CallID        string
	CallerPhone   string
	ReceiverPhone string
	CallbackURL   string
	Metadata      StartMetadata
}

type StartMetadata struct {
	QRID          string `json:"qrId"`
	EmergencyType string `json:"emergencyType"`
	UrgencyLevel  string `json:"urgencyLevel"`
	DeviceID      string `json:"deviceId"`
}

// Session is the relay's handle for a bridged call.
type Session struct {
	SessionID            string
	CallerMaskedNumber   string
	ReceiverMaskedNumber string
	Status               string
	EstimatedConnectTime int
}

type EndResult struct {
	Status   string
	Duration int
	EndedAt  *time.Time
}

type SessionStatus struct {
	Status       string          `json:"status"`
	Duration     int             `json:"duration"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	EndedAt      *time.Time      `json:"endedAt,omitempty"`
	Participants json.RawMessage `json:"participants,omitempty"`
}

// Relay starts, ends and inspects masked sessions.
type Relay interface {
	Start(ctx context.Context, req StartRequest) (*Session, error)
	End(ctx context.Context, sessionID string) (*EndResult, error)
	Status(ctx context.Context, sessionID string) (*SessionStatus, error)
}
