package models

import (
	"strings"
	"time"
)

type Status string

const (
	StatusInitiated Status = "initiated"
	StatusRinging   Status = "ringing"
	StatusAnswered  Status = "answered"
	StatusRejected  Status = "rejected"
	StatusEnded     Status = "ended"
	StatusMissed    Status = "missed"
	StatusFailed    Status = "failed"
)

// transitions lists the only legal edges. Every status without an entry is terminal.
var transitions = map[Status][]Status{
	StatusInitiated: {StatusAnswered, StatusRejected, StatusMissed, StatusFailed, StatusEnded},
	StatusAnswered:  {StatusEnded},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusInitiated, StatusRinging, StatusAnswered, StatusRejected, StatusEnded, StatusMissed, StatusFailed:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusEnded, StatusMissed, StatusFailed:
		return true
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Progress orders statuses along the lifecycle: pending, connected, finished.
// Webhook reconciliation uses it to drop events the record has already passed.
func (s Status) Progress() int {
	switch {
	case s.IsTerminal():
		return 2
	case s == StatusAnswered:
		return 1
	default:
		return 0
	}
}

type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

func (t CallType) IsValid() bool { return t == CallTypeAudio || t == CallTypeVideo }

type CallMethod string

const (
	CallMethodDirect CallMethod = "direct"
	CallMethodMasked CallMethod = "masked"
)

func (m CallMethod) IsValid() bool { return m == CallMethodDirect || m == CallMethodMasked }

type EmergencyType string

const (
	EmergencyAccident  EmergencyType = "accident"
	EmergencyBreakdown EmergencyType = "breakdown"
	EmergencyTheft     EmergencyType = "theft"
	EmergencyMedical   EmergencyType = "medical"
	EmergencyGeneral   EmergencyType = "general"
)

func (e EmergencyType) IsValid() bool {
	switch e {
	case EmergencyAccident, EmergencyBreakdown, EmergencyTheft, EmergencyMedical, EmergencyGeneral:
		return true
	}
	return false
}

// IsEmergency is true for every type except general.
func (e EmergencyType) IsEmergency() bool { return e != EmergencyGeneral }

type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "low"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyCritical UrgencyLevel = "critical"
)

func (u UrgencyLevel) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

func (u UrgencyLevel) IsHigh() bool { return u == UrgencyHigh || u == UrgencyCritical }

type EndedBy string

const (
	EndedByCaller   EndedBy = "caller"
	EndedByReceiver EndedBy = "receiver"
	EndedBySystem   EndedBy = "system"
	EndedByTimeout  EndedBy = "timeout"
)

// CallerInfo is supplied by the anonymous caller and is never trusted.
type CallerInfo struct {
	Name           string        `json:"name"`
	Phone          string        `json:"phone,omitempty"`
	Location       string        `json:"location"`
	EmergencyType  EmergencyType `json:"emergencyType"`
	UrgencyLevel   UrgencyLevel  `json:"urgencyLevel"`
	Description    string        `json:"description"`
	AdditionalInfo string        `json:"additionalInfo"`
}

// DeviceSnapshot is captured at initiation and never updated.
type DeviceSnapshot struct {
	DeviceID           string `json:"deviceId"`
	Name               string `json:"deviceName,omitempty"`
	VehiclePlate       string `json:"vehiclePlate,omitempty"`
	VehicleDescription string `json:"vehicleDescription,omitempty"`
}

type Timing struct {
	InitiatedAt time.Time  `json:"initiatedAt"`
	AnsweredAt  *time.Time `json:"answeredAt,omitempty"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	Duration    int        `json:"duration"`
}

// MaskedSession correlates a call with the relay's PSTN session.
type MaskedSession struct {
	SessionID            string `json:"sessionId"`
	CallerMaskedNumber   string `json:"callerMaskedNumber"`
	ReceiverMaskedNumber string `json:"receiverMaskedNumber"`
	Status               string `json:"status,omitempty"`
	EstimatedConnectTime int    `json:"estimatedConnectTime,omitempty"`
}

type Quality struct {
	Rating   int    `json:"rating,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

// Metadata describes the caller's client as seen at initiation.
type Metadata struct {
	ClientIP  string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Browser   string `json:"browser,omitempty"`
	OS        string `json:"os,omitempty"`
	Mobile    bool   `json:"mobile"`
}

// Call is the authoritative record of one call attempt.
//
// Invariants:
//   - Status moves only along the edges in transitions; terminal statuses never change
//   - Duration == max(0, EndedAt-AnsweredAt) when both are set, else 0
//   - AnsweredAt is never after EndedAt
//   - Device, Caller context and ChannelName are fixed at creation, except the
//     caller's AdditionalInfo which records fallback and rejection notes
type Call struct {
	ID              string         `json:"callId"`
	ReceiverID      string         `json:"receiverId"`
	QRID            string         `json:"qrId"`
	ChannelName     string         `json:"channelName"`
	CallType        CallType       `json:"callType"`
	CallMethod      CallMethod     `json:"callMethod"`
	RequestedMethod CallMethod     `json:"requestedMethod"`
	Status          Status         `json:"status"`
	Caller          CallerInfo     `json:"callerInfo"`
	Device          DeviceSnapshot `json:"deviceInfo"`
	Timing          Timing         `json:"timing"`
	EndedBy         EndedBy        `json:"endedBy,omitempty"`
	IsEmergency     bool           `json:"isEmergency"`
	Masked          *MaskedSession `json:"maskedCallInfo,omitempty"`
	FallbackReason  string         `json:"fallbackReason,omitempty"`
	Quality         *Quality       `json:"callQuality,omitempty"`
	Metadata        Metadata       `json:"metadata"`
}

const (
	channelPrefix     = "emergency_"
	callerUIDPrefix   = "caller_"
	receiverUIDPrefix = "owner_"
)

func ChannelNameFor(callID string) string { return channelPrefix + callID }

// CallerUID is the RTC participant id of the anonymous caller, also used as
// the caller's realtime room.
func (c *Call) CallerUID() string { return callerUIDPrefix + c.ID }

func (c *Call) ReceiverUID() string { return receiverUIDPrefix + c.ReceiverID }

// CallIDFromCallerRoom extracts the call id from a caller room name.
func CallIDFromCallerRoom(room string) (string, bool) {
	id, ok := strings.CutPrefix(room, callerUIDPrefix)
	return id, ok && id != ""
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (c *Call) Clone() *Call {
	cp := *c
	if c.Timing.AnsweredAt != nil {
		t := *c.Timing.AnsweredAt
		cp.Timing.AnsweredAt = &t
	}
	if c.Timing.EndedAt != nil {
		t := *c.Timing.EndedAt
		cp.Timing.EndedAt = &t
	}
	if c.Masked != nil {
		m := *c.Masked
		cp.Masked = &m
	}
	if c.Quality != nil {
		q := *c.Quality
		cp.Quality = &q
	}
	return &cp
}
