package models

import (
	"strings"
	"time"
)

const (
	DefaultCallerName     = "Anonymous Caller"
	DefaultCallerLocation = "Unknown location"

	maxFreeTextLength = 500
	maxFeedbackLength = 1000
)

type CallerInfoInput struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Location       string `json:"location"`
	Description    string `json:"description"`
	AdditionalInfo string `json:"additionalInfo"`
}

type InitiateRequest struct {
	QRID          string          `json:"qrId"`
	CallType      CallType        `json:"callType"`
	CallMethod    CallMethod      `json:"callMethod"`
	CallerInfo    CallerInfoInput `json:"callerInfo"`
	EmergencyType EmergencyType   `json:"emergencyType"`
	UrgencyLevel  UrgencyLevel    `json:"urgencyLevel"`
}

// Normalize trims input and fills defaults for omitted enums.
func (r *InitiateRequest) Normalize() {
	r.QRID = strings.TrimSpace(r.QRID)
	if r.CallType == "" {
		r.CallType = CallTypeAudio
	}
	if r.CallMethod == "" {
		r.CallMethod = CallMethodDirect
	}
	if r.EmergencyType == "" {
		r.EmergencyType = EmergencyGeneral
	}
	if r.UrgencyLevel == "" {
		r.UrgencyLevel = UrgencyMedium
	}
	r.CallerInfo.Name = strings.TrimSpace(r.CallerInfo.Name)
	r.CallerInfo.Phone = strings.TrimSpace(r.CallerInfo.Phone)
	r.CallerInfo.Location = strings.TrimSpace(r.CallerInfo.Location)
}

func (r *InitiateRequest) Validate() error {
	switch {
	case r.QRID == "":
		return ErrValidation("qrId is required")
	case !r.CallType.IsValid():
		return ErrValidation("callType must be audio or video")
	case !r.CallMethod.IsValid():
		return ErrValidation("callMethod must be direct or masked")
	case !r.EmergencyType.IsValid():
		return ErrValidation("unsupported emergencyType")
	case !r.UrgencyLevel.IsValid():
		return ErrValidation("unsupported urgencyLevel")
	case len(r.CallerInfo.Description) > maxFreeTextLength,
		len(r.CallerInfo.AdditionalInfo) > maxFreeTextLength,
		len(r.CallerInfo.Location) > maxFreeTextLength:
		return ErrValidation("caller information is too long")
	}
	return nil
}

// Caller builds the stored caller context with display defaults applied.
func (r *InitiateRequest) Caller() CallerInfo {
	info := CallerInfo{
		Name:           r.CallerInfo.Name,
		Phone:          r.CallerInfo.Phone,
		Location:       r.CallerInfo.Location,
		EmergencyType:  r.EmergencyType,
		UrgencyLevel:   r.UrgencyLevel,
		Description:    r.CallerInfo.Description,
		AdditionalInfo: r.CallerInfo.AdditionalInfo,
	}
	if info.Name == "" {
		info.Name = DefaultCallerName
	}
	if info.Location == "" {
		info.Location = DefaultCallerLocation
	}
	return info
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

func (r *RejectRequest) Validate() error {
	if len(r.Reason) > maxFreeTextLength {
		return ErrValidation("reason is too long")
	}
	return nil
}

type EndRequest struct {
	CallQuality *Quality `json:"callQuality"`
}

func (r *EndRequest) Validate() error {
	if r.CallQuality == nil {
		return nil
	}
	if r.CallQuality.Rating < 0 || r.CallQuality.Rating > 5 {
		return ErrValidation("callQuality.rating must be between 1 and 5")
	}
	if len(r.CallQuality.Feedback) > maxFeedbackLength {
		return ErrValidation("callQuality.feedback is too long")
	}
	return nil
}

// Actor identifies who is acting on a call.
type Actor struct {
	UserID string
	CallID string
}

func OwnerActor(userID string) Actor { return Actor{UserID: userID} }

func CallerActor(callID string) Actor { return Actor{CallID: callID} }

// EndedByFor resolves the endedBy value for actor ending call, or false when
// actor takes no part in it.
func (a Actor) EndedByFor(call *Call) (EndedBy, bool) {
	switch {
	case a.UserID != "" && a.UserID == call.ReceiverID:
		return EndedByReceiver, true
	case a.CallID != "" && a.CallID == call.ID:
		return EndedByCaller, true
	}
	return "", false
}

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// HistoryFilter selects a receiver's calls.
type HistoryFilter struct {
	ReceiverID    string
	DeviceID      string
	EmergencyOnly bool
	EmergencyType EmergencyType
	CallMethod    CallMethod
	From          *time.Time
	To            *time.Time
	Page          int
	Limit         int
}

// Normalize clamps paging to sane bounds.
func (f *HistoryFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultHistoryLimit
	}
	if f.Limit > MaxHistoryLimit {
		f.Limit = MaxHistoryLimit
	}
}

func (f *HistoryFilter) Offset() int { return (f.Page - 1) * f.Limit }

// Matches applies every filter except paging to call.
func (f *HistoryFilter) Matches(call *Call) bool {
	if f.ReceiverID != "" && call.ReceiverID != f.ReceiverID {
		return false
	}
	if f.DeviceID != "" && call.Device.DeviceID != f.DeviceID {
		return false
	}
	if f.EmergencyOnly && !call.IsEmergency {
		return false
	}
	if f.EmergencyType != "" && call.Caller.EmergencyType != f.EmergencyType {
		return false
	}
	if f.CallMethod != "" && call.CallMethod != f.CallMethod {
		return false
	}
	if f.From != nil && call.Timing.InitiatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && call.Timing.InitiatedAt.After(*f.To) {
		return false
	}
	return true
}
