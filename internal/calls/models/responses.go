package models

import (
	"time"
)

type CallContext struct {
	EmergencyType EmergencyType `json:"emergencyType"`
	UrgencyLevel  UrgencyLevel  `json:"urgencyLevel"`
	IsEmergency   bool          `json:"isEmergency"`
}

func (c *Call) Context() CallContext {
	return CallContext{
		EmergencyType: c.Caller.EmergencyType,
		UrgencyLevel:  c.Caller.UrgencyLevel,
		IsEmergency:   c.IsEmergency,
	}
}

// Fallback tells the caller the requested masked call was served as a direct one.
type Fallback struct {
	Occurred bool   `json:"occurred"`
	Reason   string `json:"reason,omitempty"`
}

type ReceiverInfo struct {
	Name string `json:"name"`
}

// RTCCredential is a participant's credential for the direct channel.
type RTCCredential struct {
	UID         string    `json:"uid"`
	ChannelName string    `json:"channelName"`
	Token       string    `json:"token"`
	RoomKey     string    `json:"roomKey,omitempty"`
	AppID       int       `json:"appId"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// InitiateResult carries everything produced while admitting a call.
type InitiateResult struct {
	Call             *Call
	CallerCredential *RTCCredential
	// ReceiverCredential is pushed to the receiver only, never returned to the caller.
	ReceiverCredential *RTCCredential
	CallerToken        string
	ReceiverName       string
}

type InitiateResponse struct {
	Success         bool           `json:"success"`
	Message         string         `json:"message"`
	CallID          string         `json:"callId"`
	CallMethod      CallMethod     `json:"callMethod"`
	RequestedMethod CallMethod     `json:"requestedMethod"`
	Fallback        Fallback       `json:"fallback"`
	CallType        CallType       `json:"callType"`
	Receiver        ReceiverInfo   `json:"receiver"`
	DeviceInfo      DeviceSnapshot `json:"deviceInfo"`
	CallContext     CallContext    `json:"callContext"`
	// CallerToken authorizes status updates and /end for this call only.
	CallerToken    string         `json:"callerToken"`
	CallerUID      string         `json:"callerUID,omitempty"`
	ChannelName    string         `json:"channelName,omitempty"`
	Token          string         `json:"token,omitempty"`
	RoomKey        string         `json:"roomKey,omitempty"`
	AppID          int            `json:"appId,omitempty"`
	MaskedCallInfo *MaskedSession `json:"maskedCallInfo,omitempty"`
}

func NewInitiateResponse(res *InitiateResult) InitiateResponse {
	call := res.Call
	resp := InitiateResponse{
		Success:         true,
		CallID:          call.ID,
		CallMethod:      call.CallMethod,
		RequestedMethod: call.RequestedMethod,
		Fallback: Fallback{
			Occurred: call.FallbackReason != "",
			Reason:   call.FallbackReason,
		},
		CallType:    call.CallType,
		Receiver:    ReceiverInfo{Name: res.ReceiverName},
		DeviceInfo:  call.Device,
		CallContext: call.Context(),
		CallerToken: res.CallerToken,
	}
	if call.CallMethod == CallMethodMasked {
		resp.MaskedCallInfo = call.Masked
		resp.Message = "Masked call initiated. Both parties will receive calls from masked numbers."
		return resp
	}
	if cred := res.CallerCredential; cred != nil {
		resp.CallerUID = cred.UID
		resp.ChannelName = cred.ChannelName
		resp.Token = cred.Token
		resp.RoomKey = cred.RoomKey
		resp.AppID = cred.AppID
	}
	if call.IsEmergency {
		resp.Message = "Emergency call initiated. The vehicle owner will be notified immediately with high priority."
	} else {
		resp.Message = "Call initiated successfully. The vehicle owner will be notified."
	}
	return resp
}

type AnswerResult struct {
	Call       *Call
	Credential *RTCCredential
}

type AnswerResponse struct {
	Success        bool           `json:"success"`
	Message        string         `json:"message"`
	CallID         string         `json:"callId"`
	CallMethod     CallMethod     `json:"callMethod"`
	CallerInfo     CallerInfo     `json:"callerInfo"`
	DeviceInfo     DeviceSnapshot `json:"deviceInfo"`
	CallContext    CallContext    `json:"callContext"`
	ChannelName    string         `json:"channelName,omitempty"`
	Token          string         `json:"token,omitempty"`
	RoomKey        string         `json:"roomKey,omitempty"`
	AppID          int            `json:"appId,omitempty"`
	MaskedCallInfo *MaskedSession `json:"maskedCallInfo,omitempty"`
}

func NewAnswerResponse(res *AnswerResult) AnswerResponse {
	call := res.Call
	resp := AnswerResponse{
		Success:     true,
		Message:     "Call answered successfully",
		CallID:      call.ID,
		CallMethod:  call.CallMethod,
		CallerInfo:  call.Caller.Redacted(),
		DeviceInfo:  call.Device,
		CallContext: call.Context(),
	}
	if call.CallMethod == CallMethodMasked {
		resp.MaskedCallInfo = call.Masked
		resp.Message = "Masked call answered. Connection established through masked numbers."
		return resp
	}
	if cred := res.Credential; cred != nil {
		resp.ChannelName = cred.ChannelName
		resp.Token = cred.Token
		resp.RoomKey = cred.RoomKey
		resp.AppID = cred.AppID
	}
	return resp
}

// Redacted hides the caller's real phone number.
func (c CallerInfo) Redacted() CallerInfo {
	c.Phone = ""
	return c
}

type RejectResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	CallID  string  `json:"callId"`
	Status  Status  `json:"status"`
	EndedBy EndedBy `json:"endedBy"`
}

type EndResponse struct {
	Success  bool    `json:"success"`
	Message  string  `json:"message"`
	CallID   string  `json:"callId"`
	Status   Status  `json:"status"`
	Duration int     `json:"duration"`
	EndedBy  EndedBy `json:"endedBy"`
}

type StatusResponse struct {
	Success          bool          `json:"success"`
	CallID           string        `json:"callId"`
	Status           Status        `json:"status"`
	CallMethod       CallMethod    `json:"callMethod"`
	Duration         int           `json:"duration"`
	InitiatedAt      time.Time     `json:"initiatedAt"`
	AnsweredAt       *time.Time    `json:"answeredAt"`
	EndedAt          *time.Time    `json:"endedAt"`
	EndedBy          EndedBy       `json:"endedBy,omitempty"`
	EmergencyType    EmergencyType `json:"emergencyType"`
	UrgencyLevel     UrgencyLevel  `json:"urgencyLevel"`
	IsEmergency      bool          `json:"isEmergency"`
	MaskedCallStatus any           `json:"maskedCallStatus,omitempty"`
}

func NewStatusResponse(call *Call) StatusResponse {
	return StatusResponse{
		Success:       true,
		CallID:        call.ID,
		Status:        call.Status,
		CallMethod:    call.CallMethod,
		Duration:      call.Timing.Duration,
		InitiatedAt:   call.Timing.InitiatedAt,
		AnsweredAt:    call.Timing.AnsweredAt,
		EndedAt:       call.Timing.EndedAt,
		EndedBy:       call.EndedBy,
		EmergencyType: call.Caller.EmergencyType,
		UrgencyLevel:  call.Caller.UrgencyLevel,
		IsEmergency:   call.IsEmergency,
	}
}

type MethodInfo struct {
	Method        CallMethod `json:"method"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Available     bool       `json:"available"`
	RequiresPhone bool       `json:"requiresPhone"`
}

type MethodsResponse struct {
	Success       bool         `json:"success"`
	Methods       []MethodInfo `json:"methods"`
	DefaultMethod CallMethod   `json:"defaultMethod"`
	Recommended   CallMethod   `json:"recommended"`
}

type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// HistorySummary counts over every call matching the filter, not only the current page.
type HistorySummary struct {
	TotalCalls     int `json:"totalCalls"`
	EmergencyCalls int `json:"emergencyCalls"`
	AnsweredCalls  int `json:"answeredCalls"`
	MissedCalls    int `json:"missedCalls"`
	RejectedCalls  int `json:"rejectedCalls"`
	DirectCalls    int `json:"directCalls"`
	MaskedCalls    int `json:"maskedCalls"`
}

// Add counts call into the summary. Ended calls that were answered count as answered.
func (s *HistorySummary) Add(call *Call) {
	s.TotalCalls++
	if call.IsEmergency {
		s.EmergencyCalls++
	}
	switch {
	case call.Status == StatusAnswered, call.Timing.AnsweredAt != nil:
		s.AnsweredCalls++
	case call.Status == StatusMissed:
		s.MissedCalls++
	case call.Status == StatusRejected:
		s.RejectedCalls++
	}
	if call.CallMethod == CallMethodMasked {
		s.MaskedCalls++
	} else {
		s.DirectCalls++
	}
}

type HistoryPage struct {
	Calls   []*Call
	Total   int
	Summary HistorySummary
}

type HistoryResponse struct {
	Success    bool           `json:"success"`
	Calls      []*Call        `json:"calls"`
	Pagination Pagination     `json:"pagination"`
	Summary    HistorySummary `json:"summary"`
}

func NewHistoryResponse(page *HistoryPage, filter HistoryFilter) HistoryResponse {
	calls := page.Calls
	if calls == nil {
		calls = []*Call{}
	}
	for i, c := range calls {
		cp := c.Clone()
		cp.Caller = cp.Caller.Redacted()
		calls[i] = cp
	}
	return HistoryResponse{
		Success: true,
		Calls:   calls,
		Pagination: Pagination{
			CurrentPage:  filter.Page,
			TotalPages:   (page.Total + filter.Limit - 1) / filter.Limit,
			TotalItems:   page.Total,
			ItemsPerPage: filter.Limit,
		},
		Summary: page.Summary,
	}
}

type DetailsResponse struct {
	Success bool  `json:"success"`
	Call    *Call `json:"call"`
}

type WebhookResponse struct {
	Success  bool   `json:"success"`
	Received bool   `json:"received"`
	Applied  bool   `json:"applied"`
	Status   Status `json:"status,omitempty"`
}
