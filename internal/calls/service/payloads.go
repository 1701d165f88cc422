package service

import (
	"time"

	"qrcall/internal/calls/models"
	"qrcall/internal/realtime"
)

// incomingCall is pushed to the receiver's room. It carries the receiver's
// own credential so the app can join without another round trip.
type incomingCall struct {
	CallID         string                `json:"callId"`
	CallerUID      string                `json:"callerUID"`
	ChannelName    string                `json:"channelName"`
	CallType       models.CallType       `json:"callType"`
	CallMethod     models.CallMethod     `json:"callMethod"`
	CallerInfo     models.CallerInfo     `json:"callerInfo"`
	DeviceInfo     models.DeviceSnapshot `json:"deviceInfo"`
	CallContext    models.CallContext    `json:"callContext"`
	Token          string                `json:"token,omitempty"`
	RoomKey        string                `json:"roomKey,omitempty"`
	AppID          int                   `json:"appId,omitempty"`
	MaskedCallInfo *models.MaskedSession `json:"maskedCallInfo,omitempty"`
	InitiatedAt    time.Time             `json:"initiatedAt"`
}

func incomingCallEvent(call *models.Call, receiver *models.RTCCredential) realtime.Event {
	p := incomingCall{
		CallID:         call.ID,
		CallerUID:      call.CallerUID(),
		ChannelName:    call.ChannelName,
		CallType:       call.CallType,
		CallMethod:     call.CallMethod,
		CallerInfo:     call.Caller.Redacted(),
		DeviceInfo:     call.Device,
		CallContext:    call.Context(),
		MaskedCallInfo: call.Masked,
		InitiatedAt:    call.Timing.InitiatedAt,
	}
	if receiver != nil {
		p.Token = receiver.Token
		p.RoomKey = receiver.RoomKey
		p.AppID = receiver.AppID
	}
	return realtime.NewEvent(realtime.EventIncomingCall, p)
}

type emergencyAlert struct {
	CallID        string               `json:"callId"`
	QRID          string               `json:"qrId"`
	EmergencyType models.EmergencyType `json:"emergencyType"`
	UrgencyLevel  models.UrgencyLevel  `json:"urgencyLevel"`
	Location      string               `json:"location"`
	VehiclePlate  string               `json:"vehiclePlate,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}

func emergencyAlertEvent(call *models.Call) realtime.Event {
	return realtime.NewEvent(realtime.EventEmergencyAlert, emergencyAlert{
		CallID:        call.ID,
		QRID:          call.QRID,
		EmergencyType: call.Caller.EmergencyType,
		UrgencyLevel:  call.Caller.UrgencyLevel,
		Location:      call.Caller.Location,
		VehiclePlate:  call.Device.VehiclePlate,
		Timestamp:     call.Timing.InitiatedAt,
	})
}

// statusChange is the payload of call-accepted, call-rejected and call-ended.
type statusChange struct {
	CallID      string         `json:"callId"`
	Status      models.Status  `json:"status"`
	ChannelName string         `json:"channelName,omitempty"`
	EndedBy     models.EndedBy `json:"endedBy,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Duration    int            `json:"duration"`
	Timestamp   time.Time      `json:"timestamp"`
}

func statusChangeEvent(name string, call *models.Call, reason string, at time.Time) realtime.Event {
	return realtime.NewEvent(name, statusChange{
		CallID:      call.ID,
		Status:      call.Status,
		ChannelName: call.ChannelName,
		EndedBy:     call.EndedBy,
		Reason:      reason,
		Duration:    call.Timing.Duration,
		Timestamp:   at,
	})
}

type maskedUpdate struct {
	CallID    string        `json:"callId"`
	Status    models.Status `json:"status"`
	EventType string        `json:"eventType"`
	Timestamp time.Time     `json:"timestamp"`
}

func maskedUpdateEvent(call *models.Call, eventType string, at time.Time) realtime.Event {
	return realtime.NewEvent(realtime.EventMaskedCallUpdate, maskedUpdate{
		CallID:    call.ID,
		Status:    call.Status,
		EventType: eventType,
		Timestamp: at,
	})
}
