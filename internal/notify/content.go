package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"qrcall/internal/calls/models"
)

const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// Message is a push payload. Data values are strings because push gateways
// reject anything else.
type Message struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Priority string            `json:"priority"`
	Data     map[string]string `json:"data"`
}

// IncomingCall builds the receiver's push for a new call. receiverToken is the
// receiver's direct credential and is empty for masked calls.
func IncomingCall(call *models.Call, receiverToken string) (Message, error) {
	caller := call.Caller.Redacted()
	callerJSON, err := json.Marshal(caller)
	if err != nil {
		return Message{}, fmt.Errorf("marshal caller info: %w", err)
	}
	deviceJSON, err := json.Marshal(call.Device)
	if err != nil {
		return Message{}, fmt.Errorf("marshal device info: %w", err)
	}

	priority := PriorityNormal
	if caller.UrgencyLevel.IsHigh() {
		priority = PriorityHigh
	}

	msg := Message{Priority: priority}
	if call.IsEmergency {
		msg.Title = "⚠️ Emergency Call"
		if caller.UrgencyLevel == models.UrgencyCritical {
			msg.Title = "🚨 CRITICAL EMERGENCY"
		}
		msg.Body = fmt.Sprintf("URGENT: %s involving your vehicle.", strings.ToUpper(string(caller.EmergencyType)))
	} else {
		name := caller.Name
		if name == "" || name == models.DefaultCallerName {
			name = "Someone"
		}
		msg.Title = "📞 Vehicle Contact"
		msg.Body = name + " wants to contact you about your vehicle."
	}

	msg.Data = map[string]string{
		"type":          "incoming-call",
		"callId":        call.ID,
		"callerUID":     call.CallerUID(),
		"channelName":   call.ChannelName,
		"callType":      string(call.CallType),
		"callMethod":    string(call.CallMethod),
		"token":         receiverToken,
		"callerInfo":    string(callerJSON),
		"deviceInfo":    string(deviceJSON),
		"emergencyType": string(caller.EmergencyType),
		"urgencyLevel":  string(caller.UrgencyLevel),
		"priority":      priority,
		"qrId":          call.QRID,
	}
	return msg, nil
}
