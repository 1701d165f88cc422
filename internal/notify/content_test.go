package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrcall/internal/calls/models"
)

func call(emergency models.EmergencyType, urgency models.UrgencyLevel) *models.Call {
	return &models.Call{
		ID:          "c1",
		ReceiverID:  "U1",
		QRID:        "Q1",
		ChannelName: "emergency_c1",
		CallType:    models.CallTypeAudio,
		CallMethod:  models.CallMethodDirect,
		IsEmergency: emergency.IsEmergency(),
		Caller: models.CallerInfo{
			Name: "Dana", Phone: "+15550001111", Location: "Lot B",
			EmergencyType: emergency, UrgencyLevel: urgency,
		},
		Device: models.DeviceSnapshot{DeviceID: "D1"},
	}
}

func TestIncomingCall_Normal(t *testing.T) {
	msg, err := IncomingCall(call(models.EmergencyGeneral, models.UrgencyMedium), "receiver-sig")
	require.NoError(t, err)

	assert.Equal(t, "📞 Vehicle Contact", msg.Title)
	assert.Equal(t, "Dana wants to contact you about your vehicle.", msg.Body)
	assert.Equal(t, PriorityNormal, msg.Priority)
	assert.Equal(t, "receiver-sig", msg.Data["token"])
	assert.Equal(t, "caller_c1", msg.Data["callerUID"])
	assert.Equal(t, "Q1", msg.Data["qrId"])

	var caller models.CallerInfo
	require.NoError(t, json.Unmarshal([]byte(msg.Data["callerInfo"]), &caller))
	assert.Empty(t, caller.Phone, "caller phone never leaves the server")
	assert.Equal(t, "Lot B", caller.Location)
}

func TestIncomingCall_AnonymousName(t *testing.T) {
	c := call(models.EmergencyGeneral, models.UrgencyLow)
	c.Caller.Name = models.DefaultCallerName
	msg, err := IncomingCall(c, "")
	require.NoError(t, err)
	assert.Equal(t, "Someone wants to contact you about your vehicle.", msg.Body)
}

func TestIncomingCall_Emergency(t *testing.T) {
	msg, err := IncomingCall(call(models.EmergencyMedical, models.UrgencyCritical), "")
	require.NoError(t, err)
	assert.Equal(t, "🚨 CRITICAL EMERGENCY", msg.Title)
	assert.Equal(t, "URGENT: MEDICAL involving your vehicle.", msg.Body)
	assert.Equal(t, PriorityHigh, msg.Priority)
	assert.Equal(t, PriorityHigh, msg.Data["priority"])

	msg, err = IncomingCall(call(models.EmergencyTheft, models.UrgencyHigh), "")
	require.NoError(t, err)
	assert.Equal(t, "⚠️ Emergency Call", msg.Title)
	assert.Equal(t, PriorityHigh, msg.Priority)

	msg, err = IncomingCall(call(models.EmergencyBreakdown, models.UrgencyLow), "")
	require.NoError(t, err)
	assert.Equal(t, PriorityNormal, msg.Priority)
}
