package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	dErrors "qrcall/pkg/domain-errors"
)

func TestQRCodeIsLinked(t *testing.T) {
	now := time.Now()
	full := &Link{OwnerID: "U1", DeviceID: "D1", LinkedAt: now}

	assert.True(t, (&QRCode{Status: QRStatusLinked, Link: full}).IsLinked())
	assert.False(t, (&QRCode{Status: QRStatusLinked}).IsLinked(), "linked without target")
	assert.False(t, (&QRCode{Status: QRStatusLinked, Link: &Link{OwnerID: "U1"}}).IsLinked(), "partial target")
	assert.False(t, (&QRCode{Status: QRStatusSuspended, Link: full}).IsLinked())
}

func TestDeviceReceiverPhone(t *testing.T) {
	d := &Device{OwnerPhone: "5550001111"}
	assert.Equal(t, "5550001111", d.ReceiverPhone())

	d.Settings.EmergencyContacts = []EmergencyContact{{Name: "no phone"}, {Name: "Sam", Phone: "5552223333"}}
	assert.Equal(t, "5552223333", d.ReceiverPhone())
}

func TestErrQRNotLinkedCarriesStatus(t *testing.T) {
	err := ErrQRNotLinked(QRStatusSuspended)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	assert.Equal(t, ReasonQRNotLinked, err.Reason)
	assert.Equal(t, "suspended", err.Details["status"])
}
