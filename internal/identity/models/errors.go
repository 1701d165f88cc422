package models

import dErrors "qrcall/pkg/domain-errors"

// API error codes raised while resolving a QR.
const (
	ReasonQRNotFound             = "QR_NOT_FOUND"
	ReasonQRNotLinked            = "QR_NOT_LINKED"
	ReasonDeviceNotFound         = "DEVICE_NOT_FOUND"
	ReasonAnonymousCallsDisabled = "ANONYMOUS_CALLS_DISABLED"
)

func ErrQRNotFound() *dErrors.Error {
	return dErrors.New(dErrors.CodeNotFound, "QR code not found").WithReason(ReasonQRNotFound)
}

// ErrQRNotLinked surfaces the current status so the scanning page can explain it.
func ErrQRNotLinked(status QRStatus) *dErrors.Error {
	return dErrors.New(dErrors.CodeBadRequest, notLinkedMessage(status)).
		WithReason(ReasonQRNotLinked).
		WithDetail("status", string(status))
}

func ErrDeviceNotFound() *dErrors.Error {
	return dErrors.New(dErrors.CodeNotFound, "device not found or inactive").WithReason(ReasonDeviceNotFound)
}

func ErrAnonymousCallsDisabled() *dErrors.Error {
	return dErrors.New(dErrors.CodeForbidden, "the vehicle owner has disabled anonymous calls").
		WithReason(ReasonAnonymousCallsDisabled)
}

func notLinkedMessage(status QRStatus) string {
	switch status {
	case QRStatusSuspended:
		return "this QR code has been suspended"
	case QRStatusDamaged:
		return "this QR code has been reported as damaged"
	default:
		return "this QR code is not linked to any vehicle yet"
	}
}
