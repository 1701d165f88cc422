package models

import (
	"fmt"

	dErrors "qrcall/pkg/domain-errors"
)

// API error codes raised by the call lifecycle.
const (
	ReasonMaskedUnavailable   = "MASKED_CALLING_UNAVAILABLE"
	ReasonCallerPhoneRequired = "CALLER_PHONE_REQUIRED"
	ReasonCallNotFound        = "CALL_NOT_FOUND"
	ReasonInvalidCallStatus   = "INVALID_CALL_STATUS"
	ReasonStatusConflict      = "CALL_STATUS_CONFLICT"
	ReasonNotParticipant      = "NOT_CALL_PARTICIPANT"
	ReasonRTCCredential       = "RTC_CREDENTIAL_ERROR"
	ReasonInvalidWebhook      = "INVALID_WEBHOOK"
	ReasonValidation          = "VALIDATION_ERROR"
	ReasonNotMaskedCall       = "NOT_MASKED_CALL"
	ReasonMaskedStatus        = "MASKED_STATUS_ERROR"
)

func ErrMaskedUnavailable() *dErrors.Error {
	return dErrors.New(dErrors.CodeBadRequest, "masked calling is not available").
		WithReason(ReasonMaskedUnavailable).
		WithDetail("availableMethods", []string{string(CallMethodDirect)})
}

func ErrCallerPhoneRequired() *dErrors.Error {
	return dErrors.New(dErrors.CodeBadRequest, "caller phone number is required for masked calling").
		WithReason(ReasonCallerPhoneRequired)
}

func ErrCallNotFound() *dErrors.Error {
	return dErrors.New(dErrors.CodeNotFound, "call not found").WithReason(ReasonCallNotFound)
}

func ErrInvalidCallStatus(current, next Status) *dErrors.Error {
	return dErrors.New(dErrors.CodeBadRequest,
		fmt.Sprintf("call cannot move from %s to %s", current, next)).
		WithReason(ReasonInvalidCallStatus).
		WithDetail("currentStatus", string(current))
}

// ErrStatusConflict is returned to the loser of a concurrent transition.
func ErrStatusConflict() *dErrors.Error {
	return dErrors.New(dErrors.CodeConflict, "call status changed concurrently").
		WithReason(ReasonStatusConflict)
}

func ErrNotParticipant() *dErrors.Error {
	return dErrors.New(dErrors.CodeForbidden, "you are not a participant of this call").
		WithReason(ReasonNotParticipant)
}

func ErrRTCCredential(err error) *dErrors.Error {
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue call credentials").
		WithReason(ReasonRTCCredential)
}

func ErrInvalidWebhook(msg string) *dErrors.Error {
	return dErrors.New(dErrors.CodeBadRequest, msg).WithReason(ReasonInvalidWebhook)
}

func ErrValidation(msg string) *dErrors.Error {
	return dErrors.New(dErrors.CodeValidation, msg).WithReason(ReasonValidation)
}

func ErrNotMaskedCall() *dErrors.Error {
	return dErrors.New(dErrors.CodeBadRequest, "call is not a masked call").WithReason(ReasonNotMaskedCall)
}

func ErrMaskedStatus(err error) *dErrors.Error {
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to get masked call status").
		WithReason(ReasonMaskedStatus)
}
