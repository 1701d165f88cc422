package models

import (
	"fmt"
	"time"
)

// checkTransition rejects an edge not in the state machine without touching the record.
func (c *Call) checkTransition(next Status) error {
	if !c.Status.CanTransitionTo(next) {
		return ErrInvalidCallStatus(c.Status, next)
	}
	return nil
}

// Answer moves an initiated call to answered.
func (c *Call) Answer(now time.Time) error {
	if err := c.checkTransition(StatusAnswered); err != nil {
		return err
	}
	c.Status = StatusAnswered
	c.Timing.AnsweredAt = &now
	return nil
}

// Reject records the receiver declining an initiated call.
func (c *Call) Reject(now time.Time, reason string) error {
	if err := c.checkTransition(StatusRejected); err != nil {
		return err
	}
	c.Status = StatusRejected
	c.EndedBy = EndedByReceiver
	c.finish(now)
	if reason != "" {
		c.Caller.AdditionalInfo = "Rejected: " + reason
	}
	return nil
}

// End finishes an initiated or answered call.
func (c *Call) End(now time.Time, by EndedBy) error {
	if err := c.checkTransition(StatusEnded); err != nil {
		return err
	}
	c.Status = StatusEnded
	c.EndedBy = by
	c.finish(now)
	return nil
}

// Miss marks an unanswered call whose ring timeout elapsed.
func (c *Call) Miss(now time.Time) error {
	if err := c.checkTransition(StatusMissed); err != nil {
		return err
	}
	c.Status = StatusMissed
	c.EndedBy = EndedByTimeout
	c.finish(now)
	return nil
}

// Fail marks a call the relay could not connect.
func (c *Call) Fail(now time.Time) error {
	if err := c.checkTransition(StatusFailed); err != nil {
		return err
	}
	c.Status = StatusFailed
	c.EndedBy = EndedBySystem
	c.finish(now)
	return nil
}

// TransitionTo applies next with the side fields each edge requires.
func (c *Call) TransitionTo(next Status, now time.Time, by EndedBy) error {
	switch next {
	case StatusAnswered:
		return c.Answer(now)
	case StatusEnded:
		return c.End(now, by)
	case StatusFailed:
		return c.Fail(now)
	case StatusMissed:
		return c.Miss(now)
	case StatusRejected:
		return c.Reject(now, "")
	default:
		return ErrInvalidCallStatus(c.Status, next)
	}
}

// finish stamps EndedAt, clamped so it never precedes AnsweredAt, and derives Duration.
func (c *Call) finish(now time.Time) {
	if c.Timing.AnsweredAt != nil && now.Before(*c.Timing.AnsweredAt) {
		now = *c.Timing.AnsweredAt
	}
	c.Timing.EndedAt = &now
	c.Timing.Duration = 0
	if c.Timing.AnsweredAt != nil {
		c.Timing.Duration = int(now.Sub(*c.Timing.AnsweredAt) / time.Second)
	}
}

// FallBackToDirect rewrites a failed masked attempt as a direct call.
func (c *Call) FallBackToDirect(reason string) {
	c.CallMethod = CallMethodDirect
	c.Masked = nil
	c.FallbackReason = reason
	c.Caller.AdditionalInfo += fmt.Sprintf(" (Masked call failed: %s)", reason)
}

// AttachMaskedSession records the relay correlation for a masked call.
func (c *Call) AttachMaskedSession(session MaskedSession) {
	c.CallMethod = CallMethodMasked
	c.Masked = &session
}

// HasMaskedSession reports whether the relay holds a live session for this call.
func (c *Call) HasMaskedSession() bool {
	return c.CallMethod == CallMethodMasked && c.Masked != nil && c.Masked.SessionID != ""
}
