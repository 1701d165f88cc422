package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"qrcall/internal/calls/models"
	"qrcall/internal/calls/webhook"
	"qrcall/internal/events"
	dErrors "qrcall/pkg/domain-errors"
	"qrcall/pkg/platform/sentinel"
)

const sourceWebhook = "webhook"

const (
	outcomeApplied     = "applied"
	outcomeIgnored     = "ignored"
	outcomeDuplicate   = "duplicate"
	outcomeIllegal     = "illegal"
	outcomeUnknownCall = "unknown_call"
)

// ReconcileWebhook applies a relay event to its call. Replays and events the
// call has already moved past are accepted without writing, as are events
// with no legal edge from the current status, so the relay stops retrying.
// Only storage failures are returned as errors.
func (s *Service) ReconcileWebhook(ctx context.Context, ev webhook.Event) (*models.WebhookResponse, error) {
	ctx, span := s.tracer.Start(ctx, "calls.ReconcileWebhook")
	defer span.End()
	span.SetAttributes(
		attribute.String("call_id", ev.CallID),
		attribute.String("event_type", ev.RawType),
	)

	resp := &models.WebhookResponse{Success: true, Received: true}
	target, ok := ev.Target()
	if !ok {
		s.observeWebhook(ev, outcomeIgnored)
		return resp, nil
	}

	for attempt := 1; ; attempt++ {
		call, err := s.store.FindByID(ctx, ev.CallID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				s.logger.WarnContext(ctx, "webhook for unknown call",
					"call_id", ev.CallID, "event_type", ev.RawType)
				s.observeWebhook(ev, outcomeUnknownCall)
				return resp, nil
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load call")
		}
		resp.Status = call.Status

		if call.Status.Progress() >= target.Progress() {
			s.logger.DebugContext(ctx, "webhook already reflected",
				"call_id", call.ID, "status", call.Status, "event_type", ev.RawType)
			s.observeWebhook(ev, outcomeDuplicate)
			return resp, nil
		}
		if !call.Status.CanTransitionTo(target) {
			s.logger.WarnContext(ctx, "webhook does not match a legal transition",
				"call_id", call.ID, "status", call.Status, "event_type", ev.RawType)
			s.observeWebhook(ev, outcomeIllegal)
			return resp, nil
		}

		expected := call.Status
		next := call.Clone()
		at := s.eventTime(ev, next)
		if err := next.TransitionTo(target, at, models.EndedBySystem); err != nil {
			s.observeWebhook(ev, outcomeIllegal)
			return resp, nil
		}
		if next.Masked != nil {
			next.Masked.Status = ev.Status
			if next.Masked.Status == "" {
				next.Masked.Status = ev.RawType
			}
		}

		err = s.commit(ctx, next, expected, sourceWebhook)
		if dErrors.HasCode(err, dErrors.CodeConflict) && attempt < maxCommitAttempts {
			continue
		}
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				// Someone else keeps winning; the event is stale by now.
				s.observeWebhook(ev, outcomeDuplicate)
				return resp, nil
			}
			return nil, err
		}

		s.logger.InfoContext(ctx, "webhook reconciled",
			"call_id", next.ID, "from", expected, "to", next.Status, "event_type", ev.RawType)
		s.observeWebhook(ev, outcomeApplied)
		resp.Applied = true
		resp.Status = next.Status

		s.realtime.ToRoom(ctx, next.ReceiverID, maskedUpdateEvent(next, ev.RawType, at))
		s.emit(ctx, events.TypeFor(next.Status), next, sourceWebhook, map[string]string{"eventType": ev.RawType})
		return resp, nil
	}
}

// eventTime uses the relay's timestamp when it is plausible for call.
func (s *Service) eventTime(ev webhook.Event, call *models.Call) time.Time {
	now := s.now()
	ts := ev.Timestamp
	if ts.IsZero() || ts.After(now) || ts.Before(call.Timing.InitiatedAt) {
		return now
	}
	return ts
}

func (s *Service) observeWebhook(ev webhook.Event, outcome string) {
	if s.metrics != nil {
		s.metrics.IncWebhook(string(ev.Kind), outcome)
	}
}
