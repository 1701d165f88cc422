package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"qrcall/internal/calls/models"
	"qrcall/internal/events"
	"qrcall/internal/realtime"
	"qrcall/internal/rtc"
)

const (
	sourceReceiver = "receiver"
	sourceCaller   = "caller"
)

// Answer moves an initiated call to answered on behalf of its receiver. Calls
// belonging to someone else are reported as not found.
func (s *Service) Answer(ctx context.Context, callID, userID string) (*models.AnswerResult, error) {
	ctx, span := s.tracer.Start(ctx, "calls.Answer")
	defer span.End()
	span.SetAttributes(attribute.String("call_id", callID))

	call, err := s.load(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call.ReceiverID != userID {
		return nil, models.ErrCallNotFound()
	}

	expected := call.Status
	next := call.Clone()
	if err := next.Answer(s.now()); err != nil {
		return nil, err
	}

	var cred *models.RTCCredential
	if next.CallMethod == models.CallMethodDirect {
		issued, err := s.rtc.Issue(ctx, next.ChannelName, next.ReceiverUID(), rtc.RolePublisher, s.cfg.CredentialTTL)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to issue receiver credential", "call_id", callID, "error", err)
			return nil, models.ErrRTCCredential(err)
		}
		cred = toCredential(issued)
	}

	if err := s.commit(ctx, next, expected, sourceReceiver); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "call answered", "call_id", callID, "receiver_id", userID)

	s.realtime.ToRoom(ctx, next.CallerUID(), statusChangeEvent(realtime.EventCallAccepted, next, "", *next.Timing.AnsweredAt))
	s.emit(ctx, events.TypeAnswered, next, sourceReceiver, nil)
	return &models.AnswerResult{Call: next, Credential: cred}, nil
}

// Reject declines an initiated call on behalf of its receiver.
func (s *Service) Reject(ctx context.Context, callID, userID string, req models.RejectRequest) (*models.Call, error) {
	ctx, span := s.tracer.Start(ctx, "calls.Reject")
	defer span.End()
	span.SetAttributes(attribute.String("call_id", callID))

	if err := req.Validate(); err != nil {
		return nil, err
	}
	call, err := s.load(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call.ReceiverID != userID {
		return nil, models.ErrCallNotFound()
	}

	expected := call.Status
	next := call.Clone()
	if err := next.Reject(s.now(), req.Reason); err != nil {
		return nil, err
	}
	if err := s.commit(ctx, next, expected, sourceReceiver); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "call rejected", "call_id", callID, "receiver_id", userID, "reason", req.Reason)

	s.realtime.ToRoom(ctx, next.CallerUID(), statusChangeEvent(realtime.EventCallRejected, next, req.Reason, *next.Timing.EndedAt))
	s.endMaskedSession(ctx, next)
	var attrs map[string]string
	if req.Reason != "" {
		attrs = map[string]string{"reason": req.Reason}
	}
	s.emit(ctx, events.TypeRejected, next, sourceReceiver, attrs)
	return next, nil
}

// End finishes an initiated or answered call for either participant. The
// optional quality feedback is stored with the final record.
func (s *Service) End(ctx context.Context, callID string, actor models.Actor, req models.EndRequest) (*models.Call, error) {
	ctx, span := s.tracer.Start(ctx, "calls.End")
	defer span.End()
	span.SetAttributes(attribute.String("call_id", callID))

	if err := req.Validate(); err != nil {
		return nil, err
	}
	call, err := s.load(ctx, callID)
	if err != nil {
		return nil, err
	}
	by, ok := actor.EndedByFor(call)
	if !ok {
		return nil, models.ErrNotParticipant()
	}

	expected := call.Status
	next := call.Clone()
	if err := next.End(s.now(), by); err != nil {
		return nil, err
	}
	if req.CallQuality != nil {
		q := *req.CallQuality
		next.Quality = &q
	}

	source := sourceCaller
	if by == models.EndedByReceiver {
		source = sourceReceiver
	}
	if err := s.commit(ctx, next, expected, source); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "call ended",
		"call_id", callID, "ended_by", by, "duration", next.Timing.Duration)

	s.notifyEnded(ctx, next, "")
	s.endMaskedSession(ctx, next)
	s.emit(ctx, events.TypeEnded, next, source, nil)
	return next, nil
}

// notifyEnded tells both participants that call reached a terminal status.
func (s *Service) notifyEnded(ctx context.Context, call *models.Call, reason string) {
	at := s.now()
	if call.Timing.EndedAt != nil {
		at = *call.Timing.EndedAt
	}
	ev := statusChangeEvent(realtime.EventCallEnded, call, reason, at)
	s.realtime.ToRoom(ctx, call.ReceiverID, ev)
	s.realtime.ToRoom(ctx, call.CallerUID(), ev)
}
