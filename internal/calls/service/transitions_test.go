package service_test

import (
	"context"
	"sync"
	"time"

	"go.uber.org/mock/gomock"

	"qrcall/internal/calls/models"
	"qrcall/internal/calls/webhook"
	"qrcall/internal/events"
	"qrcall/internal/masked"
	"qrcall/internal/realtime"
	dErrors "qrcall/pkg/domain-errors"
)

func (s *CallServiceSuite) TestRejectThenAnswer() {
	s.allowDirect()
	call := s.initiate(models.CallMethodDirect)

	rejected, err := s.svc.Reject(s.ctx, call.ID, ownerID, models.RejectRequest{Reason: "busy"})
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, rejected.Status)
	s.Equal(models.EndedByReceiver, rejected.EndedBy)
	s.Contains(s.stored(call.ID).Caller.AdditionalInfo, "Rejected: busy")
	s.Equal([]string{realtime.EventCallRejected}, s.pub.names(call.CallerUID()))

	_, err = s.svc.Answer(s.ctx, call.ID, ownerID)
	s.requireReason(err, dErrors.CodeBadRequest, models.ReasonInvalidCallStatus)
	s.Equal(models.StatusRejected, s.stored(call.ID).Status)
}

func (s *CallServiceSuite) TestAnswer() {
	s.allowDirect()
	call := s.initiate(models.CallMethodDirect)

	s.Run("someone else's call is not found", func() {
		_, err := s.svc.Answer(s.ctx, call.ID, "U2")
		s.requireReason(err, dErrors.CodeNotFound, models.ReasonCallNotFound)
	})

	s.Run("receiver answers with a fresh credential", func() {
		s.clock = s.clock.Add(5 * time.Second)
		res, err := s.svc.Answer(s.ctx, call.ID, ownerID)
		s.Require().NoError(err)
		s.Equal(models.StatusAnswered, res.Call.Status)
		s.Require().NotNil(res.Credential)
		s.Equal("owner_U1", res.Credential.UID)
		s.Require().NotNil(s.stored(call.ID).Timing.AnsweredAt)
		s.Equal([]string{realtime.EventCallAccepted}, s.pub.names(call.CallerUID()))
	})

	s.Run("answering twice is invalid", func() {
		_, err := s.svc.Answer(s.ctx, call.ID, ownerID)
		s.requireReason(err, dErrors.CodeBadRequest, models.ReasonInvalidCallStatus)
	})
}

func (s *CallServiceSuite) TestEnd() {
	s.allowDirect()
	call := s.initiate(models.CallMethodDirect)
	_, err := s.svc.Answer(s.ctx, call.ID, ownerID)
	s.Require().NoError(err)

	s.Run("outsider is not a participant", func() {
		_, err := s.svc.End(s.ctx, call.ID, models.CallerActor("other-call"), models.EndRequest{})
		s.requireReason(err, dErrors.CodeForbidden, models.ReasonNotParticipant)
	})

	s.Run("caller ends with feedback", func() {
		s.clock = s.clock.Add(90 * time.Second)
		ended, err := s.svc.End(s.ctx, call.ID, models.CallerActor(call.ID), models.EndRequest{
			CallQuality: &models.Quality{Rating: 4, Feedback: "clear"},
		})
		s.Require().NoError(err)
		s.Equal(models.StatusEnded, ended.Status)
		s.Equal(models.EndedByCaller, ended.EndedBy)
		s.Equal(90, ended.Timing.Duration)

		stored := s.stored(call.ID)
		s.Require().NotNil(stored.Quality)
		s.Equal(4, stored.Quality.Rating)
		s.Contains(s.pub.names(ownerID), realtime.EventCallEnded)
		s.Contains(s.pub.names(call.CallerUID()), realtime.EventCallEnded)
	})

	s.Run("ending twice is invalid", func() {
		_, err := s.svc.End(s.ctx, call.ID, models.OwnerActor(ownerID), models.EndRequest{})
		s.requireReason(err, dErrors.CodeBadRequest, models.ReasonInvalidCallStatus)
	})
}

func (s *CallServiceSuite) TestEndMaskedCallClosesRelaySession() {
	s.allowMaskedStart()
	call := s.initiate(models.CallMethodMasked)

	done := make(chan struct{})
	s.relay.EXPECT().End(gomock.Any(), "mc_"+call.ID).DoAndReturn(
		func(context.Context, string) (*masked.EndResult, error) {
			close(done)
			return &masked.EndResult{Status: "ended"}, nil
		})

	ended, err := s.svc.End(s.ctx, call.ID, models.OwnerActor(ownerID), models.EndRequest{})
	s.Require().NoError(err)
	s.Equal(models.EndedByReceiver, ended.EndedBy)
	s.Zero(ended.Timing.Duration)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.Fail("relay session was not ended")
	}
}

func (s *CallServiceSuite) TestReconcileWebhook() {
	s.allowMaskedStart()
	call := s.initiate(models.CallMethodMasked)

	s.Run("answered is applied once", func() {
		s.clock = s.clock.Add(10 * time.Second)
		ev := webhook.Event{Kind: webhook.KindAnswered, RawType: "call_answered", CallID: call.ID, Status: "connected"}

		resp, err := s.svc.ReconcileWebhook(s.ctx, ev)
		s.Require().NoError(err)
		s.True(resp.Applied)
		s.Equal(models.StatusAnswered, resp.Status)

		resp, err = s.svc.ReconcileWebhook(s.ctx, ev)
		s.Require().NoError(err)
		s.True(resp.Received)
		s.False(resp.Applied)
		s.Equal(models.StatusAnswered, resp.Status)
		s.Equal("connected", s.stored(call.ID).Masked.Status)
	})

	s.Run("failed after answered is ignored", func() {
		resp, err := s.svc.ReconcileWebhook(s.ctx, webhook.Event{Kind: webhook.KindFailed, RawType: "call_failed", CallID: call.ID})
		s.Require().NoError(err)
		s.False(resp.Applied)
		s.Equal(models.StatusAnswered, s.stored(call.ID).Status)
	})

	s.Run("ended computes duration server side", func() {
		s.clock = s.clock.Add(45 * time.Second)
		resp, err := s.svc.ReconcileWebhook(s.ctx, webhook.Event{
			Kind: webhook.KindEnded, RawType: "call_ended", CallID: call.ID, Duration: 999,
		})
		s.Require().NoError(err)
		s.True(resp.Applied)

		stored := s.stored(call.ID)
		s.Equal(models.StatusEnded, stored.Status)
		s.Equal(models.EndedBySystem, stored.EndedBy)
		s.Equal(45, stored.Timing.Duration)
	})

	s.Run("ended replay is a no-op", func() {
		resp, err := s.svc.ReconcileWebhook(s.ctx, webhook.Event{Kind: webhook.KindEnded, RawType: "call_ended", CallID: call.ID})
		s.Require().NoError(err)
		s.False(resp.Applied)
	})

	s.Run("unknown call is received", func() {
		resp, err := s.svc.ReconcileWebhook(s.ctx, webhook.Event{Kind: webhook.KindEnded, RawType: "call_ended", CallID: "nope"})
		s.Require().NoError(err)
		s.True(resp.Received)
		s.False(resp.Applied)
	})

	s.Run("ringing is ignored", func() {
		resp, err := s.svc.ReconcileWebhook(s.ctx, webhook.Event{Kind: webhook.KindIgnored, RawType: "call_ringing", CallID: call.ID})
		s.Require().NoError(err)
		s.False(resp.Applied)
	})

	s.Equal([]string{realtime.EventIncomingCall, realtime.EventMaskedCallUpdate, realtime.EventMaskedCallUpdate},
		s.pub.names(ownerID))
	s.Equal([]events.Type{events.TypeInitiated, events.TypeAnswered, events.TypeEnded}, s.emitted.types())
}

func (s *CallServiceSuite) TestAnswerRacesWebhookEnd() {
	s.allowMaskedStart()

	for i := 0; i < 25; i++ {
		call := s.initiate(models.CallMethodMasked)

		var (
			wg        sync.WaitGroup
			answerErr error
			hookErr   error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, answerErr = s.svc.Answer(s.ctx, call.ID, ownerID)
		}()
		go func() {
			defer wg.Done()
			_, hookErr = s.svc.ReconcileWebhook(s.ctx, webhook.Event{
				Kind: webhook.KindEnded, RawType: "call_ended", CallID: call.ID,
			})
		}()
		wg.Wait()

		s.Require().NoError(hookErr)
		stored := s.stored(call.ID)
		s.Equal(models.StatusEnded, stored.Status)
		if answerErr == nil {
			s.Require().NotNil(stored.Timing.AnsweredAt)
			s.False(stored.Timing.EndedAt.Before(*stored.Timing.AnsweredAt))
			continue
		}
		reason := dErrors.ReasonOf(answerErr)
		s.Contains([]string{models.ReasonStatusConflict, models.ReasonInvalidCallStatus}, reason)
		s.Nil(stored.Timing.AnsweredAt)
	}
}

func (s *CallServiceSuite) TestSweep() {
	s.allowDirect()
	ringing := s.initiate(models.CallMethodDirect)
	answered := s.initiate(models.CallMethodDirect)
	_, err := s.svc.Answer(s.ctx, answered.ID, ownerID)
	s.Require().NoError(err)

	s.Run("nothing is stale yet", func() {
		n, err := s.svc.Sweep(s.ctx)
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("ring timeout misses the call", func() {
		s.clock = s.clock.Add(31 * time.Second)
		n, err := s.svc.Sweep(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, n)

		stored := s.stored(ringing.ID)
		s.Equal(models.StatusMissed, stored.Status)
		s.Equal(models.EndedByTimeout, stored.EndedBy)
		s.Contains(s.pub.names(ringing.CallerUID()), realtime.EventCallEnded)
	})

	s.Run("max duration ends the call", func() {
		s.clock = s.clock.Add(time.Hour)
		n, err := s.svc.Sweep(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, n)

		stored := s.stored(answered.ID)
		s.Equal(models.StatusEnded, stored.Status)
		s.Equal(models.EndedBySystem, stored.EndedBy)
		s.Equal(3631, stored.Timing.Duration)
	})

	s.Run("terminal calls are left alone", func() {
		n, err := s.svc.Sweep(s.ctx)
		s.Require().NoError(err)
		s.Zero(n)
	})
}
