package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"qrcall/internal/calls/models"
	"qrcall/internal/events"
	idmodels "qrcall/internal/identity/models"
	"qrcall/internal/masked"
	"qrcall/internal/notify"
	"qrcall/internal/rtc"
	dErrors "qrcall/pkg/domain-errors"
	"qrcall/pkg/platform/middleware/metadata"
)

const (
	defaultReceiverName = "Vehicle Owner"
	sourceInitiate      = "initiate"
)

// Initiate admits a call for the QR in req, establishes its channel and
// notifies the receiver. Validation and resolution failures happen before
// any record is written.
func (s *Service) Initiate(ctx context.Context, req models.InitiateRequest) (*models.InitiateResult, error) {
	ctx, span := s.tracer.Start(ctx, "calls.Initiate")
	defer span.End()
	start := s.now()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("qr_id", req.QRID),
		attribute.String("call_method", string(req.CallMethod)),
	)

	res, err := s.resolver.Resolve(ctx, req.QRID)
	if err != nil {
		return nil, err
	}
	if req.CallMethod == models.CallMethodMasked {
		if s.masked == nil {
			return nil, models.ErrMaskedUnavailable()
		}
		if req.CallerInfo.Phone == "" {
			return nil, models.ErrCallerPhoneRequired()
		}
	}

	call := s.newCall(ctx, req, res)
	span.SetAttributes(attribute.String("call_id", call.ID))
	if err := s.store.Create(ctx, call); err != nil {
		span.SetStatus(codes.Error, "create call")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create call")
	}
	s.logger.InfoContext(ctx, "call initiated",
		"call_id", call.ID,
		"qr_id", call.QRID,
		"receiver_id", call.ReceiverID,
		"call_method", call.RequestedMethod,
		"emergency", call.IsEmergency,
	)

	if err := s.resolver.RecordCall(ctx, call.QRID, call.IsEmergency); err != nil {
		s.logger.WarnContext(ctx, "failed to record qr usage", "call_id", call.ID, "qr_id", call.QRID, "error", err)
	}

	result, err := s.establish(ctx, call, res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "establish channel")
		return nil, err
	}
	result.ReceiverName = receiverName(res)

	if s.metrics != nil {
		s.metrics.IncInitiated(string(result.Call.CallMethod), result.Call.IsEmergency)
		s.metrics.ObserveEstablish(string(result.Call.CallMethod), start)
	}
	s.announce(context.WithoutCancel(ctx), result)
	return result, nil
}

func (s *Service) newCall(ctx context.Context, req models.InitiateRequest, res *idmodels.Resolution) *models.Call {
	id := uuid.NewString()
	return &models.Call{
		ID:              id,
		ReceiverID:      res.OwnerID,
		QRID:            res.QR.ID,
		ChannelName:     models.ChannelNameFor(id),
		CallType:        req.CallType,
		CallMethod:      req.CallMethod,
		RequestedMethod: req.CallMethod,
		Status:          models.StatusInitiated,
		Caller:          req.Caller(),
		Device: models.DeviceSnapshot{
			DeviceID:           res.Device.ID,
			Name:               res.Device.Name,
			VehiclePlate:       res.Device.VehiclePlate,
			VehicleDescription: res.Device.VehicleDescription,
		},
		Timing:      models.Timing{InitiatedAt: s.now()},
		IsEmergency: req.EmergencyType.IsEmergency(),
		Metadata:    clientMetadata(ctx),
	}
}

func clientMetadata(ctx context.Context) models.Metadata {
	md := models.Metadata{
		ClientIP:  metadata.GetClientIP(ctx),
		UserAgent: metadata.GetUserAgent(ctx),
	}
	if md.UserAgent == "" {
		return md
	}
	ua := useragent.New(md.UserAgent)
	browser, version := ua.Browser()
	if browser != "" {
		md.Browser = browser
		if version != "" {
			md.Browser += " " + version
		}
	}
	md.OS = ua.OS()
	md.Mobile = ua.Mobile()
	return md
}

func receiverName(res *idmodels.Resolution) string {
	if res.QR.Privacy.ShowOwnerName && res.Device.OwnerName != "" {
		return res.Device.OwnerName
	}
	return defaultReceiverName
}

// establish runs the masked path when requested and falls back to direct on
// any relay failure. The relay gets its own budget; everything after it runs
// on a context detached from the request deadline.
func (s *Service) establish(ctx context.Context, call *models.Call, res *idmodels.Resolution) (*models.InitiateResult, error) {
	var maskedErr error
	if call.CallMethod == models.CallMethodMasked {
		relayCtx, cancel := context.WithTimeout(ctx, s.cfg.MaskedBudget)
		var session *models.MaskedSession
		session, maskedErr = s.startMasked(relayCtx, call, res.Device)
		cancel()
		if maskedErr == nil {
			call.AttachMaskedSession(*session)
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), establishTimeout)
	defer cancel()

	if call.CallMethod == models.CallMethodMasked {
		if maskedErr == nil {
			committed, err := s.commitChannel(ctx, call)
			if err != nil {
				return nil, err
			}
			return s.withCallerToken(&models.InitiateResult{Call: committed})
		}

		reason := fallbackReason(maskedErr)
		s.logger.WarnContext(ctx, "masked call failed, falling back to direct",
			"call_id", call.ID, "reason", reason, "error", maskedErr)
		call.FallBackToDirect(reason)
		if s.metrics != nil {
			s.metrics.IncFallback()
		}
	}

	callerCred, receiverCred, err := s.issueDirect(ctx, call)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue rtc credentials", "call_id", call.ID, "error", err)
		s.failCall(ctx, call)
		return nil, models.ErrRTCCredential(err)
	}

	committed := call
	if call.FallbackReason != "" {
		if committed, err = s.commitChannel(ctx, call); err != nil {
			return nil, err
		}
	}
	return s.withCallerToken(&models.InitiateResult{
		Call:               committed,
		CallerCredential:   callerCred,
		ReceiverCredential: receiverCred,
	})
}

func (s *Service) startMasked(ctx context.Context, call *models.Call, device *idmodels.Device) (*models.MaskedSession, error) {
	session, err := s.masked.Start(ctx, masked.StartRequest{
		CallID:        call.ID,
		CallerPhone:   call.Caller.Phone,
		ReceiverPhone: device.ReceiverPhone(),
		CallbackURL:   s.cfg.WebhookURL,
		Metadata: masked.StartMetadata{
			QRID:          call.QRID,
			EmergencyType: string(call.Caller.EmergencyType),
			UrgencyLevel:  string(call.Caller.UrgencyLevel),
			DeviceID:      call.Device.DeviceID,
		},
	})
	if err != nil {
		return nil, err
	}
	return &models.MaskedSession{
		SessionID:            session.SessionID,
		CallerMaskedNumber:   session.CallerMaskedNumber,
		ReceiverMaskedNumber: session.ReceiverMaskedNumber,
		Status:               session.Status,
		EstimatedConnectTime: session.EstimatedConnectTime,
	}, nil
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, masked.ErrCircuitOpen):
		return "masked relay unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "masked relay timed out"
	}
	return err.Error()
}

// issueDirect mints the caller's and receiver's publisher credentials in parallel.
func (s *Service) issueDirect(ctx context.Context, call *models.Call) (caller, receiver *models.RTCCredential, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cred, err := s.rtc.Issue(gctx, call.ChannelName, call.CallerUID(), rtc.RolePublisher, s.cfg.CredentialTTL)
		if err != nil {
			return err
		}
		caller = toCredential(cred)
		return nil
	})
	g.Go(func() error {
		cred, err := s.rtc.Issue(gctx, call.ChannelName, call.ReceiverUID(), rtc.RolePublisher, s.cfg.CredentialTTL)
		if err != nil {
			return err
		}
		receiver = toCredential(cred)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return caller, receiver, nil
}

func toCredential(c *rtc.Credential) *models.RTCCredential {
	return &models.RTCCredential{
		UID:         c.UID,
		ChannelName: c.Channel,
		Token:       c.UserSig,
		RoomKey:     c.RoomKey,
		AppID:       c.AppID,
		ExpiresAt:   c.ExpiresAt,
	}
}

// commitChannel persists the establishment outcome. A participant or the
// relay may have moved the call meanwhile, so on conflict the outcome is
// merged into the fresh record instead of overwriting its status.
func (s *Service) commitChannel(ctx context.Context, call *models.Call) (*models.Call, error) {
	current := call
	expected := models.StatusInitiated
	for attempt := 1; ; attempt++ {
		err := s.commit(ctx, current, expected, sourceInitiate)
		if err == nil {
			return current, nil
		}
		if !dErrors.HasCode(err, dErrors.CodeConflict) || attempt >= maxCommitAttempts {
			return nil, err
		}
		fresh, err := s.load(ctx, call.ID)
		if err != nil {
			return nil, err
		}
		fresh.CallMethod = call.CallMethod
		fresh.Masked = call.Masked
		fresh.FallbackReason = call.FallbackReason
		fresh.Caller.AdditionalInfo = call.Caller.AdditionalInfo
		current, expected = fresh, fresh.Status
	}
}

// failCall marks a call that could not be established. Losing the race to
// another writer is fine since the call is then already past initiated.
func (s *Service) failCall(ctx context.Context, call *models.Call) {
	failed := call.Clone()
	if err := failed.Fail(s.now()); err != nil {
		return
	}
	if err := s.commit(ctx, failed, models.StatusInitiated, sourceInitiate); err != nil {
		s.logger.WarnContext(ctx, "failed to mark call failed", "call_id", call.ID, "error", err)
		return
	}
	s.emit(ctx, events.TypeFailed, failed, sourceInitiate, nil)
}

func (s *Service) withCallerToken(res *models.InitiateResult) (*models.InitiateResult, error) {
	token, err := s.tokens.GenerateCallerToken(res.Call.ID, s.callerTokenTTL())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue caller token")
	}
	res.CallerToken = token
	return res, nil
}

func (s *Service) callerTokenTTL() time.Duration {
	return s.cfg.MaxDuration + s.cfg.RingTimeout
}

// announce pushes the new call to the receiver. Every step is best-effort.
func (s *Service) announce(ctx context.Context, res *models.InitiateResult) {
	call := res.Call

	var receiverToken string
	if res.ReceiverCredential != nil {
		receiverToken = res.ReceiverCredential.Token
	}
	if s.notifier != nil {
		msg, err := notify.IncomingCall(call, receiverToken)
		if err == nil {
			err = s.notifier.Notify(call.ID, call.ReceiverID, msg)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "failed to enqueue notification", "call_id", call.ID, "error", err)
		}
	}

	s.realtime.ToRoom(ctx, call.ReceiverID, incomingCallEvent(call, res.ReceiverCredential))
	if call.IsEmergency {
		s.realtime.Broadcast(ctx, emergencyAlertEvent(call))
	}

	s.emit(ctx, events.TypeInitiated, call, sourceInitiate, nil)
	if call.FallbackReason != "" {
		s.emit(ctx, events.TypeFallback, call, sourceInitiate, map[string]string{"reason": call.FallbackReason})
	}
}
