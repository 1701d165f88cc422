package service

import (
	"context"
	"time"

	"qrcall/internal/calls/models"
	"qrcall/internal/masked"
	dErrors "qrcall/pkg/domain-errors"
)

const statusLookupTimeout = 3 * time.Second

// StatusView is the public status of a call, with the relay's live session
// status when one could be fetched.
type StatusView struct {
	Call   *models.Call
	Masked *masked.SessionStatus
}

// Status returns the authoritative state of a call. It needs no credentials
// so clients that missed realtime events can poll it.
func (s *Service) Status(ctx context.Context, callID string) (*StatusView, error) {
	call, err := s.load(ctx, callID)
	if err != nil {
		return nil, err
	}
	view := &StatusView{Call: call}
	if s.masked == nil || !call.HasMaskedSession() || call.Status.IsTerminal() {
		return view, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, statusLookupTimeout)
	defer cancel()
	st, err := s.masked.Status(lookupCtx, call.Masked.SessionID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to fetch masked session status", "call_id", callID, "error", err)
		return view, nil
	}
	view.Masked = st
	return view, nil
}

// Details returns the full record of a call to its receiver.
func (s *Service) Details(ctx context.Context, callID, userID string) (*models.Call, error) {
	call, err := s.load(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call.ReceiverID != userID {
		return nil, models.ErrNotParticipant()
	}
	return call, nil
}

// History pages through the calls received by filter.ReceiverID.
func (s *Service) History(ctx context.Context, filter models.HistoryFilter) (*models.HistoryPage, error) {
	filter.Normalize()
	page, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load call history")
	}
	return page, nil
}

// Methods lists the call methods a caller may pick.
func (s *Service) Methods() models.MethodsResponse {
	resp := models.MethodsResponse{
		Success: true,
		Methods: []models.MethodInfo{
			{
				Method:      models.CallMethodDirect,
				Name:        "Direct Call",
				Description: "Audio or video call in the browser. No phone number needed.",
				Available:   true,
			},
			{
				Method:        models.CallMethodMasked,
				Name:          "Masked Phone Call",
				Description:   "Phone call through masked numbers. Neither party sees the other's real number.",
				Available:     s.MaskedAvailable(),
				RequiresPhone: true,
			},
		},
		DefaultMethod: models.CallMethodDirect,
		Recommended:   models.CallMethodDirect,
	}
	if s.MaskedAvailable() {
		resp.Recommended = models.CallMethodMasked
	}
	return resp
}

// MaskedStatus asks the relay for the live session of a masked call. Only
// the receiver may ask.
func (s *Service) MaskedStatus(ctx context.Context, callID, userID string) (*masked.SessionStatus, error) {
	call, err := s.Details(ctx, callID, userID)
	if err != nil {
		return nil, err
	}
	if !call.HasMaskedSession() {
		return nil, models.ErrNotMaskedCall()
	}
	if s.masked == nil {
		return nil, models.ErrMaskedUnavailable()
	}
	st, err := s.masked.Status(ctx, call.Masked.SessionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "masked status query failed", "call_id", callID, "error", err)
		return nil, models.ErrMaskedStatus(err)
	}
	return st, nil
}
