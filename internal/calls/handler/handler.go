package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"qrcall/internal/calls/models"
	"qrcall/internal/calls/service"
	"qrcall/internal/calls/webhook"
	"qrcall/internal/masked"
	"qrcall/internal/platform/middleware"
	rlmodels "qrcall/internal/ratelimit/models"
	dErrors "qrcall/pkg/domain-errors"
	"qrcall/pkg/platform/httputil"
	authmw "qrcall/pkg/platform/middleware/auth"
)

const (
	requestTimeout  = 30 * time.Second
	maxWebhookBytes = 1 << 20
)

// Service is the call engine as seen by the HTTP surface.
type Service interface {
	Initiate(ctx context.Context, req models.InitiateRequest) (*models.InitiateResult, error)
	Answer(ctx context.Context, callID, userID string) (*models.AnswerResult, error)
	Reject(ctx context.Context, callID, userID string, req models.RejectRequest) (*models.Call, error)
	End(ctx context.Context, callID string, actor models.Actor, req models.EndRequest) (*models.Call, error)
	Status(ctx context.Context, callID string) (*service.StatusView, error)
	Details(ctx context.Context, callID, userID string) (*models.Call, error)
	History(ctx context.Context, filter models.HistoryFilter) (*models.HistoryPage, error)
	Methods() models.MethodsResponse
	MaskedStatus(ctx context.Context, callID, userID string) (*masked.SessionStatus, error)
	ReconcileWebhook(ctx context.Context, ev webhook.Event) (*models.WebhookResponse, error)
}

// RateLimiter supplies the per-IP and per-(IP, QR) limits.
type RateLimiter interface {
	RateLimitIP(class rlmodels.Class) func(http.Handler) http.Handler
	RateLimitCall() func(http.Handler) http.Handler
}

// Handler serves /calls.
type Handler struct {
	svc           Service
	validator     authmw.JWTValidator
	limiter       RateLimiter
	webhookSecret string
	logger        *slog.Logger
}

type Option func(*Handler)

func WithRateLimiter(l RateLimiter) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

// WithWebhookSecret enables signature checks on relay callbacks.
func WithWebhookSecret(secret string) Option {
	return func(h *Handler) {
		h.webhookSecret = secret
	}
}

func New(svc Service, validator authmw.JWTValidator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{svc: svc, validator: validator, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/calls", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Use(middleware.ContentTypeJSON)

		// Initiate is budgeted per (IP, QR) only.
		if h.limiter != nil {
			r.With(h.limiter.RateLimitCall()).Post("/initiate", h.handleInitiate)
		} else {
			r.Post("/initiate", h.handleInitiate)
		}

		r.Group(func(r chi.Router) {
			if h.limiter != nil {
				r.Use(h.limiter.RateLimitIP(rlmodels.ClassGeneral))
			}

			r.Get("/methods", h.handleMethods)
			r.Post("/webhook/masked", h.handleMaskedWebhook)
			r.Get("/{callId}/status", h.handleStatus)
			r.With(authmw.OptionalAuth(h.validator, h.logger)).Post("/{callId}/end", h.handleEnd)

			r.Group(func(r chi.Router) {
				r.Use(authmw.RequireAuth(h.validator, h.logger))
				r.Get("/history", h.handleHistory)
				r.Get("/{callId}", h.handleDetails)
				r.Get("/{callId}/masked-status", h.handleMaskedStatus)
				r.Post("/{callId}/answer", h.handleAnswer)
				r.Post("/{callId}/reject", h.handleReject)
			})
		})
	})
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid initiate request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	res, err := h.svc.Initiate(ctx, req)
	if err != nil {
		h.writeError(ctx, w, err, "call initiation failed", "qr_id", req.QRID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewInitiateResponse(res))
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callID := chi.URLParam(r, "callId")

	res, err := h.svc.Answer(ctx, callID, authmw.GetUserID(ctx))
	if err != nil {
		h.writeError(ctx, w, err, "answer failed", "call_id", callID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewAnswerResponse(res))
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callID := chi.URLParam(r, "callId")

	var req models.RejectRequest
	if err := decodeOptional(r, &req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	call, err := h.svc.Reject(ctx, callID, authmw.GetUserID(ctx), req)
	if err != nil {
		h.writeError(ctx, w, err, "reject failed", "call_id", callID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.RejectResponse{
		Success: true,
		Message: "Call rejected",
		CallID:  call.ID,
		Status:  call.Status,
		EndedBy: call.EndedBy,
	})
}

// handleEnd accepts the receiver's bearer token or the caller token issued
// for this call.
func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callID := chi.URLParam(r, "callId")

	claims := authmw.GetClaims(ctx)
	var actor models.Actor
	switch {
	case claims.IsOwner():
		actor = models.OwnerActor(claims.UserID)
	case claims.IsCaller():
		actor = models.CallerActor(claims.CallID)
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "a call participant token is required"))
		return
	}

	var req models.EndRequest
	if err := decodeOptional(r, &req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	call, err := h.svc.End(ctx, callID, actor, req)
	if err != nil {
		h.writeError(ctx, w, err, "end failed", "call_id", callID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.EndResponse{
		Success:  true,
		Message:  "Call ended",
		CallID:   call.ID,
		Status:   call.Status,
		Duration: call.Timing.Duration,
		EndedBy:  call.EndedBy,
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callID := chi.URLParam(r, "callId")

	view, err := h.svc.Status(ctx, callID)
	if err != nil {
		h.writeError(ctx, w, err, "status lookup failed", "call_id", callID)
		return
	}
	resp := models.NewStatusResponse(view.Call)
	if view.Masked != nil {
		resp.MaskedCallStatus = view.Masked
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callID := chi.URLParam(r, "callId")

	call, err := h.svc.Details(ctx, callID, authmw.GetUserID(ctx))
	if err != nil {
		h.writeError(ctx, w, err, "details lookup failed", "call_id", callID)
		return
	}
	cp := call.Clone()
	cp.Caller = cp.Caller.Redacted()
	httputil.WriteJSON(w, http.StatusOK, models.DetailsResponse{Success: true, Call: cp})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseHistoryFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter.ReceiverID = authmw.GetUserID(ctx)
	filter.Normalize()

	page, err := h.svc.History(ctx, filter)
	if err != nil {
		h.writeError(ctx, w, err, "history lookup failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewHistoryResponse(page, filter))
}

func (h *Handler) handleMethods(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.svc.Methods())
}

func (h *Handler) handleMaskedStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callID := chi.URLParam(r, "callId")

	st, err := h.svc.MaskedStatus(ctx, callID, authmw.GetUserID(ctx))
	if err != nil {
		h.writeError(ctx, w, err, "masked status lookup failed", "call_id", callID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"callId":           callID,
		"maskedCallStatus": st,
	})
}

// handleMaskedWebhook authenticates and reconciles a relay callback. Valid
// events always get 200 so the relay stops retrying.
func (h *Handler) handleMaskedWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		httputil.WriteError(w, models.ErrInvalidWebhook("unreadable webhook payload"))
		return
	}
	if err := webhook.Verify(h.webhookSecret, body, r.Header.Get(webhook.SignatureHeader)); err != nil {
		h.logger.WarnContext(ctx, "webhook signature rejected", "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	ev, err := webhook.Parse(body)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid webhook payload", "request_id", requestID, "error", err.Error())
		httputil.WriteError(w, err)
		return
	}

	resp, err := h.svc.ReconcileWebhook(ctx, ev)
	if err != nil {
		h.writeError(ctx, w, err, "webhook reconciliation failed", "call_id", ev.CallID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, msg string, attrs ...any) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		attrs = append(attrs, "request_id", middleware.GetRequestID(ctx), "error", err.Error())
		h.logger.ErrorContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

// decodeOptional decodes a JSON body that clients may omit entirely.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func trimmedQuery(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
