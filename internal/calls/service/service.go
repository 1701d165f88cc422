// Package service is the call state machine. It admits calls, establishes
// their channel, applies participant and relay transitions through
// conditional updates, and fans out the side effects.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"qrcall/internal/calls/models"
	"qrcall/internal/events"
	"qrcall/internal/realtime"
	dErrors "qrcall/pkg/domain-errors"
	request "qrcall/pkg/platform/middleware/request"
	"qrcall/pkg/platform/sentinel"
)

const (
	tracerName = "qrcall/calls"

	// maxCommitAttempts bounds re-reads after losing a conditional update.
	maxCommitAttempts = 3
	sweepBatchSize    = 100
	relayCallTimeout  = 15 * time.Second
	// establishTimeout bounds credential issue and the commit that follow the
	// relay attempt. They run detached from the request deadline.
	establishTimeout = 10 * time.Second
)

// Config carries the call engine's timing and addressing.
type Config struct {
	MaxDuration   time.Duration
	RingTimeout   time.Duration
	SweepInterval time.Duration
	CredentialTTL time.Duration
	// WebhookURL is where the masked relay reports session events.
	WebhookURL string
	// MaskedBudget caps the relay attempt so a hanging relay leaves room for
	// the direct fallback.
	MaskedBudget time.Duration
}

type Service struct {
	store    Store
	resolver Resolver
	rtc      CredentialIssuer
	tokens   TokenIssuer
	masked   MaskedRelay
	notifier Notifier
	realtime realtime.Publisher
	events   events.Emitter
	metrics  Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	cfg      Config
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithMaskedRelay enables masked calling. Without it masked requests are refused.
func WithMaskedRelay(relay MaskedRelay) Option {
	return func(s *Service) {
		s.masked = relay
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithRealtime(p realtime.Publisher) Option {
	return func(s *Service) {
		s.realtime = p
	}
}

func WithEvents(e events.Emitter) Option {
	return func(s *Service) {
		s.events = e
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store Store, resolver Resolver, issuer CredentialIssuer, tokens TokenIssuer, cfg Config, opts ...Option) *Service {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = time.Hour
	}
	if cfg.RingTimeout <= 0 {
		cfg.RingTimeout = 30 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Second
	}
	if cfg.CredentialTTL <= 0 {
		cfg.CredentialTTL = 24 * time.Hour
	}
	if cfg.MaskedBudget <= 0 {
		cfg.MaskedBudget = 10 * time.Second
	}
	s := &Service{
		store:    store,
		resolver: resolver,
		rtc:      issuer,
		tokens:   tokens,
		realtime: realtime.Discard,
		events:   events.Discard,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaskedAvailable reports whether masked calls can be offered.
func (s *Service) MaskedAvailable() bool {
	return s.masked != nil
}

func (s *Service) load(ctx context.Context, callID string) (*models.Call, error) {
	call, err := s.store.FindByID(ctx, callID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.ErrCallNotFound()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load call")
	}
	return call, nil
}

// commit writes call if its stored status still equals expected.
func (s *Service) commit(ctx context.Context, call *models.Call, expected models.Status, source string) error {
	err := s.store.UpdateIfStatus(ctx, call, expected)
	switch {
	case err == nil:
		if call.Status != expected {
			s.observeTransition(string(call.Status), source)
		}
		return nil
	case errors.Is(err, sentinel.ErrConflict):
		if s.metrics != nil {
			s.metrics.IncConflict(source)
		}
		s.logger.WarnContext(ctx, "call status changed concurrently",
			"call_id", call.ID, "expected_status", expected, "source", source)
		return models.ErrStatusConflict()
	case errors.Is(err, sentinel.ErrNotFound):
		return models.ErrCallNotFound()
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update call")
	}
}

func (s *Service) observeTransition(to, source string) {
	if s.metrics != nil {
		s.metrics.IncTransition(to, source)
	}
}

// endMaskedSession closes the relay session in the background. The relay
// also hangs up on its own, so failures are only logged.
func (s *Service) endMaskedSession(ctx context.Context, call *models.Call) {
	if s.masked == nil || !call.HasMaskedSession() {
		return
	}
	sessionID := call.Masked.SessionID
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, relayCallTimeout)
		defer cancel()
		if _, err := s.masked.End(ctx, sessionID); err != nil {
			s.logger.WarnContext(ctx, "failed to end masked session",
				"call_id", call.ID, "session_id", sessionID, "error", err)
		}
	}()
}

func (s *Service) emit(ctx context.Context, typ events.Type, call *models.Call, source string, attrs map[string]string) {
	ev := events.FromCall(typ, call, source, attrs)
	ev.RequestID = request.GetRequestID(ctx)
	s.events.Emit(ctx, ev)
}
