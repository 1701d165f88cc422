package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"qrcall/internal/ratelimit/models"
	"qrcall/pkg/platform/circuit"
	"qrcall/pkg/platform/httputil"
	metadata "qrcall/pkg/platform/middleware/metadata"
)

// maxPeekBytes bounds how much of an initiate body is read to find the qrId.
const maxPeekBytes = 64 << 10

type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

type Middleware struct {
	store    BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	policies models.Policies
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithFallback sets the store used while the primary store is failing.
func WithFallback(store BucketStore) Option {
	return func(m *Middleware) {
		m.fallback = store
	}
}

func WithBreaker(breaker *circuit.Breaker) Option {
	return func(m *Middleware) {
		m.breaker = breaker
	}
}

func New(store BucketStore, policies models.Policies, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:    store,
		policies: policies,
		logger:   logger,
		breaker:  circuit.New("ratelimit"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimitIP limits every request from one client IP.
func (m *Middleware) RateLimitIP(class models.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			ip := metadata.GetClientIP(ctx)
			if !m.enforce(w, r, class, models.NewGeneralKey(ip)) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitCall limits call initiation per (IP, qrId). The qrId is read from
// the JSON body, which is restored for the handler.
func (m *Middleware) RateLimitCall() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			ip := metadata.GetClientIP(ctx)
			qrID := peekQRID(r)
			if !m.enforce(w, r, models.ClassCall, models.NewCallKey(ip, qrID)) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func peekQRID(r *http.Request) string {
	if r.Body == nil || r.ContentLength == 0 {
		return ""
	}
	bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	rest := r.Body
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(bodyBytes), rest), rest}
	if err != nil || len(bodyBytes) == 0 {
		return ""
	}
	var payload struct {
		QRID string `json:"qrId"`
	}
	if jsonErr := json.Unmarshal(bodyBytes, &payload); jsonErr != nil {
		return ""
	}
	return strings.TrimSpace(payload.QRID)
}

// enforce writes headers and, when over budget, the 429 response. It reports
// whether the request may continue. Store failures fail open.
func (m *Middleware) enforce(w http.ResponseWriter, r *http.Request, class models.Class, key string) bool {
	policy, ok := m.policies[class]
	if !ok || policy.Limit <= 0 {
		return true
	}
	ctx := r.Context()

	result, degraded, err := m.check(ctx, key, policy)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to check rate limit", "class", string(class), "error", err)
		return true
	}

	addRateLimitHeaders(w, result)
	if degraded {
		w.Header().Set("X-RateLimit-Status", "degraded")
	}
	if !result.Allowed {
		m.logger.WarnContext(ctx, "rate limit exceeded", "class", string(class), "retry_after", result.RetryAfter)
		writeRateLimitExceeded(w, class, result)
		return false
	}
	return true
}

func (m *Middleware) check(ctx context.Context, key string, policy models.Policy) (*models.Result, bool, error) {
	if m.breaker.Allow() {
		result, err := m.store.Allow(ctx, key, policy.Limit, policy.Window)
		if err == nil {
			if _, change := m.breaker.RecordSuccess(); change.Closed {
				m.logger.InfoContext(ctx, "rate limit store recovered")
			}
			return result, false, nil
		}
		if _, change := m.breaker.RecordFailure(); change.Opened {
			m.logger.WarnContext(ctx, "rate limit store failing, using fallback", "error", err)
		}
		if m.fallback == nil {
			return nil, false, err
		}
	} else if m.fallback == nil {
		return nil, false, errBreakerOpen
	}
	result, err := m.fallback.Allow(ctx, key, policy.Limit, policy.Window)
	return result, true, err
}

var errBreakerOpen = errors.New("rate limit store unavailable")

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, class models.Class, result *models.Result) {
	message := "Too many requests from this IP, please try again later."
	if class == models.ClassCall {
		message = "Too many call attempts, please try again later."
	}
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    message,
		RetryAfter: result.RetryAfter,
	})
}
