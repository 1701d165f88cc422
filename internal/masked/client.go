package masked

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"qrcall/internal/platform/config"
	"qrcall/pkg/platform/circuit"
)

const (
	userAgent       = "qrcall/1.0"
	callTypeService = "emergency"
	serviceName     = "qrcall"
)

type startPayload struct {
	CallID         string          `json:"call_id"`
	CallerNumber   string          `json:"caller_number"`
	ReceiverNumber string          `json:"receiver_number"`
	CallbackURL    string          `json:"callback_url"`
	CallType       string          `json:"call_type"`
	MaxDuration    int             `json:"max_duration"`
	Metadata       startMetadataV1 `json:"metadata"`
}

type startMetadataV1 struct {
	StartMetadata
	InitiatedAt time.Time `json:"initiated_at"`
	Service     string    `json:"service"`
}

type startResponse struct {
	MaskedCallID         string `json:"masked_call_id"`
	CallerMaskedNumber   string `json:"caller_masked_number"`
	ReceiverMaskedNumber string `json:"receiver_masked_number"`
	Status               string `json:"status"`
	EstimatedConnectTime int    `json:"estimated_connect_time"`
}

type endResponse struct {
	Status   string     `json:"status"`
	Duration int        `json:"duration"`
	EndedAt  *time.Time `json:"ended_at"`
}

type statusResponse struct {
	Status       string          `json:"status"`
	Duration     int             `json:"duration"`
	StartedAt    *time.Time      `json:"started_at"`
	EndedAt      *time.Time      `json:"ended_at"`
	Participants json.RawMessage `json:"participants"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client is the HTTP Relay. Calls retry with exponential backoff and go
// through a circuit breaker so an outage fails fast.
type Client struct {
	http        *resty.Client
	breaker     *circuit.Breaker
	logger      *slog.Logger
	maxDuration time.Duration
	now         func() time.Time
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithMaxDuration caps the length of relayed calls.
func WithMaxDuration(d time.Duration) Option {
	return func(c *Client) {
		c.maxDuration = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient returns nil when the relay is not configured so callers can
// advertise direct calls only.
func NewClient(cfg config.MaskedConfig, opts ...Option) *Client {
	if !cfg.Configured() {
		return nil
	}
	attempts := max(cfg.MaxAttempts, 1)
	base := cfg.RetryWait
	if base <= 0 {
		base = time.Second
	}
	maxWait := cfg.MaxRetryWait
	if maxWait < base {
		maxWait = base
	}
	timeout := cfg.Timeout
	if cfg.Budget > 0 && (timeout <= 0 || timeout > cfg.Budget) {
		timeout = cfg.Budget
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent).
		SetRetryCount(attempts - 1).
		SetRetryWaitTime(base).
		SetRetryMaxWaitTime(maxWait).
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			return backoff(base, maxWait, resp.Request.Attempt), nil
		}).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError
		})

	c := &Client{
		http:        httpClient,
		breaker:     circuit.New("masked-relay"),
		logger:      slog.Default(),
		maxDuration: time.Hour,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// backoff is base·2^(attempt-1), capped at maxWait.
func backoff(base, maxWait time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	wait := base
	for i := 1; i < attempt && wait < maxWait; i++ {
		wait *= 2
	}
	return min(wait, maxWait)
}

// Breaker exposes the relay breaker for health reporting.
func (c *Client) Breaker() *circuit.Breaker { return c.breaker }

func (c *Client) Start(ctx context.Context, req StartRequest) (*Session, error) {
	callerNumber, err := FormatPhoneNumber(req.CallerPhone)
	if err != nil {
		return nil, fmt.Errorf("caller number: %w", err)
	}
	receiverNumber, err := FormatPhoneNumber(req.ReceiverPhone)
	if err != nil {
		return nil, fmt.Errorf("receiver number: %w", err)
	}

	payload := startPayload{
		CallID:         req.CallID,
		CallerNumber:   callerNumber,
		ReceiverNumber: receiverNumber,
		CallbackURL:    req.CallbackURL,
		CallType:       callTypeService,
		MaxDuration:    int(c.maxDuration / time.Second),
		Metadata: startMetadataV1{
			StartMetadata: req.Metadata,
			InitiatedAt:   c.now().UTC(),
			Service:       serviceName,
		},
	}

	var out startResponse
	if err := c.do(ctx, http.MethodPost, "/initiate-call", payload, &out); err != nil {
		c.logger.ErrorContext(ctx, "masked call start failed",
			"call_id", req.CallID,
			"caller", MaskPhoneNumber(callerNumber),
			"receiver", MaskPhoneNumber(receiverNumber),
			"error", err.Error(),
		)
		return nil, err
	}
	if out.MaskedCallID == "" {
		return nil, fmt.Errorf("masked relay returned no session id")
	}
	c.logger.InfoContext(ctx, "masked call started",
		"call_id", req.CallID,
		"masked_call_id", out.MaskedCallID,
	)
	return &Session{
		SessionID:            out.MaskedCallID,
		CallerMaskedNumber:   out.CallerMaskedNumber,
		ReceiverMaskedNumber: out.ReceiverMaskedNumber,
		Status:               out.Status,
		EstimatedConnectTime: out.EstimatedConnectTime,
	}, nil
}

func (c *Client) End(ctx context.Context, sessionID string) (*EndResult, error) {
	var out endResponse
	if err := c.do(ctx, http.MethodPost, "/end-call/"+sessionID, nil, &out); err != nil {
		return nil, err
	}
	return &EndResult{Status: out.Status, Duration: out.Duration, EndedAt: out.EndedAt}, nil
}

func (c *Client) Status(ctx context.Context, sessionID string) (*SessionStatus, error) {
	var out statusResponse
	if err := c.do(ctx, http.MethodGet, "/call-status/"+sessionID, nil, &out); err != nil {
		return nil, err
	}
	return &SessionStatus{
		Status:       out.Status,
		Duration:     out.Duration,
		StartedAt:    out.StartedAt,
		EndedAt:      out.EndedAt,
		Participants: out.Participants,
	}, nil
}

// do sends one logical request through the breaker. Retries happen inside resty
// and count as a single outcome.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	if !c.breaker.Allow() {
		return ErrCircuitOpen
	}

	var apiErr errorResponse
	req := c.http.R().SetContext(ctx).SetResult(result).SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)

	if err == nil && resp.IsError() {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error
		}
		if msg == "" {
			msg = resp.Status()
		}
		err = &StatusError{StatusCode: resp.StatusCode(), Message: msg}
	}
	if err != nil {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "masked relay circuit opened", "breaker", c.breaker.Name())
		}
		return fmt.Errorf("masked relay %s %s: %w", method, path, err)
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "masked relay circuit closed", "breaker", c.breaker.Name())
	}
	return nil
}

// StatusError is a non-2xx answer from the relay after retries.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}
