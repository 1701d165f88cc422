package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"qrcall/internal/platform/config"
)

var ErrNoEndpoints = errors.New("no push endpoints registered")

const maxParallelSends = 8

type tokensResponse struct {
	Tokens []string `json:"tokens"`
}

type pushRequest struct {
	Token        string            `json:"token"`
	Notification pushNotification  `json:"notification"`
	Data         map[string]string `json:"data"`
	Android      androidConfig     `json:"android"`
	APNS         apnsConfig        `json:"apns"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type androidConfig struct {
	Priority  string `json:"priority"`
	ChannelID string `json:"channelId"`
	Sound     string `json:"sound"`
}

type apnsConfig struct {
	Sound            string `json:"sound"`
	Badge            int    `json:"badge"`
	ContentAvailable int    `json:"content-available"`
}

// HTTPGateway resolves an identity's device tokens from the user service and
// pushes to each of them in parallel.
type HTTPGateway struct {
	tokens  *resty.Client
	push    *resty.Client
	pushURL string
	logger  *slog.Logger
	now     func() time.Time
}

type GatewayOption func(*HTTPGateway)

func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *HTTPGateway) {
		g.logger = logger
	}
}

// NewHTTPGateway returns nil when no push endpoint is configured.
func NewHTTPGateway(cfg config.NotifyConfig, opts ...GatewayOption) *HTTPGateway {
	if cfg.PushURL == "" || cfg.TokenAPIURL == "" {
		return nil
	}
	g := &HTTPGateway{
		tokens: resty.New().
			SetBaseURL(cfg.TokenAPIURL).
			SetTimeout(cfg.Timeout).
			SetAuthToken(cfg.PushAPIKey).
			SetHeader("Accept", "application/json"),
		push: resty.New().
			SetTimeout(cfg.Timeout).
			SetAuthToken(cfg.PushAPIKey).
			SetHeader("Content-Type", "application/json"),
		pushURL: cfg.PushURL,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *HTTPGateway) Deliver(ctx context.Context, identity string, msg Message) (*DeliveryResult, error) {
	var tokens tokensResponse
	resp, err := g.tokens.R().
		SetContext(ctx).
		SetResult(&tokens).
		Get("/users/" + url.PathEscape(identity) + "/push-tokens")
	if err != nil {
		return nil, fmt.Errorf("lookup push tokens: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("lookup push tokens: status %d", resp.StatusCode())
	}
	if len(tokens.Tokens) == 0 {
		return nil, ErrNoEndpoints
	}

	data := make(map[string]string, len(msg.Data)+1)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["timestamp"] = g.now().UTC().Format(time.RFC3339)

	var sent, failed atomic.Int32
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelSends)
	for _, token := range tokens.Tokens {
		group.Go(func() error {
			if err := g.send(gctx, token, msg, data); err != nil {
				failed.Add(1)
				g.logger.DebugContext(ctx, "push to endpoint failed", "token", tokenPrefix(token), "error", err.Error())
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = group.Wait()

	res := &DeliveryResult{Sent: int(sent.Load()), Failed: int(failed.Load())}
	if res.Sent == 0 {
		return res, fmt.Errorf("push failed for all %d endpoints", res.Failed)
	}
	return res, nil
}

func (g *HTTPGateway) send(ctx context.Context, token string, msg Message, data map[string]string) error {
	priority := msg.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	resp, err := g.push.R().
		SetContext(ctx).
		SetBody(pushRequest{
			Token:        token,
			Notification: pushNotification{Title: msg.Title, Body: msg.Body},
			Data:         data,
			Android:      androidConfig{Priority: priority, ChannelID: "emergency_calls", Sound: "default"},
			APNS:         apnsConfig{Sound: "default", Badge: 1, ContentAvailable: 1},
		}).
		Post(g.pushURL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("status %d", resp.StatusCode())
	}
	return nil
}

func tokenPrefix(token string) string {
	if len(token) > 12 {
		return token[:12] + "..."
	}
	return token
}
