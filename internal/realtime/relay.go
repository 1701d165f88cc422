package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PubSub is the subset of the go-redis client the relay uses.
type PubSub interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// envelope is what instances exchange over Redis. Room is empty for broadcasts.
type envelope struct {
	Origin string `json:"origin"`
	Room   string `json:"room,omitempty"`
	Event  Event  `json:"event"`
}

// Relay forwards events between server instances so a client connected to
// any instance receives events published on another one.
type Relay struct {
	pubsub  PubSub
	channel string
	origin  string
	hub     *Hub
	logger  *slog.Logger
}

func NewRelay(pubsub PubSub, channel string, hub *Hub, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		pubsub:  pubsub,
		channel: channel,
		origin:  uuid.NewString(),
		hub:     hub,
		logger:  logger,
	}
}

// Publish sends ev to the other instances. Local delivery is the caller's job.
func (r *Relay) Publish(ctx context.Context, room string, ev Event) error {
	payload, err := json.Marshal(envelope{Origin: r.origin, Room: room, Event: ev})
	if err != nil {
		return fmt.Errorf("encode relay envelope: %w", err)
	}
	if err := r.pubsub.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}

// Run subscribes and delivers remote events to the local hub until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.pubsub.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}
	r.logger.InfoContext(ctx, "realtime relay subscribed", "channel", r.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.handle(ctx, msg.Payload)
		}
	}
}

func (r *Relay) handle(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.logger.WarnContext(ctx, "dropping malformed relay message", "error", err)
		return
	}
	if env.Origin == r.origin {
		return
	}
	if env.Room == "" {
		r.hub.BroadcastLocal(env.Event)
		return
	}
	r.hub.EmitLocal(env.Room, env.Event)
}
