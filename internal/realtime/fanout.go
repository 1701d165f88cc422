package realtime

import (
	"context"
	"log/slog"
)

// Publisher is what the call engine fans events out through.
type Publisher interface {
	ToRoom(ctx context.Context, room string, ev Event)
	Broadcast(ctx context.Context, ev Event)
}

// Fanout delivers to local sockets, then to other instances and the MQTT
// mirror when configured. Errors are logged and never returned.
type Fanout struct {
	hub    *Hub
	relay  *Relay
	mirror *Mirror
	logger *slog.Logger
}

type FanoutOption func(*Fanout)

func WithRelay(relay *Relay) FanoutOption {
	return func(f *Fanout) {
		f.relay = relay
	}
}

func WithMirror(mirror *Mirror) FanoutOption {
	return func(f *Fanout) {
		f.mirror = mirror
	}
}

func WithFanoutLogger(logger *slog.Logger) FanoutOption {
	return func(f *Fanout) {
		f.logger = logger
	}
}

func NewFanout(hub *Hub, opts ...FanoutOption) *Fanout {
	f := &Fanout{hub: hub, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fanout) ToRoom(ctx context.Context, room string, ev Event) {
	delivered := f.hub.EmitLocal(room, ev)
	f.logger.DebugContext(ctx, "realtime event emitted", "room", room, "event", ev.Name, "delivered", delivered)

	if f.relay != nil {
		if err := f.relay.Publish(ctx, room, ev); err != nil {
			f.logger.WarnContext(ctx, "realtime relay publish failed", "room", room, "event", ev.Name, "error", err)
		}
	}
	if f.mirror != nil {
		go f.mirror.Room(room, ev)
	}
}

func (f *Fanout) Broadcast(ctx context.Context, ev Event) {
	delivered := f.hub.BroadcastLocal(ev)
	f.logger.DebugContext(ctx, "realtime event broadcast", "event", ev.Name, "delivered", delivered)

	if f.relay != nil {
		if err := f.relay.Publish(ctx, "", ev); err != nil {
			f.logger.WarnContext(ctx, "realtime relay broadcast failed", "event", ev.Name, "error", err)
		}
	}
	if f.mirror != nil {
		go f.mirror.Broadcast(ev)
	}
}

// Discard drops every event. Used where no realtime transport is wired.
var Discard Publisher = discard{}

type discard struct{}

func (discard) ToRoom(context.Context, string, Event) {}
func (discard) Broadcast(context.Context, Event)      {}
