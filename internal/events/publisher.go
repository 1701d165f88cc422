package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"qrcall/pkg/platform/circuit"
)

// Sink writes one encoded event.
type Sink interface {
	Send(ctx context.Context, key, value []byte) error
}

type Metrics interface {
	IncEvent(outcome string)
}

// Publisher buffers events and sends them from a background loop. A full
// buffer or an open breaker drops events rather than slowing calls down.
type Publisher struct {
	sink    Sink
	logger  *slog.Logger
	metrics Metrics
	breaker *circuit.Breaker
	timeout time.Duration
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	buffer chan Event
	done   chan struct{}
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func WithBufferSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan Event, n)
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:    sink,
		logger:  slog.Default(),
		breaker: circuit.New("event-stream", circuit.WithCooldown(time.Minute)),
		timeout: 5 * time.Second,
		now:     time.Now,
		buffer:  make(chan Event, 1024),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit stamps and enqueues ev.
func (p *Publisher) Emit(_ context.Context, ev Event) {
	if ev.ID == "" {
		ev.ID = newID()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.now().UTC()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.observe("dropped")
		return
	}
	select {
	case p.buffer <- ev:
	default:
		p.observe("dropped")
		p.logger.Warn("event buffer full, dropping event", "type", ev.Type, "call_id", ev.CallID)
	}
}

// Run sends buffered events until Close is called and the buffer is drained.
func (p *Publisher) Run(ctx context.Context) {
	defer close(p.done)
	for ev := range p.buffer {
		p.send(ctx, ev)
	}
}

// Close stops accepting events and waits for Run to drain the buffer.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.buffer)
	p.mu.Unlock()
	<-p.done
}

func (p *Publisher) send(ctx context.Context, ev Event) {
	if !p.breaker.Allow() {
		p.observe("dropped")
		return
	}
	value, err := json.Marshal(ev)
	if err != nil {
		p.observe("failed")
		p.logger.Error("failed to encode event", "type", ev.Type, "error", err.Error())
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.sink.Send(sendCtx, []byte(ev.CallID), value); err != nil {
		p.observe("failed")
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.logger.Warn("event stream circuit opened", "error", err.Error())
		}
		p.logger.Warn("failed to publish event", "type", ev.Type, "call_id", ev.CallID, "error", err.Error())
		return
	}
	p.breaker.RecordSuccess()
	p.observe("published")
}

func (p *Publisher) observe(outcome string) {
	if p.metrics != nil {
		p.metrics.IncEvent(outcome)
	}
}
