// Package notify delivers best-effort push notifications off the request path.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrStopped   = errors.New("notification dispatcher stopped")
)

// Gateway delivers a message to every endpoint registered for identity.
type Gateway interface {
	Deliver(ctx context.Context, identity string, msg Message) (*DeliveryResult, error)
}

type DeliveryResult struct {
	Sent   int
	Failed int
}

// Metrics observes delivery outcomes.
type Metrics interface {
	IncNotification(outcome string)
}

type job struct {
	identity string
	msg      Message
	callID   string
}

// Dispatcher runs a fixed pool of workers over a bounded queue. Enqueue never
// blocks; failures surface only in logs.
type Dispatcher struct {
	gateway  Gateway
	logger   *slog.Logger
	metrics  Metrics
	workers  int
	timeout  time.Duration
	attempts int
	retry    time.Duration

	mu      sync.RWMutex
	stopped bool
	queue   chan job
	errs    chan error
	wg      sync.WaitGroup
	drainWG sync.WaitGroup
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan job, n)
		}
	}
}

// WithTimeout bounds each delivery attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithRetry(attempts int, wait time.Duration) Option {
	return func(d *Dispatcher) {
		if attempts > 0 {
			d.attempts = attempts
		}
		d.retry = wait
	}
}

func NewDispatcher(gateway Gateway, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		gateway:  gateway,
		logger:   slog.Default(),
		workers:  4,
		timeout:  10 * time.Second,
		attempts: 3,
		retry:    500 * time.Millisecond,
		queue:    make(chan job, 256),
		errs:     make(chan error, 64),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the workers and the error drain. Cancelling ctx aborts
// in-flight deliveries; call Stop to drain the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	d.drainWG.Add(1)
	go func() {
		defer d.drainWG.Done()
		for err := range d.errs {
			d.logger.Warn("push notification failed", "error", err.Error())
		}
	}()
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range d.queue {
				d.deliver(ctx, j)
			}
		}()
	}
}

// Notify enqueues msg for identity without waiting for delivery.
func (d *Dispatcher) Notify(callID, identity string, msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}
	select {
	case d.queue <- job{identity: identity, msg: msg, callID: callID}:
		return nil
	default:
		d.observe("dropped")
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for queued deliveries to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	close(d.errs)
	d.drainWG.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		res, err := d.gateway.Deliver(attemptCtx, j.identity, j.msg)
		cancel()
		if err == nil {
			d.observe("sent")
			if res != nil {
				d.logger.Debug("push notification delivered",
					"call_id", j.callID,
					"sent", res.Sent,
					"failed", res.Failed,
				)
			}
			return
		}
		lastErr = err
		if errors.Is(err, ErrNoEndpoints) {
			break
		}
		if attempt < d.attempts && d.retry > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(d.retry * time.Duration(attempt)):
			}
		}
	}
	d.observe("failed")
	select {
	case d.errs <- fmt.Errorf("call %s: %w", j.callID, lastErr):
	default:
		d.logger.Warn("push notification failed", "call_id", j.callID, "error", lastErr.Error())
	}
}

func (d *Dispatcher) observe(outcome string) {
	if d.metrics != nil {
		d.metrics.IncNotification(outcome)
	}
}
