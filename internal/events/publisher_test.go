package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrcall/internal/calls/models"
	"qrcall/pkg/platform/circuit"
)

type recordingSink struct {
	mu      sync.Mutex
	keys    []string
	values  [][]byte
	failing bool
}

func (s *recordingSink) Send(_ context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("broker unavailable")
	}
	s.keys = append(s.keys, string(key))
	s.values = append(s.values, value)
	return nil
}

type outcomes struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomes) IncEvent(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[outcome]++
}

func TestPublisher_SendsKeyedByCall(t *testing.T) {
	sink := &recordingSink{}
	at := time.Date(2026, 2, 2, 2, 2, 2, 0, time.UTC)
	p := NewPublisher(sink, WithClock(func() time.Time { return at }))
	go p.Run(context.Background())

	p.Emit(context.Background(), Event{Type: TypeInitiated, CallID: "c1", Status: "initiated"})
	p.Emit(context.Background(), Event{Type: TypeAnswered, CallID: "c1", Status: "answered"})
	p.Close()

	require.Len(t, sink.values, 2)
	assert.Equal(t, []string{"c1", "c1"}, sink.keys)

	var ev Event
	require.NoError(t, json.Unmarshal(sink.values[0], &ev))
	assert.Equal(t, TypeInitiated, ev.Type)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, at, ev.OccurredAt)
}

func TestPublisher_OpenBreakerDrops(t *testing.T) {
	sink := &recordingSink{failing: true}
	metrics := &outcomes{}
	p := NewPublisher(sink,
		WithMetrics(metrics),
		WithBreaker(circuit.New("test", circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour))),
	)
	go p.Run(context.Background())

	p.Emit(context.Background(), Event{Type: TypeEnded, CallID: "c1"})
	p.Emit(context.Background(), Event{Type: TypeEnded, CallID: "c2"})
	p.Close()

	assert.Equal(t, 1, metrics.counts["failed"])
	assert.Equal(t, 1, metrics.counts["dropped"])
}

func TestPublisher_FullBufferNeverBlocks(t *testing.T) {
	metrics := &outcomes{}
	p := NewPublisher(&recordingSink{}, WithBufferSize(1), WithMetrics(metrics))

	p.Emit(context.Background(), Event{CallID: "c1"})
	p.Emit(context.Background(), Event{CallID: "c2"})
	assert.Equal(t, 1, metrics.counts["dropped"])

	go p.Run(context.Background())
	p.Close()
	p.Emit(context.Background(), Event{CallID: "c3"})
	assert.Equal(t, 2, metrics.counts["dropped"])
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard.Emit(context.Background(), Event{}) })
}

func TestFromCall(t *testing.T) {
	call := &models.Call{
		ID:          "C1",
		ReceiverID:  "U1",
		QRID:        "Q1",
		Status:      models.StatusEnded,
		CallMethod:  models.CallMethodDirect,
		EndedBy:     models.EndedByCaller,
		IsEmergency: true,
		Caller:      models.CallerInfo{Phone: "+15551234567"},
	}
	ev := FromCall(TypeFor(call.Status), call, "caller", map[string]string{"reason": "done"})

	assert.Equal(t, TypeEnded, ev.Type)
	assert.Equal(t, "C1", ev.CallID)
	assert.Equal(t, "caller", ev.EndedBy)
	assert.True(t, ev.IsEmergency)
	assert.Equal(t, "done", ev.Attributes["reason"])

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "5551234567")
}

func TestTypeFor(t *testing.T) {
	assert.Equal(t, TypeAnswered, TypeFor(models.StatusAnswered))
	assert.Equal(t, TypeRejected, TypeFor(models.StatusRejected))
	assert.Equal(t, TypeMissed, TypeFor(models.StatusMissed))
	assert.Equal(t, TypeFailed, TypeFor(models.StatusFailed))
	assert.Equal(t, TypeInitiated, TypeFor(models.StatusInitiated))
}
