package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newRelayBreaker(clock *fakeClock) *Breaker {
	return New("masked_relay",
		WithFailureThreshold(3),
		WithSuccessThreshold(2),
		WithCooldown(10*time.Second),
		WithClock(clock.Now),
	)
}

func TestNewDefaults(t *testing.T) {
	b := New("kafka")
	assert.Equal(t, "kafka", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
	assert.True(t, b.Allow())
}

func TestOpensOnConsecutiveFailures(t *testing.T) {
	b := newRelayBreaker(&fakeClock{now: time.Now()})

	for range 2 {
		fallback, change := b.RecordFailure()
		assert.False(t, fallback)
		assert.False(t, change.Opened)
	}

	fallback, change := b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())
	assert.Equal(t, "open", b.State().String())

	fallback, change = b.RecordFailure()
	assert.True(t, fallback)
	assert.False(t, change.Opened, "already open")
}

func TestSuccessInterruptsFailureRun(t *testing.T) {
	b := newRelayBreaker(&fakeClock{now: time.Now()})

	b.RecordFailure()
	b.RecordFailure()
	primary, _ := b.RecordSuccess()
	assert.True(t, primary)

	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen(), "count restarted after the success")
}

func TestProbeAndRecovery(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	b := newRelayBreaker(clock)
	for range 3 {
		b.RecordFailure()
	}
	require.True(t, b.IsOpen())
	assert.False(t, b.Allow(), "cooling down")

	clock.now = clock.now.Add(11 * time.Second)
	assert.True(t, b.Allow(), "one trial call after cooldown")
	assert.False(t, b.Allow(), "only one trial call per cooldown")

	primary, change := b.RecordSuccess()
	assert.False(t, primary)
	assert.False(t, change.Closed)

	_, _ = b.RecordFailure()
	primary, _ = b.RecordSuccess()
	assert.False(t, primary, "a failure resets the success run")

	primary, change = b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}
