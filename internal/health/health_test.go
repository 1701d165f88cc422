package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrcall/pkg/platform/circuit"
)

func ok(context.Context) error { return nil }

func failing(context.Context) error { return errors.New("connection refused") }

func TestChecker_Run(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	t.Run("all healthy", func(t *testing.T) {
		c := New(WithClock(func() time.Time { return fixed }))
		c.Critical("db", ok)
		c.Optional("redis", ok)

		report := c.Run(context.Background())
		assert.Equal(t, StatusOK, report.Status)
		assert.Equal(t, fixed, report.Timestamp)
		require.Len(t, report.Components, 2)
		assert.Equal(t, "db", report.Components[0].Name)
	})

	t.Run("optional failure degrades", func(t *testing.T) {
		c := New()
		c.Critical("db", ok)
		c.Optional("redis", failing)

		report := c.Run(context.Background())
		assert.Equal(t, StatusDegraded, report.Status)
		assert.Equal(t, StatusDegraded, report.Components[1].Status)
		assert.Equal(t, "connection refused", report.Components[1].Error)
	})

	t.Run("critical failure is down", func(t *testing.T) {
		c := New()
		c.Critical("db", failing)
		c.Optional("redis", failing)

		assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
	})
}

func TestChecker_ServeHTTP(t *testing.T) {
	c := New()
	c.Optional("masked_relay", failing)

	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDegraded, report.Status)

	c.Critical("db", failing)
	rec = httptest.NewRecorder()
	c.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBreakerCheck(t *testing.T) {
	b := circuit.New("masked", circuit.WithFailureThreshold(1))
	check := Breaker(b)
	assert.NoError(t, check(context.Background()))

	b.RecordFailure()
	assert.Error(t, check(context.Background()))
}

func TestConnectedCheck(t *testing.T) {
	connected := false
	check := Connected(func() bool { return connected })
	assert.ErrorIs(t, check(context.Background()), errDisconnected)
	connected = true
	assert.NoError(t, check(context.Background()))
}
