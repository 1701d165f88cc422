package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrcall/internal/calls/models"
	dErrors "qrcall/pkg/domain-errors"
)

func TestParse(t *testing.T) {
	t.Run("ended event", func(t *testing.T) {
		ev, err := Parse([]byte(`{"masked_call_id":"m-1","call_id":"c-1","event_type":"call_ended","duration":42,"timestamp":"2026-01-02T03:04:05Z","participants":[{"role":"caller"}]}`))
		require.NoError(t, err)
		assert.Equal(t, KindEnded, ev.Kind)
		assert.Equal(t, "c-1", ev.CallID)
		assert.Equal(t, "m-1", ev.SessionID)
		assert.Equal(t, 42, ev.Duration)
		assert.False(t, ev.Timestamp.IsZero())
		assert.JSONEq(t, `[{"role":"caller"}]`, string(ev.Participants))

		target, ok := ev.Target()
		require.True(t, ok)
		assert.Equal(t, models.StatusEnded, target)
	})

	t.Run("initiated is a recognized no-op", func(t *testing.T) {
		ev, err := Parse([]byte(`{"call_id":"c-1","event_type":"call_initiated"}`))
		require.NoError(t, err)
		assert.Equal(t, KindIgnored, ev.Kind)
		_, ok := ev.Target()
		assert.False(t, ok)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		_, err := Parse([]byte(`{"call_id":"c-1","event_type":"call_teleported"}`))
		require.Error(t, err)
		assert.Equal(t, models.ReasonInvalidWebhook, dErrors.ReasonOf(err))
	})

	t.Run("missing call id rejected", func(t *testing.T) {
		_, err := Parse([]byte(`{"event_type":"call_ended"}`))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("malformed json rejected", func(t *testing.T) {
		_, err := Parse([]byte(`{`))
		require.Error(t, err)
		assert.Equal(t, models.ReasonInvalidWebhook, dErrors.ReasonOf(err))
	})

	t.Run("negative duration clamped", func(t *testing.T) {
		ev, err := Parse([]byte(`{"call_id":"c-1","event_type":"call_ended","duration":-5}`))
		require.NoError(t, err)
		assert.Equal(t, 0, ev.Duration)
	})
}

func TestVerify(t *testing.T) {
	body := []byte(`{"call_id":"c-1"}`)

	require.NoError(t, Verify("secret", body, Sign("secret", body)))
	require.NoError(t, Verify("", body, ""), "empty secret disables verification")

	err := Verify("secret", body, Sign("other", body))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	assert.Error(t, Verify("secret", body, "deadbeef"))
	assert.Error(t, Verify("secret", body, "sha256=not-hex"))
}
