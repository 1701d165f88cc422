package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrcall/internal/ratelimit/models"
	"qrcall/internal/ratelimit/store/bucket"
	metadata "qrcall/pkg/platform/middleware/metadata"
)

type failingStore struct{ calls int }

func (f *failingStore) Allow(context.Context, string, int, time.Duration) (*models.Result, error) {
	f.calls++
	return nil, errors.New("redis down")
}

var testPolicies = models.Policies{
	models.ClassCall:    {Limit: 2, Window: time.Minute},
	models.ClassGeneral: {Limit: 3, Window: time.Minute},
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoBody returns the body the handler saw so tests can check it was restored.
var echoBody = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_, _ = w.Write(body)
})

func withIP(ip string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(metadata.WithClientMetadata(r.Context(), ip, "test")))
	})
}

func initiate(h http.Handler, ip, qrID string) *httptest.ResponseRecorder {
	body := `{"qrId":"` + qrID + `","callType":"audio"}`
	req := httptest.NewRequest(http.MethodPost, "/calls/initiate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	withIP(ip, h).ServeHTTP(rec, req)
	return rec
}

func TestRateLimitCallPerIPAndQR(t *testing.T) {
	m := New(bucket.NewInMemoryBucketStore(), testPolicies, discardLogger())
	h := m.RateLimitCall()(echoBody)

	first := initiate(h, "10.0.0.1", "Q1")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Contains(t, first.Body.String(), `"qrId":"Q1"`)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, first.Header().Get("X-RateLimit-Reset"))

	require.Equal(t, http.StatusOK, initiate(h, "10.0.0.1", "Q1").Code)
	limited := initiate(h, "10.0.0.1", "Q1")
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), "Too many call attempts")

	assert.Equal(t, http.StatusOK, initiate(h, "10.0.0.1", "Q2").Code)
	assert.Equal(t, http.StatusOK, initiate(h, "10.0.0.2", "Q1").Code)
}

func TestRateLimitIP(t *testing.T) {
	m := New(bucket.NewInMemoryBucketStore(), testPolicies, discardLogger())
	h := withIP("10.0.0.9", m.RateLimitIP(models.ClassGeneral)(echoBody))

	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calls/C1/status", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calls/C1/status", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"rate_limit_exceeded","message":"Too many requests from this IP, please try again later.","retry_after":60}`, rec.Body.String())
}

func TestFallbackWhenStoreFails(t *testing.T) {
	primary := &failingStore{}
	m := New(primary, testPolicies, discardLogger(), WithFallback(bucket.NewInMemoryBucketStore()))
	h := m.RateLimitCall()(echoBody)

	rec := initiate(h, "10.0.0.1", "Q1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", rec.Header().Get("X-RateLimit-Status"))
	assert.Equal(t, 1, primary.calls)

	initiate(h, "10.0.0.1", "Q1")
	assert.Equal(t, http.StatusTooManyRequests, initiate(h, "10.0.0.1", "Q1").Code)
}

func TestFailsOpenWithoutFallback(t *testing.T) {
	m := New(&failingStore{}, testPolicies, discardLogger())
	h := m.RateLimitCall()(echoBody)

	for range 5 {
		rec := initiate(h, "10.0.0.1", "Q1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestDisabled(t *testing.T) {
	m := New(bucket.NewInMemoryBucketStore(), testPolicies, discardLogger(), WithDisabled(true))
	h := m.RateLimitCall()(echoBody)
	for range 5 {
		assert.Equal(t, http.StatusOK, initiate(h, "10.0.0.1", "Q1").Code)
	}
}
