package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestRateLimiterRefills(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}
	rl := newRateLimiter(1, 2, clock.Now)

	ok, _ := rl.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = rl.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, wait := rl.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	ok, _ = rl.Allow("10.0.0.2")
	assert.True(t, ok, "buckets are per client")

	clock.t = clock.t.Add(time.Second)
	ok, _ = rl.Allow("10.0.0.1")
	assert.True(t, ok)
}

func TestRateLimiterEvictsIdleBuckets(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}
	rl := newRateLimiter(1, 1, clock.Now)
	rl.Allow("10.0.0.1")

	clock.t = clock.t.Add(11 * time.Minute)
	rl.evictIdle(10 * time.Minute)
	assert.Empty(t, rl.buckets)
}

func TestRateLimitMiddleware(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}
	handler := rateLimitWith(newRateLimiter(0.5, 1, clock.Now))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/appointments", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send().Code)
	rec := send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())
}

func TestRateLimiterCleanupStopsWithContext(t *testing.T) {
	rl := newRateLimiter(1, 1, time.Now)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		rl.cleanup(ctx, time.Millisecond, time.Minute)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup kept running after cancel")
	}
}

func TestRateLimitStopsSweepOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handler := RateLimit(ctx, 10, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	cancel()

	req := httptest.NewRequest(http.MethodGet, "/v1/dedup/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "limiter keeps serving after its sweep stops")
}
