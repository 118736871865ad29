package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(rpm int) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: rpm})
	rl.now = clock.now
	return rl, clock
}

func TestLimiter_Allow(t *testing.T) {
	rl, clock := newTestLimiter(2)

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"), "third request in the window is rejected")
	assert.True(t, rl.Allow("2.2.2.2"), "clients are limited independently")

	clock.advance(time.Minute)
	assert.True(t, rl.Allow("1.1.1.1"), "a new window starts after a minute")

	assert.Equal(t, int64(1), rl.GetMetrics().Rejected)
	assert.Equal(t, int64(2), rl.GetMetrics().ClientCount)
}

func TestLimiter_RejectedRequestsDoNotExtendWindow(t *testing.T) {
	rl, clock := newTestLimiter(1)

	assert.True(t, rl.Allow("k"))
	for i := 0; i < 3; i++ {
		clock.advance(15 * time.Second)
		assert.False(t, rl.Allow("k"))
	}
	clock.advance(15 * time.Second)
	assert.True(t, rl.Allow("k"))
}

func TestLimiter_Blocked(t *testing.T) {
	rl, clock := newTestLimiter(2)

	assert.False(t, rl.Blocked("k"), "unknown clients are not blocked")
	rl.Allow("k")
	assert.False(t, rl.Blocked("k"))
	assert.False(t, rl.Blocked("k"), "checking does not use up the window")
	rl.Allow("k")
	assert.True(t, rl.Blocked("k"))
	assert.Equal(t, int64(0), rl.GetMetrics().Rejected)

	clock.advance(time.Minute)
	assert.False(t, rl.Blocked("k"), "a new window unblocks the client")
}

func TestLimiter_Cleanup(t *testing.T) {
	rl, clock := newTestLimiter(10)
	rl.Allow("old")
	clock.advance(11 * time.Minute)
	rl.Allow("new")

	assert.Equal(t, 1, rl.cleanupStaleEntries())
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestLimiter_RunStopsWithContext(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1, CleanupInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rl.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(1)
	h := rl.Middleware(func(r *http.Request) string { return r.RemoteAddr }, nil, http.MethodPost)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	do := func(method string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(method, "/box/Kitchen/new", nil)
		req.RemoteAddr = "203.0.113.1:1234"
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do(http.MethodPost).Code)
	rec := do(http.MethodPost)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusNoContent, do(http.MethodGet).Code, "GET is not limited")
}
