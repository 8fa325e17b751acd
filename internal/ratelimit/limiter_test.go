package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(requests int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(requests, window, WithClock(clock.Now)), clock
}

func TestLimiter_RejectsAfterThreshold(t *testing.T) {
	l, _ := newTestLimiter(300, time.Minute)

	for i := 0; i < 300; i++ {
		ok, _ := l.Allow("1.2.3.4")
		if !ok {
			t.Fatalf("request %d rejected, expected allow", i+1)
		}
	}

	ok, retry := l.Allow("1.2.3.4")
	assert.False(t, ok, "301st request must be rejected")
	assert.InDelta(t, float64(200*time.Millisecond), float64(retry), float64(time.Millisecond))

	// Other addresses are independent.
	ok, _ = l.Allow("5.6.7.8")
	assert.True(t, ok)
}

func TestLimiter_RecoversOverTime(t *testing.T) {
	l, clock := newTestLimiter(300, time.Minute)
	for i := 0; i < 300; i++ {
		l.Allow("1.2.3.4")
	}
	ok, _ := l.Allow("1.2.3.4")
	assert.False(t, ok)

	clock.Advance(250 * time.Millisecond)
	ok, _ = l.Allow("1.2.3.4")
	assert.True(t, ok, "one token should have returned")
	ok, _ = l.Allow("1.2.3.4")
	assert.False(t, ok)

	clock.Advance(time.Minute)
	for i := 0; i < 300; i++ {
		ok, _ := l.Allow("1.2.3.4")
		if !ok {
			t.Fatalf("request %d rejected after a full window", i+1)
		}
	}
}

func TestLimiter_RejectedRequestsDoNotConsume(t *testing.T) {
	l, clock := newTestLimiter(2, time.Second)
	l.Allow("a")
	l.Allow("a")
	for i := 0; i < 10; i++ {
		ok, _ := l.Allow("a")
		assert.False(t, ok)
	}

	clock.Advance(500 * time.Millisecond)
	ok, _ := l.Allow("a")
	assert.True(t, ok)
}

func TestLimiter_Prune(t *testing.T) {
	l, clock := newTestLimiter(10, time.Minute)
	l.Allow("old")
	clock.Advance(30 * time.Second)
	l.Allow("recent")

	clock.Advance(31 * time.Second)
	assert.Equal(t, 1, l.Prune())
	assert.Equal(t, 1, l.Len())

	clock.Advance(time.Minute)
	assert.Equal(t, 1, l.Prune())
	assert.Zero(t, l.Len())
}

func TestClientAddress(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		remoteAddr string
		want       string
	}{
		{"forwarded single", "9.9.9.9", "10.0.0.1:5000", "9.9.9.9"},
		{"forwarded chain", " 9.9.9.9 , 10.0.0.2", "10.0.0.1:5000", "9.9.9.9"},
		{"connection address", "", "10.0.0.1:5000", "10.0.0.1"},
		{"ipv6 connection", "", "[::1]:5000", "::1"},
		{"no port", "", "10.0.0.1", "10.0.0.1"},
		{"nothing", "", "", Unknown},
		{"blank forwarded", " , ", "10.0.0.1:5000", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, ClientAddress(r))
		})
	}
}
