package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientLimiter_NilAllows(t *testing.T) {
	var l *clientLimiter
	assert.True(t, l.allow("k", time.Now()))
	assert.Nil(t, newClientLimiter(0, 10))
	assert.Nil(t, newClientLimiter(1, 0))
}

func TestClientLimiter_Refills(t *testing.T) {
	l := newClientLimiter(1, 1)
	now := time.Unix(1000, 0)

	assert.True(t, l.allow("k", now))
	assert.False(t, l.allow("k", now))
	assert.True(t, l.allow("k", now.Add(time.Second)))
}

func TestClientLimiter_EvictsIdle(t *testing.T) {
	l := newClientLimiter(100, 100)
	start := time.Unix(1000, 0)

	l.allow("idle", start)
	later := start.Add(limiterIdleTTL + time.Minute)
	for i := 0; i < limiterSweepEvery; i++ {
		l.allow("busy", later)
	}
	assert.Equal(t, 1, l.size())
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:4444"
	assert.Equal(t, "203.0.113.9", clientKey(r))

	r.RemoteAddr = "not-an-addr"
	assert.Equal(t, "not-an-addr", clientKey(r))
}
