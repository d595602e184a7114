package api

import (
	"testing"
	"time"
)

func TestRateLimiter_SweepsIdleKeys(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(60, 1)
	rl.now = func() time.Time { return clock }

	if !rl.Allow("a") {
		t.Fatalf("first call should pass")
	}
	if rl.Allow("a") {
		t.Fatalf("burst of 1 should reject the second call")
	}

	clock = clock.Add(2 * time.Second)
	if !rl.Allow("a") {
		t.Fatalf("bucket should refill at one token per second")
	}

	clock = clock.Add(2 * time.Hour)
	rl.Allow("b")
	if rl.Len() != 1 {
		t.Fatalf("idle key should be swept, have %d keys", rl.Len())
	}
}
