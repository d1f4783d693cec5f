package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAllow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewLimiter(time.Minute, 3)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("hit %d should be allowed", i)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("fourth hit inside the window should be denied")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("other keys have their own budget")
	}

	now = now.Add(61 * time.Second)
	if !l.Allow("10.0.0.1") {
		t.Error("hit after the window should be allowed again")
	}
}

func TestLimiterSweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewLimiter(time.Minute, 10)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	if l.Keys() != 2 {
		t.Fatalf("Keys() = %d, want 2", l.Keys())
	}

	now = now.Add(2 * time.Minute)
	l.Sweep()
	if l.Keys() != 0 {
		t.Errorf("Keys() after sweep = %d, want 0", l.Keys())
	}
}

func TestLimiterSweepsOnAllow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewLimiter(time.Minute, 10)
	l.now = func() time.Time { return now }

	l.Allow("gone")
	now = now.Add(2 * time.Minute)
	l.Allow("fresh")

	if l.Keys() != 1 {
		t.Errorf("Keys() = %d, want only the fresh key", l.Keys())
	}
}
