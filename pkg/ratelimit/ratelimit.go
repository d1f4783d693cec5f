// Package ratelimit implements a per-key sliding window limiter.
package ratelimit

import (
	"sync"
	"time"
)

type Limiter struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	window  time.Duration
	maxHits int
	now     func() time.Time

	lastSweep time.Time
}

func NewLimiter(window time.Duration, maxHits int) *Limiter {
	return &Limiter{
		hits:    make(map[string][]time.Time),
		window:  window,
		maxHits: maxHits,
		now:     time.Now,
	}
}

// Allow records a hit for key and reports whether it fits in the window.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) > l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}
	valid := l.prune(key, cutoff)

	if len(valid) >= l.maxHits {
		return false
	}

	l.hits[key] = append(valid, now)
	return true
}

// prune drops hits older than cutoff and forgets keys that end up empty.
func (l *Limiter) prune(key string, cutoff time.Time) []time.Time {
	hits := l.hits[key]
	valid := hits[:0]
	for _, hit := range hits {
		if hit.After(cutoff) {
			valid = append(valid, hit)
		}
	}
	if len(valid) == 0 {
		delete(l.hits, key)
		return nil
	}
	l.hits[key] = valid
	return valid
}

// Sweep prunes every key. Allow also sweeps once per window, so clients
// that stop sending are eventually forgotten.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(l.now().Add(-l.window))
}

func (l *Limiter) sweep(cutoff time.Time) {
	for key := range l.hits {
		l.prune(key, cutoff)
	}
}

// Keys reports how many clients are currently tracked.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}
