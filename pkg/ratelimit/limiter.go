package ratelimit

import (
	"sync"
	"time"
)

// clientState tracks request timestamps for one client within the current
// window.
type clientState struct {
	windowStart time.Time
	count       int
}

// KeyedLimiter is a fixed-window request limiter keyed by client identity.
// State is held explicitly in the limiter and passed into handlers rather
// than living as ambient module state; expired entries are swept lazily on
// each check so no background goroutine is needed.
type KeyedLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*clientState
}

// NewKeyedLimiter allows limit requests per key per window.
func NewKeyedLimiter(limit int, window time.Duration) *KeyedLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &KeyedLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*clientState),
	}
}

// Allow reports whether the client identified by key may make another
// request in the current window.
func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	st := l.clients[key]
	if st == nil || now.Sub(st.windowStart) >= l.window {
		l.clients[key] = &clientState{windowStart: now, count: 1}
		return true
	}
	if st.count >= l.limit {
		return false
	}
	st.count++
	return true
}

// Size returns the number of tracked clients. Useful in tests and status
// reporting.
func (l *KeyedLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// sweep drops entries whose window has passed. Caller holds the lock.
func (l *KeyedLimiter) sweep(now time.Time) {
	for key, st := range l.clients {
		if now.Sub(st.windowStart) >= l.window {
			delete(l.clients, key)
		}
	}
}
