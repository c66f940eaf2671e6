package ratelimit

import (
	"sync"
	"time"
)

// window tracks one identity's request count inside a fixed window
// anchored at its first request.
type window struct {
	count int
	start time.Time
}

// Limiter admits requests per identity using a fixed window anchored at
// the first request, not a sliding interval: the window resets as a
// whole once its length has elapsed. Stale identities are never
// expired; the map only empties on process restart.
type Limiter struct {
	max    int
	length time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewLimiter creates a limiter allowing max requests per windowLength
// for each identity.
func NewLimiter(max int, windowLength time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		length:  windowLength,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// SetClock replaces the time source, for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// Admit reports whether a request from identity is allowed and counts
// it if so.
func (l *Limiter) Admit(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.windows[identity]
	if !ok {
		l.windows[identity] = &window{count: 1, start: now}
		return true
	}

	if now.Sub(w.start) > l.length {
		w.count = 1
		w.start = now
		return true
	}

	if w.count >= l.max {
		return false
	}

	w.count++
	return true
}

// Remaining reports how many requests identity has left in its active
// window, or the full allowance if no window is active.
func (l *Limiter) Remaining(identity string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identity]
	if !ok {
		return l.max
	}

	if l.now().Sub(w.start) > l.length {
		return l.max
	}

	remaining := l.max - w.count
	if remaining < 0 {
		return 0
	}
	return remaining
}
