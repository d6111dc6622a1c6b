package ratelimit

import (
	"sync"
	"time"
)

// Clock is injected so window behavior is testable without sleeping.
type Clock func() time.Time

// Limiter is a per-key sliding-window counter. An attempt is admitted when
// fewer than cap events happened within the trailing window; a rejected
// attempt is NOT recorded as an event, so a flooder does not extend its own
// window.
type Limiter struct {
	mu     sync.Mutex
	cap    int
	window time.Duration
	events map[string][]time.Time
	now    Clock
}

func NewLimiter(cap int, window time.Duration) *Limiter {
	return &Limiter{
		cap:    cap,
		window: window,
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// WithClock replaces the clock. Tests only.
func (l *Limiter) WithClock(now Clock) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) Admit(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.events[key][:0]
	for _, t := range l.events[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.cap {
		l.events[key] = recent
		return false
	}

	l.events[key] = append(recent, now)
	return true
}

// Sweep drops keys whose window is fully expired. Entries with no live events
// are removed entirely rather than kept with an empty list.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for key, times := range l.events {
		live := false
		for _, t := range times {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.events, key)
		}
	}
}

// Len reports the number of tracked keys. Used by tests and the sweeper log.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
