package ratelimit

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// BanList keeps the escalating-ban state for IPs. Violations accumulate every
// time the IP limiter rejects; at threshold a timed ban is installed and the
// violation counter resets. go-cache handles expiry of both maps, so ban
// lifetime and counter decay need no sweeper of their own.
type BanList struct {
	mu         sync.Mutex
	threshold  int
	duration   time.Duration
	violations *cache.Cache
	bans       *cache.Cache
	now        Clock
}

func NewBanList(threshold int, duration time.Duration) *BanList {
	return &BanList{
		threshold:  threshold,
		duration:   duration,
		violations: cache.New(duration, duration),
		bans:       cache.New(duration, time.Minute),
		now:        time.Now,
	}
}

// WithClock replaces the clock. Tests only.
func (b *BanList) WithClock(now Clock) *BanList {
	b.now = now
	return b
}

// IsBanned compares the stored expiry against the injected clock; the cache
// TTL is only a memory backstop.
func (b *BanList) IsBanned(key string) bool {
	x, found := b.bans.Get(key)
	if !found {
		return false
	}
	if b.now().After(x.(time.Time)) {
		b.bans.Delete(key)
		return false
	}
	return true
}

// RecordViolation registers one limiter rejection and reports whether it
// tripped a new ban.
func (b *BanList) RecordViolation(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := 1
	if x, found := b.violations.Get(key); found {
		count = x.(int) + 1
	}

	if count >= b.threshold {
		b.bans.Set(key, b.now().Add(b.duration), b.duration)
		b.violations.Delete(key)
		return true
	}

	b.violations.Set(key, count, cache.DefaultExpiration)
	return false
}
