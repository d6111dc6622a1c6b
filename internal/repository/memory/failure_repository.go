package memory

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// FailureRepository tracks consecutive AI-invocation failures per session.
// State is process-local and expires on its own; a restart simply starts the
// count over, which is acceptable for this counter.
type FailureRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewFailureRepository() *FailureRepository {
	// Counters idle for an hour are dropped; purge sweeps every 10 minutes.
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &FailureRepository{
		cache: c,
	}
}

// Increment bumps the counter for a session and returns the new value.
func (r *FailureRepository) Increment(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 1
	if x, found := r.cache.Get(sessionID); found {
		count = x.(int) + 1
	}
	r.cache.Set(sessionID, count, cache.DefaultExpiration)
	return count
}

func (r *FailureRepository) Get(sessionID string) int {
	if x, found := r.cache.Get(sessionID); found {
		return x.(int)
	}
	return 0
}

// Reset clears the counter. Called on any successful model reply and on
// escalation.
func (r *FailureRepository) Reset(sessionID string) {
	r.cache.Delete(sessionID)
}
