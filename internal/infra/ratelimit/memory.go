package ratelimit

import (
	"context"
	"sync"
	"time"

	"certus/internal/domain"
)

const defaultMaxKeys = 10000

type MemoryLimiterConfig struct {
	Now func() time.Time
	// MaxKeys bounds how many keys are tracked at once. Zero means 10000.
	MaxKeys int
}

// window is one key's counter. Hits past the limit are not recorded.
type window struct {
	hits    int64
	closeAt time.Time
}

type windowCounter struct {
	clock    func() time.Time
	capacity int

	mu      sync.Mutex
	windows map[string]window
}

func NewMemoryLimiter(cfg MemoryLimiterConfig) domain.RateLimiter {
	c := &windowCounter{clock: cfg.Now, capacity: cfg.MaxKeys}
	if c.clock == nil {
		c.clock = time.Now
	}
	if c.capacity <= 0 {
		c.capacity = defaultMaxKeys
	}
	c.windows = make(map[string]window, 64)
	return c
}

func (c *windowCounter) Allow(_ context.Context, key string, limit int, span time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return unlimited(limit), nil
	}
	at := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()
	w, live := c.windows[key]
	if live && !at.Before(w.closeAt) {
		live = false
	}
	if !live {
		if err := c.makeRoom(key, at); err != nil {
			return domain.RateLimitDecision{}, err
		}
		w = window{closeAt: at.Add(span)}
	}
	if w.hits < int64(limit) {
		w.hits++
		c.windows[key] = w
		return decide(w.hits, limit, w.closeAt), nil
	}
	return decide(w.hits+1, limit, w.closeAt), nil
}

// makeRoom frees key's expired slot and, when the table is full, drops every
// other expired window before giving up.
func (c *windowCounter) makeRoom(key string, at time.Time) error {
	delete(c.windows, key)
	if len(c.windows) < c.capacity {
		return nil
	}
	for k, w := range c.windows {
		if !at.Before(w.closeAt) {
			delete(c.windows, k)
		}
	}
	if len(c.windows) >= c.capacity {
		return ErrCapacityExceeded
	}
	return nil
}
