// Package cachemem keeps recently loaded institute public keys in memory.
package cachemem

import (
	"context"
	"crypto/rsa"
	"sync"
	"time"

	"certus/internal/usecase"

	"golang.org/x/sync/singleflight"
)

// PublicKeys caches successful lookups from an underlying provider. Misses
// are not cached, so a key imported later is picked up on the next call.
type PublicKeys struct {
	next  usecase.PublicKeyProvider
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     *rsa.PublicKey
	expiresAt time.Time
	hasExpiry bool
}

var _ usecase.PublicKeyProvider = (*PublicKeys)(nil)

// New wraps next. A ttl of zero keeps entries until Invalidate.
func New(next usecase.PublicKeyProvider, ttl time.Duration) *PublicKeys {
	return &PublicKeys{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *PublicKeys) LoadPublic(ctx context.Context, identity string) (*rsa.PublicKey, error) {
	if key, ok := c.get(identity); ok {
		return key, nil
	}
	v, err, _ := c.group.Do(identity, func() (any, error) {
		key, err := c.next.LoadPublic(ctx, identity)
		if err != nil {
			return nil, err
		}
		c.put(identity, key)
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*rsa.PublicKey), nil
}

func (c *PublicKeys) Invalidate(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, identity)
}

func (c *PublicKeys) get(identity string) (*rsa.PublicKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[identity]
	if !ok {
		return nil, false
	}
	if entry.hasExpiry && !c.now().Before(entry.expiresAt) {
		delete(c.entries, identity)
		return nil, false
	}
	return entry.value, true
}

func (c *PublicKeys) put(identity string, key *rsa.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{value: key}
	if c.ttl > 0 {
		entry.hasExpiry = true
		entry.expiresAt = c.now().Add(c.ttl)
	}
	c.entries[identity] = entry
}
