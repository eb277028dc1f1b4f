package cachemem

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"certus/internal/domain"
)

type countingProvider struct {
	calls atomic.Int32
	key   *rsa.PublicKey
	delay time.Duration
}

func (p *countingProvider) LoadPublic(_ context.Context, identity string) (*rsa.PublicKey, error) {
	p.calls.Add(1)
	time.Sleep(p.delay)
	if identity != "acme@example.org" {
		return nil, domain.ErrKeyNotFound
	}
	return p.key, nil
}

func testKey(t *testing.T) *rsa.PublicKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &key.PublicKey
}

func TestCacheHitsAndExpiry(t *testing.T) {
	provider := &countingProvider{key: testKey(t)}
	cache := New(provider, time.Minute)
	now := time.Unix(1700000000, 0)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		key, err := cache.LoadPublic(ctx, "acme@example.org")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if key != provider.key {
			t.Fatal("unexpected key")
		}
	}
	if got := provider.calls.Load(); got != 1 {
		t.Fatalf("expected 1 backend call, got %d", got)
	}

	now = now.Add(time.Minute)
	if _, err := cache.LoadPublic(ctx, "acme@example.org"); err != nil {
		t.Fatalf("load after expiry: %v", err)
	}
	if got := provider.calls.Load(); got != 2 {
		t.Fatalf("expected refetch after expiry, got %d calls", got)
	}

	cache.Invalidate("acme@example.org")
	if _, err := cache.LoadPublic(ctx, "acme@example.org"); err != nil {
		t.Fatalf("load after invalidate: %v", err)
	}
	if got := provider.calls.Load(); got != 3 {
		t.Fatalf("expected refetch after invalidate, got %d calls", got)
	}
}

func TestCacheDoesNotCacheMisses(t *testing.T) {
	provider := &countingProvider{key: testKey(t)}
	cache := New(provider, 0)
	for i := 0; i < 2; i++ {
		if _, err := cache.LoadPublic(context.Background(), "nobody@example.org"); err != domain.ErrKeyNotFound {
			t.Fatalf("expected ErrKeyNotFound, got %v", err)
		}
	}
	if got := provider.calls.Load(); got != 2 {
		t.Fatalf("misses must reach the backend, got %d calls", got)
	}
}

func TestCacheCoalescesConcurrentLoads(t *testing.T) {
	provider := &countingProvider{key: testKey(t), delay: 50 * time.Millisecond}
	cache := New(provider, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.LoadPublic(context.Background(), "acme@example.org"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if got := provider.calls.Load(); got != 1 {
		t.Fatalf("expected a single backend call, got %d", got)
	}
}
