// Package uid reserves sequential certificate UIDs per institute so two
// concurrent issuers never pick the same value.
package uid

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"certus/internal/domain"

	"github.com/redis/go-redis/v9"
)

type Memory struct {
	mu   sync.Mutex
	next map[string]int64
}

var _ domain.UIDAllocator = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{next: make(map[string]int64)}
}

// Seed makes the next reservation for institute return start+1.
func (m *Memory) Seed(institute string, start int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next[institute] = start
}

// Raise moves institute's counter up to floor. A counter already past floor
// is left alone.
func (m *Memory) Raise(_ context.Context, institute string, floor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next[institute] < floor {
		m.next[institute] = floor
	}
	return nil
}

func (m *Memory) Reserve(_ context.Context, institute string) (string, error) {
	if !domain.ValidIdentity(institute) {
		return "", fmt.Errorf("%w: invalid institute identity %q", domain.ErrInvalidInput, institute)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next[institute]++
	return strconv.FormatInt(m.next[institute], 10), nil
}

// Redis uses INCR on certus:uid:<institute>, which is atomic across every
// daemon sharing the server.
type Redis struct {
	client redis.Cmdable
}

var _ domain.UIDAllocator = (*Redis)(nil)

func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client}
}

func Key(institute string) string {
	return "certus:uid:" + institute
}

func (r *Redis) Reserve(ctx context.Context, institute string) (string, error) {
	if !domain.ValidIdentity(institute) {
		return "", fmt.Errorf("%w: invalid institute identity %q", domain.ErrInvalidInput, institute)
	}
	n, err := r.client.Incr(ctx, Key(institute)).Result()
	if err != nil {
		return "", fmt.Errorf("reserve uid: %w", err)
	}
	return strconv.FormatInt(n, 10), nil
}

var raiseScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local floor = tonumber(ARGV[1])
if current < floor then
	redis.call("SET", KEYS[1], floor)
	return floor
end
return current
`)

// Raise moves the shared counter up to floor without ever lowering it.
func (r *Redis) Raise(ctx context.Context, institute string, floor int64) error {
	if err := raiseScript.Run(ctx, r.client, []string{Key(institute)}, floor).Err(); err != nil {
		return fmt.Errorf("raise uid counter: %w", err)
	}
	return nil
}

// Raiser is an allocator whose counters can be moved past UIDs issued
// before it started.
type Raiser interface {
	Raise(ctx context.Context, institute string, floor int64) error
}

// SeedFromLedger raises every institute's counter to the highest numeric UID
// already recorded on ledger, so a restarted allocator does not hand out a
// UID that is in use. Non-numeric UIDs are ignored.
func SeedFromLedger(ctx context.Context, alloc Raiser, ledger domain.Ledger) (int, error) {
	ids, err := ledger.ListCertificateIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list certificates: %w", err)
	}
	highest := make(map[string]int64)
	for _, id := range ids {
		rec, err := ledger.GetCertificate(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("load certificate %s: %w", id, err)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(rec.UID), 10, 64)
		if err != nil || n <= 0 {
			continue
		}
		if n > highest[rec.InstituteEmail] {
			highest[rec.InstituteEmail] = n
		}
	}
	for institute, n := range highest {
		if err := alloc.Raise(ctx, institute, n); err != nil {
			return 0, err
		}
	}
	return len(highest), nil
}
