package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"certus/internal/domain"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "certus:ratelimit:"

// fixedWindowScript counts a hit and starts the window on the first one. It
// replies {hits, milliseconds until the window closes}.
var fixedWindowScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {hits, redis.call("PTTL", KEYS[1])}
`)

type sharedCounter struct {
	scripts redis.Scripter
	clock   func() time.Time
}

// NewRedisLimiter shares counters across daemons through client. Keys are
// stored under "certus:ratelimit:".
func NewRedisLimiter(client redis.Scripter, now func() time.Time) (domain.RateLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if now == nil {
		now = time.Now
	}
	return &sharedCounter{scripts: client, clock: now}, nil
}

func (s *sharedCounter) Allow(ctx context.Context, key string, limit int, span time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return unlimited(limit), nil
	}
	ttl := span.Milliseconds()
	if ttl <= 0 {
		ttl = time.Second.Milliseconds()
	}
	reply, err := fixedWindowScript.Run(ctx, s.scripts, []string{redisKeyPrefix + key}, ttl).Result()
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("rate limit script: %w", err)
	}
	return replyDecision(reply, limit, s.clock())
}

// replyDecision reads the script's {hits, pttl} reply. A missing or negative
// pttl puts the reset at now.
func replyDecision(reply any, limit int, now time.Time) (domain.RateLimitDecision, error) {
	pair, ok := reply.([]any)
	if !ok || len(pair) != 2 {
		return domain.RateLimitDecision{}, fmt.Errorf("rate limit script: unexpected reply %T", reply)
	}
	hits, ok := pair[0].(int64)
	if !ok {
		return domain.RateLimitDecision{}, fmt.Errorf("rate limit script: hit count is %T", pair[0])
	}
	resetAt := now
	if pttl, _ := pair[1].(int64); pttl > 0 {
		resetAt = now.Add(time.Duration(pttl) * time.Millisecond)
	}
	return decide(hits, limit, resetAt), nil
}
