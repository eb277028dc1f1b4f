// Package ratelimit counts requests per key in fixed windows, either in this
// process or in redis so several daemons share one budget.
package ratelimit

import (
	"errors"
	"time"

	"certus/internal/domain"
)

// ErrCapacityExceeded is returned by the in-process limiter when every slot
// holds a live window and a new key arrives.
var ErrCapacityExceeded = errors.New("rate limiter capacity exceeded")

// unlimited is the decision for a non-positive limit, which disables limiting.
func unlimited(limit int) domain.RateLimitDecision {
	return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}
}

// decide turns the number of hits counted in the current window, this one
// included, into a decision.
func decide(hits int64, limit int, resetAt time.Time) domain.RateLimitDecision {
	left := int64(limit) - hits
	if left < 0 {
		left = 0
	}
	return domain.RateLimitDecision{
		Allowed:   hits <= int64(limit),
		Limit:     limit,
		Remaining: int(left),
		ResetAt:   resetAt,
	}
}
