package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimiterOptions throttles job starts for one worker attachment: at most
// Max starts per rolling Duration window, shared globally across all of
// the attachment's concurrent slots (and across processes attached to
// the same queue).
type LimiterOptions struct {
	Max      int
	Duration time.Duration
}

// windowLimiter is a rolling-window rate limiter kept in Redis so that
// every process attached to a queue draws from the same budget.
type windowLimiter struct {
	rdb      *redis.Client
	key      string
	max      int
	duration time.Duration
}

func newWindowLimiter(rdb *redis.Client, queueName string, opts LimiterOptions) *windowLimiter {
	return &windowLimiter{
		rdb:      rdb,
		key:      "q:" + queueName + ":limiter",
		max:      opts.Max,
		duration: opts.Duration,
	}
}

// limiterScript admits a start if fewer than max are recorded within the
// rolling window, recording the admission as a ZSET member scored by now.
//
// KEYS: limiter
// ARGV: nowMs, windowMs, max, member
// Returns 1 when admitted, 0 when the window is full.
var limiterScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
if redis.call('ZCARD', KEYS[1]) < tonumber(ARGV[3]) then
  redis.call('ZADD', KEYS[1], now, ARGV[4])
  redis.call('PEXPIRE', KEYS[1], window)
  return 1
end
return 0
`)

// allow consumes one slot from the window if available.
func (l *windowLimiter) allow(ctx context.Context, member string) (bool, error) {
	now := time.Now().UnixMilli()
	admitted, err := limiterScript.Run(ctx, l.rdb,
		[]string{l.key},
		now, l.duration.Milliseconds(), l.max, member,
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to consult rate limiter: %w", err)
	}
	return admitted == 1, nil
}
