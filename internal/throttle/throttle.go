package throttle

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Sliding window over a Redis sorted set: drop entries older than the
// window, deny when the remaining count has reached the limit, otherwise
// record this request.
var slidingWindowScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], 0, ARGV[1])
local count = redis.call("ZCARD", KEYS[1])
if count >= tonumber(ARGV[2]) then
  return 0
end
redis.call("ZADD", KEYS[1], ARGV[3], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return 1
`)

// SlidingWindowLimiter limits bursts per key over a short sliding window.
//
// Unlike the quota ledger this is a UX affordance, not a security boundary:
// on Redis failure it fails open and logs, so a cache outage never blocks
// the chat.
type SlidingWindowLimiter struct {
	limit  int
	window time.Duration

	redisClient *redis.Client
	redisPrefix string
}

// NewSlidingWindowLimiter creates a Redis-backed limiter.
func NewSlidingWindowLimiter(addr, password, prefix string, limit int, window time.Duration) (*SlidingWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("throttle requires positive limit and window")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("throttle redis addr is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "aichat:throttle"
	}
	return &SlidingWindowLimiter{
		limit:  limit,
		window: window,
		redisClient: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		redisPrefix: prefix,
	}, nil
}

// Allow reports whether the key may proceed and records the request when it
// may. Fails open on Redis errors.
func (l *SlidingWindowLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	now := time.Now().UTC()
	windowMs := l.window.Milliseconds()
	cutoff := now.UnixMilli() - windowMs

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := slidingWindowScript.Run(ctx, l.redisClient,
		[]string{l.redisPrefix + ":" + key},
		strconv.FormatInt(cutoff, 10),
		strconv.Itoa(l.limit),
		strconv.FormatInt(now.UnixMilli(), 10),
		uuid.NewString(),
		strconv.FormatInt(windowMs, 10),
	).Int64()
	if err != nil {
		slog.Warn("throttle check failed, allowing request", "err", err)
		return true
	}
	return res == 1
}
