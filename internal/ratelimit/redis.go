package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Redis is a fixed-window limiter whose counter lives in Redis, so several
// engine processes can share one exchange quota.
type Redis struct {
	client *goredis.Client
	key    string
	limit  int64
	window time.Duration

	now func() time.Time
}

// NewRedis allows limit requests per window across every process using key.
func NewRedis(client *goredis.Client, key string, limit int, window time.Duration) *Redis {
	if window <= 0 {
		window = time.Minute
	}
	return &Redis{
		client: client,
		key:    key,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Wait increments the current window's counter and sleeps until the next
// window when the quota is exhausted.
func (r *Redis) Wait(ctx context.Context) error {
	if r.limit <= 0 {
		return nil
	}
	for {
		now := r.now()
		slot := now.UnixNano() / int64(r.window)
		key := r.key + ":" + strconv.FormatInt(slot, 10)

		pipe := r.client.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, 2*r.window)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("ratelimit: incr %s: %w", key, err)
		}
		if incr.Val() <= r.limit {
			return nil
		}

		next := time.Unix(0, (slot+1)*int64(r.window))
		wait := next.Sub(now)
		slog.Debug("rate limit reached, waiting", "key", r.key, "wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
