package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimiter caps message sends per user with a fixed window counter.
// The same limiter guards the REST send route and the gateway send
// event.
type RateLimiter struct {
	client *goredis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(client *goredis.Client, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window == 0 {
		window = time.Minute
	}
	return &RateLimiter{client: client, limit: limit, window: window}
}

// AllowSend reports whether userID may send another message in the
// current window. Errors from Redis fail open: a broken limiter must
// not take messaging down with it.
func (r *RateLimiter) AllowSend(ctx context.Context, userID string) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:messages", userID)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return true, err
		}
	}
	return count <= int64(r.limit), nil
}
