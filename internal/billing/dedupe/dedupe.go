// Package dedupe claims webhook event ids in Redis so that provider retries
// arriving on different replicas are short-circuited before touching Postgres.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "streak:webhook:payment:"

// Commands is the subset of the go-redis client used here.
type Commands interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Redis struct {
	client Commands
	ttl    time.Duration
}

func NewRedis(client Commands, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Redis{client: client, ttl: ttl}
}

// Claim reports whether this caller is the first to see eventID within the TTL.
func (r *Redis) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, keyPrefix+eventID, time.Now().Unix(), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim webhook event: %w", err)
	}
	return ok, nil
}

// Release drops a claim so a retry of a failed event can be processed.
func (r *Redis) Release(ctx context.Context, eventID string) error {
	if err := r.client.Del(ctx, keyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("release webhook event: %w", err)
	}
	return nil
}
