package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "usage"

// RedisReporter keeps per-day, per-model counters in a redis hash:
// requests, input_tokens and output_tokens.
type RedisReporter struct {
	client redis.Cmdable
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisReporter(client redis.Cmdable, ttl time.Duration) *RedisReporter {
	return &RedisReporter{client: client, ttl: ttl, now: time.Now}
}

// Key returns the hash holding the counters for model on day.
func Key(day time.Time, model string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, day.UTC().Format("2006-01-02"), model)
}

func (r *RedisReporter) Report(ctx context.Context, rep Report) error {
	key := Key(r.now(), rep.Model)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, "requests", 1)
		pipe.HIncrBy(ctx, key, "input_tokens", int64(rep.InputTokens))
		pipe.HIncrBy(ctx, key, "output_tokens", int64(rep.OutputTokens))
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to increment usage counters: %w", err)
	}
	return nil
}

// Counters reads back the hash for model on day.
func (r *RedisReporter) Counters(ctx context.Context, day time.Time, model string) (map[string]string, error) {
	return r.client.HGetAll(ctx, Key(day, model)).Result()
}
