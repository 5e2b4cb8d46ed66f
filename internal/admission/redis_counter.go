package admission

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPipelineClient is the minimal client surface used by RedisCounter.
type RedisPipelineClient interface {
	TxPipeline() RedisPipeliner
}

// RedisPipeliner is the subset of commands used within a MULTI/EXEC block.
type RedisPipeliner interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Exec(ctx context.Context) ([]redis.Cmder, error)
}

// RedisCounter increments and expires a key in one transaction, so no
// caller can observe a counter without a TTL.
type RedisCounter struct {
	client RedisPipelineClient
}

func NewRedisCounter(client RedisPipelineClient) *RedisCounter {
	return &RedisCounter{client: client}
}

func (r *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// ClientAdapter exposes a go-redis client through RedisPipelineClient.
type ClientAdapter struct {
	Client redis.UniversalClient
}

func (a ClientAdapter) TxPipeline() RedisPipeliner {
	return pipelineAdapter{pipe: a.Client.TxPipeline()}
}

type pipelineAdapter struct {
	pipe redis.Pipeliner
}

func (p pipelineAdapter) Incr(ctx context.Context, key string) *redis.IntCmd {
	return p.pipe.Incr(ctx, key)
}

func (p pipelineAdapter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	return p.pipe.Expire(ctx, key, expiration)
}

func (p pipelineAdapter) Exec(ctx context.Context) ([]redis.Cmder, error) {
	return p.pipe.Exec(ctx)
}
