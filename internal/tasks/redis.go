package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// redisNewClient is replaced in tests.
var redisNewClient = func(opt *redis.Options) redisClient {
	return redis.NewClient(opt)
}

const redisPollTimeout = 5 * time.Second

// RedisQueue is a list based broker: producers LPUSH, workers BRPOP.
type RedisQueue struct {
	client redisClient
	key    string
}

func NewRedisQueue(ctx context.Context, addr, password string, db int, key string) (*RedisQueue, error) {
	client := redisNewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return &RedisQueue{client: client, key: key}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, t Task) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.key, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Task{}, err
		}

		res, err := q.client.BRPop(ctx, redisPollTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.ErrClosed) {
				return Task{}, ErrQueueClosed
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Task{}, ctxErr
			}
			return Task{}, fmt.Errorf("brpop %s: %w", q.key, err)
		}

		// BRPOP answers [key, value]
		if len(res) != 2 {
			return Task{}, fmt.Errorf("brpop %s: unexpected reply of %d elements", q.key, len(res))
		}
		var t Task
		if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
			return Task{}, fmt.Errorf("decode task: %w", err)
		}
		return t, nil
	}
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) PingContext(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
