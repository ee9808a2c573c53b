package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisPollTimeout = 5 * time.Second
	redisRetryDelay  = time.Second
)

// RedisQueue stores events on a Redis list so delivery survives restarts
// and can run in a separate worker process.
type RedisQueue struct {
	*registry
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisQueue builds a queue on the given list key.
func NewRedisQueue(client *redis.Client, key string, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{
		registry: newRegistry(),
		client:   client,
		key:      key,
		logger:   logger,
	}
}

// Publish pushes the encoded event onto the list.
func (q *RedisQueue) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

// Run pops events in FIFO order and delivers them to subscribers.
func (q *RedisQueue) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		res, err := q.client.BRPop(ctx, redisPollTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			q.logger.Warn("redis queue pop failed", zap.String("key", q.key), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(redisRetryDelay):
			}
			continue
		}
		if len(res) != 2 {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(res[1]), &event); err != nil {
			q.logger.Error("discarding malformed event", zap.String("key", q.key), zap.Error(err))
			continue
		}
		q.deliver(ctx, event, q.logger)
	}
}
