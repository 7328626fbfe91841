package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/flocknet/flockmind/internal/cache"
)

// queueKey is the redis list holding serialized tasks for out-of-process
// delivery workers.
const queueKey = cache.Namespace + "notify:queue"

// ErrQueueEmpty is returned by Pop when no task arrives within the
// timeout.
var ErrQueueEmpty = errors.New("notify queue empty")

// RedisQueue moves tasks between the request process and a separate
// delivery worker. Pushes are fire-and-forget to match the in-process
// channel semantics.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a new redis-backed task queue
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Push appends one task to the queue.
func (q *RedisQueue) Push(ctx context.Context, task Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, queueKey, raw).Err()
}

// Pop blocks up to timeout for the next task.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*Task, error) {
	res, err := q.client.BRPop(ctx, timeout, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, err
	}
	// BRPop returns [key, value].
	if len(res) < 2 {
		return nil, ErrQueueEmpty
	}
	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Len reports the number of queued tasks.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, queueKey).Result()
}
