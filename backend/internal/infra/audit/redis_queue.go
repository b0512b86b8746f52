package auditinfra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	auditdomain "rescue-go-app/backend/internal/domain/audit"

	"github.com/redis/go-redis/v9"
)

const defaultQueueKey = "audit:flush:queue"

// RedisQueue 使用 Redis List 承载待刷盘的审计记录，进程重启后队列不丢失。
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue 构造 Redis 队列。
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = defaultQueueKey
	}
	return &RedisQueue{
		client: client,
		key:    key,
	}
}

// Enqueue 将记录编码后推入队列末尾。
func (q *RedisQueue) Enqueue(ctx context.Context, rec auditdomain.Record) error {
	if q == nil || q.client == nil {
		return fmt.Errorf("audit queue not initialised")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue audit record: %w", err)
	}
	return nil
}

// PopWait 阻塞等待最多 timeout 弹出一条记录。
func (q *RedisQueue) PopWait(ctx context.Context, timeout time.Duration) (auditdomain.Record, bool, error) {
	if q == nil || q.client == nil {
		return auditdomain.Record{}, false, fmt.Errorf("audit queue not initialised")
	}
	values, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return auditdomain.Record{}, false, nil
		}
		return auditdomain.Record{}, false, err
	}
	if len(values) != 2 {
		return auditdomain.Record{}, false, fmt.Errorf("unexpected blpop response: %#v", values)
	}
	return decodeRecord([]byte(values[1]))
}

// PopNow 非阻塞弹出一条记录。
func (q *RedisQueue) PopNow(ctx context.Context) (auditdomain.Record, bool, error) {
	if q == nil || q.client == nil {
		return auditdomain.Record{}, false, fmt.Errorf("audit queue not initialised")
	}
	payload, err := q.client.LPop(ctx, q.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return auditdomain.Record{}, false, nil
		}
		return auditdomain.Record{}, false, err
	}
	return decodeRecord(payload)
}

// Len 返回队列长度。
func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	if q == nil || q.client == nil {
		return 0, fmt.Errorf("audit queue not initialised")
	}
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func decodeRecord(payload []byte) (auditdomain.Record, bool, error) {
	var rec auditdomain.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return auditdomain.Record{}, false, fmt.Errorf("decode audit record: %w", err)
	}
	return rec, true, nil
}
