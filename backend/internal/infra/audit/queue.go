package auditinfra

import (
	"context"
	"sync"
	"time"

	auditdomain "rescue-go-app/backend/internal/domain/audit"
)

// Queue 抽象审计事件的待刷盘队列：多生产者非阻塞入队，单消费者带超时出队。
// 进程内默认使用 MemoryQueue，需要跨重启保留队列时可切换 RedisQueue。
type Queue interface {
	Enqueue(ctx context.Context, rec auditdomain.Record) error
	// PopWait 最多等待 timeout 取出一条记录；超时返回 ok=false。
	PopWait(ctx context.Context, timeout time.Duration) (auditdomain.Record, bool, error)
	// PopNow 立即尝试取出一条记录，队列为空时返回 ok=false。
	PopNow(ctx context.Context) (auditdomain.Record, bool, error)
	Len(ctx context.Context) (int, error)
}

// MemoryQueue 是进程内的无界队列，容量只受内存限制，入队永不阻塞。
type MemoryQueue struct {
	mu     sync.Mutex
	items  []auditdomain.Record
	notify chan struct{}
}

// NewMemoryQueue 构造内存队列。
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		// 容量为 1 的信号通道足够唤醒单消费者，多余的信号直接丢弃。
		notify: make(chan struct{}, 1),
	}
}

// Enqueue 追加一条记录并唤醒消费者，永不阻塞。
func (q *MemoryQueue) Enqueue(_ context.Context, rec auditdomain.Record) error {
	q.mu.Lock()
	q.items = append(q.items, rec)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// PopNow 立即取出队首记录。
func (q *MemoryQueue) PopNow(context.Context) (auditdomain.Record, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return auditdomain.Record{}, false, nil
	}
	rec := q.items[0]
	copy(q.items, q.items[1:])
	q.items = q.items[:len(q.items)-1]
	return rec, true, nil
}

// PopWait 在 timeout 内等待记录到达；上下文取消时返回 ctx.Err()。
func (q *MemoryQueue) PopWait(ctx context.Context, timeout time.Duration) (auditdomain.Record, bool, error) {
	if rec, ok, _ := q.PopNow(ctx); ok {
		return rec, true, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return auditdomain.Record{}, false, ctx.Err()
		case <-timer.C:
			return q.PopNow(ctx)
		case <-q.notify:
			// 信号可能先于本轮等待被消费，取不到就继续等。
			if rec, ok, _ := q.PopNow(ctx); ok {
				return rec, true, nil
			}
		}
	}
}

// Len 返回当前队列深度。
func (q *MemoryQueue) Len(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}
