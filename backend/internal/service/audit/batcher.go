package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	auditdomain "rescue-go-app/backend/internal/domain/audit"
	auditinfra "rescue-go-app/backend/internal/infra/audit"
	appLogger "rescue-go-app/backend/internal/infra/logger"
	"rescue-go-app/backend/internal/infra/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultBatchSize     = 50
	DefaultFlushInterval = 30 * time.Second
)

// Sink 抽象审计记录的落库能力，由 repository 提供实现。
type Sink interface {
	InsertBatch(ctx context.Context, records []auditdomain.Record) error
	Insert(ctx context.Context, record *auditdomain.Record) error
}

// BatcherConfig 控制批量刷盘行为。拉长 FlushInterval 会降低写库压力，
// 但进程崩溃时丢失事件的窗口随之变大，这是该设计的核心权衡。
type BatcherConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	CompressWindow time.Duration
}

// Stats 暴露批处理器的运行统计，供管理端读取。
type Stats struct {
	LastFlushTime     time.Time `json:"last_flush_time"`
	LastBatchSize     int       `json:"last_batch_size"`
	LastFlushDuration float64   `json:"last_flush_duration_seconds"`
	TotalEventsLogged int64     `json:"total_events_logged"`
	QueueDepth        int       `json:"queue_depth"`
}

// Batcher 持有待刷盘队列与唯一的后台消费协程。
// 生产者只通过 Log 非阻塞入队；消费协程按时间或批量阈值触发压缩与落库。
type Batcher struct {
	cfg    BatcherConfig
	queue  auditinfra.Queue
	sink   Sink
	logger *zap.SugaredLogger

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool
	stopped atomic.Bool

	mu      sync.Mutex // 保护 stats
	stats   Stats
	flushMu sync.Mutex // 串行化后台刷盘与 ForceFlush
}

// NewBatcher 构造批处理器，配置缺省值对齐参考系统（批量 50 条 / 30 秒）。
func NewBatcher(cfg BatcherConfig, queue auditinfra.Queue, sink Sink, logger *zap.SugaredLogger) *Batcher {
	if logger == nil {
		logger = appLogger.S().With("component", "audit.batcher")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.CompressWindow <= 0 {
		cfg.CompressWindow = DefaultCompressWindow
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Batcher{
		cfg:    cfg,
		queue:  queue,
		sink:   sink,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start 启动后台消费协程，重复调用只生效一次。
func (b *Batcher) Start() {
	if b == nil || !b.started.CompareAndSwap(false, true) {
		return
	}
	b.logger.Infow("audit batcher started",
		"batch_size", b.cfg.BatchSize,
		"flush_interval", b.cfg.FlushInterval,
		"compress_window", b.cfg.CompressWindow,
	)
	go b.run()
}

// Log 非阻塞入队一条记录。入队失败由调用方（AuditFacade）决定兜底路径。
func (b *Batcher) Log(rec auditdomain.Record) error {
	if err := b.queue.Enqueue(b.ctx, rec); err != nil {
		return err
	}
	metrics.AddAuditEnqueued(1)
	return nil
}

// run 是唯一的消费循环：等待事件到达或超时，然后贪婪地攒批并刷盘。
func (b *Batcher) run() {
	defer close(b.done)
	for {
		rec, ok, err := b.queue.PopWait(b.ctx, b.cfg.FlushInterval)
		if err != nil {
			if b.ctx.Err() != nil {
				return
			}
			b.logger.Warnw("audit queue wait failed", "error", err)
			// 队列后端（如 Redis）暂时不可用时避免空转。
			select {
			case <-b.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			// 等待超时且没有事件，不刷空批。
			continue
		}
		b.flush(b.drainFrom(rec))
	}
}

// drainFrom 以 first 为批次首条，非阻塞地继续取件直到攒满 BatchSize 或队列暂空。
func (b *Batcher) drainFrom(first auditdomain.Record) []auditdomain.Record {
	batch := make([]auditdomain.Record, 0, b.cfg.BatchSize)
	batch = append(batch, first)
	for len(batch) < b.cfg.BatchSize {
		rec, ok, err := b.queue.PopNow(b.ctx)
		if err != nil || !ok {
			break
		}
		batch = append(batch, rec)
	}
	return batch
}

// flush 压缩整批后在单个事务内写入 Sink。失败时整批丢弃（至多一次语义）：
// 不重试也不回灌队列，避免持续故障的存储把消费协程拖入无限重试。
func (b *Batcher) flush(batch []auditdomain.Record) {
	if len(batch) == 0 {
		return
	}
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	start := time.Now()
	flushID := uuid.NewString()
	compressed := Compress(batch, b.cfg.CompressWindow)

	// 落库使用独立的背景上下文：Stop 只阻止下一轮循环，不打断进行中的事务。
	err := b.sink.InsertBatch(context.Background(), compressed)
	duration := time.Since(start)
	depth := b.queueDepth()
	metrics.SetAuditQueueDepth(depth)

	if err != nil {
		metrics.ObserveAuditFlush("error", duration, 0)
		b.logger.Errorw("flush audit batch failed, dropping batch",
			"flush_id", flushID,
			"batch_size", len(batch),
			"compressed", len(compressed),
			"error", err,
		)
		return
	}

	b.mu.Lock()
	b.stats.LastFlushTime = time.Now().UTC()
	b.stats.LastBatchSize = len(batch)
	b.stats.LastFlushDuration = duration.Seconds()
	b.stats.TotalEventsLogged += int64(len(compressed))
	b.mu.Unlock()

	metrics.ObserveAuditFlush("ok", duration, len(compressed))
	b.logger.Infow("flushed audit events",
		"flush_id", flushID,
		"raw", len(batch),
		"compressed", len(compressed),
		"duration", duration,
		"queue_depth", depth,
	)
}

// ForceFlush 立即排空队列，绕过定时器，供管理端的 "flush now" 使用。
// 与后台消费协程并发安全：两者从同一队列取件，刷盘段由 flushMu 串行化。
func (b *Batcher) ForceFlush(ctx context.Context) {
	if b == nil {
		return
	}
	for {
		batch := make([]auditdomain.Record, 0, b.cfg.BatchSize)
		for len(batch) < b.cfg.BatchSize {
			rec, ok, err := b.queue.PopNow(ctx)
			if err != nil || !ok {
				break
			}
			batch = append(batch, rec)
		}
		if len(batch) == 0 {
			return
		}
		b.flush(batch)
	}
}

// Stats 返回运行统计的副本，附带当前队列深度。
func (b *Batcher) Stats() Stats {
	if b == nil {
		return Stats{}
	}
	b.mu.Lock()
	snapshot := b.stats
	b.mu.Unlock()
	snapshot.QueueDepth = b.queueDepth()
	return snapshot
}

// Stop 协作式停机：通知消费循环退出并等待进行中的刷盘完成。
// Stop 之后入队的事件不保证被刷盘。
func (b *Batcher) Stop() {
	if b == nil || !b.started.Load() || !b.stopped.CompareAndSwap(false, true) {
		return
	}
	b.cancel()
	<-b.done
	b.logger.Infow("audit batcher stopped", "queue_depth", b.queueDepth())
}

func (b *Batcher) queueDepth() int {
	depth, err := b.queue.Len(context.Background())
	if err != nil {
		return 0
	}
	return depth
}
