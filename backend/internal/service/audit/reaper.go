package audit

import (
	"context"
	"sync/atomic"
	"time"

	appLogger "rescue-go-app/backend/internal/infra/logger"
	"rescue-go-app/backend/internal/infra/metrics"

	"go.uber.org/zap"
)

const (
	DefaultRetentionDays = 90
	DefaultReapInterval  = 24 * time.Hour
)

// RetentionStore 抽象保留期清理需要的删除能力。
type RetentionStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReaperConfig 控制审计记录的保留期清理。
type ReaperConfig struct {
	Interval      time.Duration
	RetentionDays int
}

// Reaper 周期性删除超出保留期的审计记录。独立于 Batcher 运行，
// 只针对早已落库的旧记录，无需与进行中的刷盘协调。
type Reaper struct {
	cfg     ReaperConfig
	store   RetentionStore
	logger  *zap.SugaredLogger
	started atomic.Bool
}

// NewReaper 构造清理器，缺省每 24 小时清理一次、保留 90 天。
func NewReaper(cfg ReaperConfig, store RetentionStore, logger *zap.SugaredLogger) *Reaper {
	if logger == nil {
		logger = appLogger.S().With("component", "audit.reaper")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultReapInterval
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}
	return &Reaper{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
}

// Start 启动定时清理循环：立即执行一次，此后按 Interval 触发。
// 单次失败只记日志，下个周期自然重试。
func (r *Reaper) Start(ctx context.Context) {
	if r == nil || !r.started.CompareAndSwap(false, true) {
		return
	}
	r.logger.Infow("audit retention reaper started",
		"interval", r.cfg.Interval, "retention_days", r.cfg.RetentionDays)

	if _, err := r.RunNow(ctx); err != nil {
		r.logger.Warnw("audit retention cleanup failed", "error", err)
	}

	ticker := time.NewTicker(r.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.logger.Infow("audit retention reaper stopped")
				return
			case <-ticker.C:
				if _, err := r.RunNow(ctx); err != nil {
					r.logger.Warnw("audit retention cleanup failed", "error", err)
				}
			}
		}
	}()
}

// RunNow 立即执行一次清理并返回删除行数，供管理端的 "cleanup now" 使用。
// 删除在单个事务内完成，失败整体回滚。
func (r *Reaper) RunNow(ctx context.Context) (int64, error) {
	if r == nil || r.store == nil {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -r.cfg.RetentionDays)
	deleted, err := r.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.AddAuditReaped(deleted)
	r.logger.Infow("audit retention cleanup finished",
		"deleted", deleted, "cutoff", cutoff, "retention_days", r.cfg.RetentionDays)
	return deleted, nil
}
