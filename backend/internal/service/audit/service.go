package audit

import (
	"context"
	"time"

	auditdomain "rescue-go-app/backend/internal/domain/audit"
	appLogger "rescue-go-app/backend/internal/infra/logger"
	"rescue-go-app/backend/internal/infra/metrics"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Entry 是业务侧提交审计事件时使用的入参结构。
// 指针与空字符串表示字段缺省；Success 建议通过 NewEntry 获得默认的 true。
type Entry struct {
	UserID        *uint
	RescueID      *uint
	Action        string
	ResourceType  string
	ResourceID    *uint
	Details       map[string]any
	Success       bool
	ErrorMessage  string
	ExecutionTime *float64
	IPAddress     string
	UserAgent     string
}

// NewEntry 返回指定动作、默认成功的审计条目。
func NewEntry(action string) Entry {
	return Entry{Action: action, Success: true}
}

// Service 是审计子系统的对外门面。Log 是保证不抛错的边界：
// 业务代码在任意路径上调用它，审计系统不可用时绝不拖垮原始请求。
// 实例由 bootstrap 显式构造并注入，不存在包级单例。
type Service struct {
	batcher *Batcher
	sink    Sink
	logger  *zap.SugaredLogger
}

// NewService 构造审计门面。batcher 可为 nil，此时全部走同步落库。
func NewService(batcher *Batcher, sink Sink, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = appLogger.S().With("component", "service.audit")
	}
	return &Service{
		batcher: batcher,
		sink:    sink,
		logger:  logger,
	}
}

// Log 记录一条审计事件。失败兜底链依次为：
// 异步入队 -> 携带调用方上下文的同步写 -> 背景上下文的同步写。
// 每一层失败都记日志并进入下一层，任何错误都不会返回给调用方。
func (s *Service) Log(ctx context.Context, entry Entry) {
	if s == nil {
		return
	}
	rec := entry.toRecord(time.Now().UTC())

	if s.batcher != nil {
		err := s.batcher.Log(rec)
		if err == nil {
			return
		}
		s.logger.Warnw("audit enqueue failed, falling back to sync write",
			"action", rec.Action, "error", err)
		metrics.AddAuditFallbackWrite("enqueue_failed")
	} else {
		metrics.AddAuditFallbackWrite("batcher_absent")
	}

	if s.sink == nil {
		s.logger.Errorw("audit event lost: no sink configured", "action", rec.Action)
		metrics.AddAuditDropped()
		return
	}

	if ctx != nil {
		err := s.sink.Insert(ctx, &rec)
		if err == nil {
			return
		}
		s.logger.Warnw("audit sync write failed, retrying without caller context",
			"action", rec.Action, "error", err)
	}

	if err := s.sink.Insert(context.Background(), &rec); err != nil {
		s.logger.Errorw("audit event lost: all fallbacks exhausted",
			"action", rec.Action, "error", err)
		metrics.AddAuditDropped()
	}
}

// ForceFlush 立即排空待刷盘队列。
func (s *Service) ForceFlush(ctx context.Context) {
	if s == nil || s.batcher == nil {
		return
	}
	s.batcher.ForceFlush(ctx)
}

// Stats 返回批处理器运行统计；未配置批处理器时返回零值。
func (s *Service) Stats() Stats {
	if s == nil || s.batcher == nil {
		return Stats{}
	}
	return s.batcher.Stats()
}

// toRecord 将入参转换为入库记录，填充时间戳与默认计数。
func (e Entry) toRecord(now time.Time) auditdomain.Record {
	rec := auditdomain.Record{
		Timestamp:       now,
		UserID:          e.UserID,
		RescueID:        e.RescueID,
		Action:          e.Action,
		ResourceID:      e.ResourceID,
		Success:         e.Success,
		ExecutionTime:   e.ExecutionTime,
		OccurrenceCount: 1,
	}
	if e.ResourceType != "" {
		v := e.ResourceType
		rec.ResourceType = &v
	}
	if e.ErrorMessage != "" {
		v := e.ErrorMessage
		rec.ErrorMessage = &v
	}
	if e.IPAddress != "" {
		v := e.IPAddress
		rec.IPAddress = &v
	}
	if e.UserAgent != "" {
		v := e.UserAgent
		rec.UserAgent = &v
	}
	if len(e.Details) > 0 {
		rec.Details = datatypes.JSONMap(e.Details)
	}
	return rec
}
