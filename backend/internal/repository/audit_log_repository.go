package repository

import (
	"context"
	"time"

	auditdomain "rescue-go-app/backend/internal/domain/audit"

	"gorm.io/gorm"
)

// AuditLogRepository 负责审计记录的持久化操作，是审计管道的落库端。
type AuditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository 构造审计仓储，复用主数据库连接。
func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	if db == nil {
		return nil
	}
	return &AuditLogRepository{db: db}
}

// InsertBatch 在单个事务内写入一批记录，整批成功或整批回滚。
func (r *AuditLogRepository) InsertBatch(ctx context.Context, records []auditdomain.Record) error {
	if r == nil || r.db == nil || len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	})
}

// Insert 写入单条记录，供批处理不可用时的同步兜底路径使用。
func (r *AuditLogRepository) Insert(ctx context.Context, record *auditdomain.Record) error {
	if r == nil || r.db == nil || record == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// DeleteOlderThan 删除早于 cutoff 的记录并返回删除行数。
// 比较为严格小于，恰好等于 cutoff 的记录会被保留。
func (r *AuditLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.db == nil || cutoff.IsZero() {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&auditdomain.Record{})
	return res.RowsAffected, res.Error
}

// ListFilter 描述审计记录查询的可选过滤条件。
type ListFilter struct {
	UserID       *uint
	RescueID     *uint
	Action       string
	ResourceType string
	ResourceID   *uint
	From         time.Time
	To           time.Time
}

// ListPage 按时间倒序分页读取记录，返回当前页与满足条件的总数。
func (r *AuditLogRepository) ListPage(ctx context.Context, filter ListFilter, page, pageSize int) ([]auditdomain.Record, int64, error) {
	if r == nil || r.db == nil {
		return nil, 0, nil
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	query := r.db.WithContext(ctx).Model(&auditdomain.Record{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.RescueID != nil {
		query = query.Where("rescue_id = ?", *filter.RescueID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != nil {
		query = query.Where("resource_id = ?", *filter.ResourceID)
	}
	if !filter.From.IsZero() {
		query = query.Where("timestamp >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("timestamp <= ?", filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []auditdomain.Record
	if err := query.
		Order("timestamp DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
