package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	response "rescue-go-app/backend/internal/infra/common"
	"rescue-go-app/backend/internal/repository"
	auditsvc "rescue-go-app/backend/internal/service/audit"

	"github.com/gin-gonic/gin"
)

const (
	defaultAuditPageSize = 20
	maxAuditPageSize     = 100
)

// AuditAdminHandler 暴露审计子系统的运维接口：
// 运行统计、立即刷盘、立即清理以及审计记录的分页查询。
type AuditAdminHandler struct {
	service *auditsvc.Service
	reaper  *auditsvc.Reaper
	repo    *repository.AuditLogRepository
}

// NewAuditAdminHandler 构造审计运维 Handler。
func NewAuditAdminHandler(service *auditsvc.Service, reaper *auditsvc.Reaper, repo *repository.AuditLogRepository) *AuditAdminHandler {
	return &AuditAdminHandler{
		service: service,
		reaper:  reaper,
		repo:    repo,
	}
}

// Stats 返回批处理器的运行统计。
func (h *AuditAdminHandler) Stats(c *gin.Context) {
	if h == nil || h.service == nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrUnavailable, "audit service unavailable", nil)
		return
	}
	response.Success(c, http.StatusOK, h.service.Stats(), nil)
}

// FlushNow 立即排空待刷盘队列并返回刷新后的统计。
func (h *AuditAdminHandler) FlushNow(c *gin.Context) {
	if h == nil || h.service == nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrUnavailable, "audit service unavailable", nil)
		return
	}
	h.service.ForceFlush(c.Request.Context())
	response.Success(c, http.StatusOK, h.service.Stats(), nil)
}

// CleanupNow 立即执行一次保留期清理并返回删除行数。
func (h *AuditAdminHandler) CleanupNow(c *gin.Context) {
	if h == nil || h.reaper == nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrUnavailable, "audit reaper unavailable", nil)
		return
	}
	deleted, err := h.reaper.RunNow(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "retention cleanup failed", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": deleted}, nil)
}

// List 按时间倒序分页返回审计记录，支持按用户、救助站、动作、资源与时间范围过滤。
func (h *AuditAdminHandler) List(c *gin.Context) {
	if h == nil || h.repo == nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrUnavailable, "audit store unavailable", nil)
		return
	}

	page := parsePositiveQuery(c, "page", 1)
	pageSize := parsePositiveQuery(c, "page_size", defaultAuditPageSize)
	if pageSize > maxAuditPageSize {
		pageSize = maxAuditPageSize
	}

	filter, err := parseListFilter(c)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		return
	}

	records, total, err := h.repo.ListPage(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "list audit logs failed", nil)
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	response.Success(c, http.StatusOK, records, response.MetaPagination{
		Page:         page,
		PageSize:     pageSize,
		TotalItems:   int(total),
		TotalPages:   totalPages,
		CurrentCount: len(records),
	})
}

func parseListFilter(c *gin.Context) (repository.ListFilter, error) {
	filter := repository.ListFilter{
		Action:       strings.TrimSpace(c.Query("action")),
		ResourceType: strings.TrimSpace(c.Query("resource_type")),
	}

	var err error
	if filter.UserID, err = parseUintQuery(c, "user_id"); err != nil {
		return repository.ListFilter{}, err
	}
	if filter.RescueID, err = parseUintQuery(c, "rescue_id"); err != nil {
		return repository.ListFilter{}, err
	}
	if filter.ResourceID, err = parseUintQuery(c, "resource_id"); err != nil {
		return repository.ListFilter{}, err
	}
	if filter.From, err = parseTimeQuery(c, "from"); err != nil {
		return repository.ListFilter{}, err
	}
	if filter.To, err = parseTimeQuery(c, "to"); err != nil {
		return repository.ListFilter{}, err
	}
	return filter, nil
}

func parsePositiveQuery(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func parseUintQuery(c *gin.Context, key string) (*uint, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, &queryError{key: key}
	}
	result := uint(value)
	return &result, nil
}

func parseTimeQuery(c *gin.Context, key string) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, &queryError{key: key}
	}
	return parsed, nil
}

type queryError struct {
	key string
}

func (e *queryError) Error() string {
	return "invalid query parameter: " + e.key
}
