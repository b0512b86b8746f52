package unit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	auditdomain "rescue-go-app/backend/internal/domain/audit"
	"rescue-go-app/backend/internal/handler"
	auditinfra "rescue-go-app/backend/internal/infra/audit"
	"rescue-go-app/backend/internal/repository"
	auditsrv "rescue-go-app/backend/internal/service/audit"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type auditAdminEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Page         int `json:"page"`
		PageSize     int `json:"page_size"`
		TotalItems   int `json:"total_items"`
		TotalPages   int `json:"total_pages"`
		CurrentCount int `json:"current_count"`
	} `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newAuditAdminRouter(t *testing.T) (*gin.Engine, *repository.AuditLogRepository, *auditsrv.Batcher) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&auditdomain.Record{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	repo := repository.NewAuditLogRepository(db)
	batcher := auditsrv.NewBatcher(auditsrv.BatcherConfig{}, auditinfra.NewMemoryQueue(), repo, zap.NewNop().Sugar())
	svc := auditsrv.NewService(batcher, repo, zap.NewNop().Sugar())
	reaper := auditsrv.NewReaper(auditsrv.ReaperConfig{RetentionDays: 90}, repo, zap.NewNop().Sugar())
	adminHandler := handler.NewAuditAdminHandler(svc, reaper, repo)

	router := gin.New()
	group := router.Group("/api/admin/audit")
	group.GET("/stats", adminHandler.Stats)
	group.POST("/flush", adminHandler.FlushNow)
	group.POST("/cleanup", adminHandler.CleanupNow)
	group.GET("/logs", adminHandler.List)
	return router, repo, batcher
}

func doAuditAdminRequest(t *testing.T, router *gin.Engine, method, target string) (*httptest.ResponseRecorder, auditAdminEnvelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var envelope auditAdminEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, rec.Body.String())
	}
	return rec, envelope
}

func TestAuditAdminFlushPersistsQueuedEvents(t *testing.T) {
	router, repo, batcher := newAuditAdminRouter(t)

	if err := batcher.Log(auditdomain.Record{
		Timestamp:       time.Now().UTC(),
		Action:          "create",
		Success:         true,
		OccurrenceCount: 1,
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	rec, envelope := doAuditAdminRequest(t, router, http.MethodPost, "/api/admin/audit/flush")
	if rec.Code != http.StatusOK || !envelope.Success {
		t.Fatalf("flush failed: status=%d body=%s", rec.Code, rec.Body.String())
	}

	var stats auditsrv.Stats
	if err := json.Unmarshal(envelope.Data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalEventsLogged != 1 || stats.QueueDepth != 0 {
		t.Fatalf("unexpected stats after flush: %+v", stats)
	}

	if _, total, err := repo.ListPage(context.Background(), repository.ListFilter{}, 1, 10); err != nil || total != 1 {
		t.Fatalf("expected 1 persisted row, total=%d err=%v", total, err)
	}
}

func TestAuditAdminStats(t *testing.T) {
	router, _, _ := newAuditAdminRouter(t)

	rec, envelope := doAuditAdminRequest(t, router, http.MethodGet, "/api/admin/audit/stats")
	if rec.Code != http.StatusOK || !envelope.Success {
		t.Fatalf("stats failed: status=%d body=%s", rec.Code, rec.Body.String())
	}

	var stats auditsrv.Stats
	if err := json.Unmarshal(envelope.Data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalEventsLogged != 0 {
		t.Fatalf("fresh pipeline must report zero events, got %d", stats.TotalEventsLogged)
	}
}

func TestAuditAdminCleanup(t *testing.T) {
	router, repo, _ := newAuditAdminRouter(t)
	now := time.Now().UTC()

	stale := auditdomain.Record{Timestamp: now.AddDate(0, 0, -120), Action: "stale", Success: true, OccurrenceCount: 1}
	if err := repo.Insert(context.Background(), &stale); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, envelope := doAuditAdminRequest(t, router, http.MethodPost, "/api/admin/audit/cleanup")
	if rec.Code != http.StatusOK || !envelope.Success {
		t.Fatalf("cleanup failed: status=%d body=%s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Deleted != 1 {
		t.Fatalf("expected 1 deleted row, got %d", payload.Deleted)
	}
}

func TestAuditAdminListPaginationAndFilters(t *testing.T) {
	router, repo, _ := newAuditAdminRouter(t)
	base := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)

	records := make([]auditdomain.Record, 0, 3)
	for i := 0; i < 3; i++ {
		userID := uint(i%2 + 1)
		records = append(records, auditdomain.Record{
			Timestamp:       base.Add(time.Duration(i) * time.Minute),
			UserID:          &userID,
			Action:          "update",
			Success:         true,
			OccurrenceCount: 1,
		})
	}
	if err := repo.InsertBatch(context.Background(), records); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, envelope := doAuditAdminRequest(t, router, http.MethodGet, "/api/admin/audit/logs?page=1&page_size=2")
	if rec.Code != http.StatusOK || !envelope.Success {
		t.Fatalf("list failed: status=%d body=%s", rec.Code, rec.Body.String())
	}
	if envelope.Meta == nil || envelope.Meta.TotalItems != 3 || envelope.Meta.TotalPages != 2 || envelope.Meta.CurrentCount != 2 {
		t.Fatalf("unexpected pagination meta: %+v", envelope.Meta)
	}

	_, envelope = doAuditAdminRequest(t, router, http.MethodGet, "/api/admin/audit/logs?user_id=1")
	if envelope.Meta == nil || envelope.Meta.TotalItems != 2 {
		t.Fatalf("user filter failed: %+v", envelope.Meta)
	}
}

func TestAuditAdminListRejectsBadQuery(t *testing.T) {
	router, _, _ := newAuditAdminRouter(t)

	rec, envelope := doAuditAdminRequest(t, router, http.MethodGet, "/api/admin/audit/logs?user_id=abc")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid user_id, got %d", rec.Code)
	}
	if envelope.Error == nil || envelope.Error.Code != "BAD_REQUEST" {
		t.Fatalf("unexpected error payload: %s", rec.Body.String())
	}

	rec, _ = doAuditAdminRequest(t, router, http.MethodGet, "/api/admin/audit/logs?from=not-a-time")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid from, got %d", rec.Code)
	}
}
