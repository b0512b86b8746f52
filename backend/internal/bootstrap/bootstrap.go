/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-18 11:32:18
 * @FilePath: \rescue-go-app\backend\internal\bootstrap\bootstrap.go
 * @LastEditTime: 2025-10-18 11:32:24
 */
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"rescue-go-app/backend/internal/app"
	auditdomain "rescue-go-app/backend/internal/domain/audit"
	"rescue-go-app/backend/internal/handler"
	auditinfra "rescue-go-app/backend/internal/infra/audit"
	"rescue-go-app/backend/internal/middleware"
	"rescue-go-app/backend/internal/repository"
	"rescue-go-app/backend/internal/server"
	auditsvc "rescue-go-app/backend/internal/service/audit"

	"go.uber.org/zap"
)

// RuntimeConfig 汇总启动期从环境读取的运行参数。
type RuntimeConfig struct {
	Port           string
	AdminJWTSecret string

	AuditBatchSize      int
	AuditFlushInterval  time.Duration
	AuditCompressWindow time.Duration
	AuditRetentionDays  int
	AuditReapInterval   time.Duration
	AuditQueueBackend   string
	AuditQueueKey       string
}

// Application 是装配完成的应用实例，持有显式的审计管道生命周期。
type Application struct {
	Resources *app.Resources
	Audit     *auditsvc.Service
	Batcher   *auditsvc.Batcher
	Reaper    *auditsvc.Reaper
	Router    http.Handler
}

// LoadRuntimeConfig 从环境变量读取运行配置并填充默认值。
func LoadRuntimeConfig() RuntimeConfig {
	cfg := RuntimeConfig{
		Port:                strings.TrimSpace(os.Getenv("PORT")),
		AdminJWTSecret:      strings.TrimSpace(os.Getenv("ADMIN_JWT_SECRET")),
		AuditBatchSize:      intEnv("AUDIT_BATCH_SIZE", auditsvc.DefaultBatchSize),
		AuditFlushInterval:  secondsEnv("AUDIT_FLUSH_INTERVAL_SECONDS", auditsvc.DefaultFlushInterval),
		AuditCompressWindow: secondsEnv("AUDIT_COMPRESS_WINDOW_SECONDS", auditsvc.DefaultCompressWindow),
		AuditRetentionDays:  intEnv("AUDIT_RETENTION_DAYS", auditsvc.DefaultRetentionDays),
		AuditReapInterval:   secondsEnv("AUDIT_CLEANUP_INTERVAL_SECONDS", auditsvc.DefaultReapInterval),
		AuditQueueBackend:   strings.ToLower(strings.TrimSpace(os.Getenv("AUDIT_QUEUE_BACKEND"))),
		AuditQueueKey:       strings.TrimSpace(os.Getenv("AUDIT_QUEUE_KEY")),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	return cfg
}

// BuildApplication 装配审计管道与 HTTP 路由，并启动后台组件。
// 返回的 Application 由调用方负责在退出前执行 Shutdown。
func BuildApplication(ctx context.Context, logger *zap.SugaredLogger, resources *app.Resources, cfg RuntimeConfig) (*Application, error) {
	db := resources.DBConn()
	if db == nil {
		return nil, fmt.Errorf("database connection not initialised")
	}

	if err := db.AutoMigrate(&auditdomain.Record{}); err != nil {
		return nil, fmt.Errorf("migrate audit_logs: %w", err)
	}

	auditRepo := repository.NewAuditLogRepository(db)

	queue, err := buildAuditQueue(resources, cfg, logger)
	if err != nil {
		return nil, err
	}

	batcher := auditsvc.NewBatcher(auditsvc.BatcherConfig{
		BatchSize:      cfg.AuditBatchSize,
		FlushInterval:  cfg.AuditFlushInterval,
		CompressWindow: cfg.AuditCompressWindow,
	}, queue, auditRepo, logger.With("component", "audit.batcher"))
	batcher.Start()

	reaper := auditsvc.NewReaper(auditsvc.ReaperConfig{
		Interval:      cfg.AuditReapInterval,
		RetentionDays: cfg.AuditRetentionDays,
	}, auditRepo, logger.With("component", "audit.reaper"))
	reaper.Start(ctx)

	auditService := auditsvc.NewService(batcher, auditRepo, logger.With("component", "service.audit"))

	var adminMW *middleware.AdminAuthMiddleware
	if cfg.AdminJWTSecret != "" {
		adminMW = middleware.NewAdminAuthMiddleware(cfg.AdminJWTSecret)
	} else {
		logger.Warnw("ADMIN_JWT_SECRET not set; audit admin endpoints are unauthenticated")
	}

	auditHandler := handler.NewAuditAdminHandler(auditService, reaper, auditRepo)
	router := server.NewRouter(server.RouterOptions{
		AuditAdminHandler: auditHandler,
		AdminMW:           adminMW,
	})

	return &Application{
		Resources: resources,
		Audit:     auditService,
		Batcher:   batcher,
		Reaper:    reaper,
		Router:    router,
	}, nil
}

// Shutdown 停止批处理器并排空残留队列，保证已入队事件尽量落库。
func (a *Application) Shutdown(ctx context.Context) {
	if a == nil {
		return
	}
	if a.Batcher != nil {
		a.Batcher.Stop()
	}
	if a.Audit != nil {
		a.Audit.ForceFlush(ctx)
	}
}

// buildAuditQueue 根据配置选择队列后端，默认为进程内内存队列。
func buildAuditQueue(resources *app.Resources, cfg RuntimeConfig, logger *zap.SugaredLogger) (auditinfra.Queue, error) {
	if cfg.AuditQueueBackend == "redis" {
		if resources.Redis == nil {
			return nil, fmt.Errorf("audit queue backend is redis but redis not configured")
		}
		logger.Infow("using redis-backed audit queue", "key", cfg.AuditQueueKey)
		return auditinfra.NewRedisQueue(resources.Redis, cfg.AuditQueueKey), nil
	}
	return auditinfra.NewMemoryQueue(), nil
}

func intEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func secondsEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}
