package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"rescue-go-app/backend/internal/handler"
	"rescue-go-app/backend/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions 汇总路由需要的 Handler 与中间件。
type RouterOptions struct {
	AuditAdminHandler *handler.AuditAdminHandler
	AdminMW           *middleware.AdminAuthMiddleware
}

// NewRouter 构建应用的 Gin Engine，汇总 REST 接口与公共中间件配置。
func NewRouter(opts RouterOptions) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// gin 中间件配置
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  false,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
		AllowOriginFunc: func(origin string) bool {
			if origin == "" {
				return false
			}
			if strings.HasPrefix(origin, "http://localhost:") {
				return true
			}
			if strings.HasPrefix(origin, "http://127.0.0.1:") {
				return true
			}
			return false
		},
	}))
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: gin.LogFormatter(func(params gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s\" %d %s\n",
				params.ClientIP,
				params.TimeStamp.Format(time.RFC3339),
				params.Method,
				params.Path,
				params.StatusCode,
				params.Latency,
			)
		}),
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		if opts.AuditAdminHandler != nil {
			admin := api.Group("/admin/audit")
			if opts.AdminMW != nil {
				admin.Use(opts.AdminMW.Handle())
			}
			admin.GET("/stats", opts.AuditAdminHandler.Stats)
			admin.POST("/flush", opts.AuditAdminHandler.FlushNow)
			admin.POST("/cleanup", opts.AuditAdminHandler.CleanupNow)
			admin.GET("/logs", opts.AuditAdminHandler.List)
		}
	}

	return r
}
