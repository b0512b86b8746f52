/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-18 11:45:02
 * @FilePath: \rescue-go-app\backend\cmd\server\main.go
 * @LastEditTime: 2025-10-18 11:45:08
 */
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rescue-go-app/backend/internal/app"
	"rescue-go-app/backend/internal/bootstrap"
	appLogger "rescue-go-app/backend/internal/infra/logger"
	"rescue-go-app/backend/internal/infra/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zlog, err := appLogger.Init()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer appLogger.Sync()
	logger := zlog.Sugar()

	metrics.MustRegister()

	resources, err := app.Bootstrap(ctx)
	if err != nil {
		logger.Fatalw("bootstrap failed", "error", err)
	}
	defer func() {
		if err := resources.Close(); err != nil {
			logger.Warnw("resource cleanup error", "error", err)
		}
	}()

	cfg := bootstrap.LoadRuntimeConfig()
	application, err := bootstrap.BuildApplication(ctx, logger, resources, cfg)
	if err != nil {
		logger.Fatalw("build application failed", "error", err)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: application.Router,
	}

	go func() {
		logger.Infow("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("http server shutdown error", "error", err)
	}
	application.Shutdown(shutdownCtx)
	logger.Infow("server exited")
}
