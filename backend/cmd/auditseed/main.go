/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-19 14:02:11
 * @FilePath: \rescue-go-app\backend\cmd\auditseed\main.go
 * @LastEditTime: 2025-10-19 14:02:17
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"rescue-go-app/backend/internal/app"
	auditdomain "rescue-go-app/backend/internal/domain/audit"
	auditinfra "rescue-go-app/backend/internal/infra/audit"
	appLogger "rescue-go-app/backend/internal/infra/logger"
	"rescue-go-app/backend/internal/repository"
	auditsvc "rescue-go-app/backend/internal/service/audit"

	"github.com/brianvoe/gofakeit/v7"
)

// auditseed 向配置好的数据库灌入伪造的审计事件，用于在真实体量下
// 观察压缩率、刷盘节奏与查询表现。
func main() {
	events := flag.Int("events", 500, "number of audit events to generate")
	users := flag.Int("users", 10, "distinct user id pool size")
	rescues := flag.Int("rescues", 3, "distinct rescue (tenant) id pool size")
	dupPercent := flag.Int("dup", 40, "percentage of events that repeat the previous one")
	batchSize := flag.Int("batch", auditsvc.DefaultBatchSize, "batcher batch size")
	seed := flag.Uint64("seed", 0, "random seed, 0 means time-based")
	flag.Parse()

	if *events <= 0 || *users <= 0 || *rescues <= 0 || *dupPercent < 0 || *dupPercent > 100 {
		flag.Usage()
		os.Exit(1)
	}

	if err := gofakeit.Seed(*seed); err != nil {
		log.Fatalf("seed rng: %v", err)
	}

	ctx := context.Background()
	resources, err := app.Bootstrap(ctx)
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	defer resources.Close()

	if err := resources.DBConn().AutoMigrate(&auditdomain.Record{}); err != nil {
		log.Fatalf("migrate audit_logs: %v", err)
	}

	logger := appLogger.S().With("component", "auditseed")
	repo := repository.NewAuditLogRepository(resources.DBConn())
	batcher := auditsvc.NewBatcher(auditsvc.BatcherConfig{
		BatchSize:     *batchSize,
		FlushInterval: time.Second,
	}, auditinfra.NewMemoryQueue(), repo, logger)
	batcher.Start()
	service := auditsvc.NewService(batcher, repo, logger)

	actions := []string{
		"login_success", "login_failed", "create", "update", "delete",
		"export_csv", "permission_denied", "view",
	}
	resourceTypes := []string{"Dog", "Appointment", "Medicine", "Reminder"}

	var prev *auditsvc.Entry
	for i := 0; i < *events; i++ {
		var entry auditsvc.Entry
		if prev != nil && gofakeit.Number(1, 100) <= *dupPercent {
			// 重复上一条，制造可被窗口合并的突发。
			entry = *prev
		} else {
			entry = randomEntry(actions, resourceTypes, *users, *rescues)
			prev = &entry
		}
		service.Log(ctx, entry)
	}

	service.ForceFlush(ctx)
	batcher.Stop()

	stats := service.Stats()
	fmt.Printf("generated %d events, persisted %d rows (last batch %d, last flush %.3fs)\n",
		*events, stats.TotalEventsLogged, stats.LastBatchSize, stats.LastFlushDuration)
}

func randomEntry(actions, resourceTypes []string, users, rescues int) auditsvc.Entry {
	entry := auditsvc.NewEntry(gofakeit.RandomString(actions))

	userID := uint(gofakeit.Number(1, users))
	rescueID := uint(gofakeit.Number(1, rescues))
	entry.UserID = &userID
	entry.RescueID = &rescueID
	entry.IPAddress = gofakeit.IPv4Address()
	entry.UserAgent = gofakeit.UserAgent()

	if gofakeit.Bool() {
		resourceID := uint(gofakeit.Number(1, 500))
		entry.ResourceType = gofakeit.RandomString(resourceTypes)
		entry.ResourceID = &resourceID
		entry.Details = map[string]any{"name": gofakeit.PetName()}
	}

	if entry.Action == "login_failed" || entry.Action == "permission_denied" {
		entry.Success = false
		entry.ErrorMessage = gofakeit.HackerPhrase()
	}
	return entry
}
