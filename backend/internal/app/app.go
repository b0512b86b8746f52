/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-18 11:20:05
 * @FilePath: \rescue-go-app\backend\internal\app\app.go
 * @LastEditTime: 2025-10-18 11:20:11
 */
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"rescue-go-app/backend/internal/config"
	infra "rescue-go-app/backend/internal/infra/client"
	appLogger "rescue-go-app/backend/internal/infra/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// AppConfig 汇总进程级的基础设施配置。
type AppConfig struct {
	MySQL infra.MySQLConfig
}

// Resources 持有进程生命周期内共享的外部资源。
type Resources struct {
	Config AppConfig
	DB     *gorm.DB
	SQLDB  *sql.DB
	Redis  *redis.Client
}

// Bootstrap 加载环境配置并建立数据库与可选的 Redis 连接。
func Bootstrap(ctx context.Context) (*Resources, error) {
	config.LoadEnvFiles()

	mysqlCfg, err := infra.LoadMySQLConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load mysql config: %w", err)
	}

	gormDB, sqlDB, err := infra.NewGORMMySQL(mysqlCfg)
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	resources := &Resources{
		Config: AppConfig{MySQL: mysqlCfg},
		DB:     gormDB,
		SQLDB:  sqlDB,
	}

	// Redis 为可选依赖：仅在配置了 REDIS_ENDPOINT 时启用。
	if strings.TrimSpace(os.Getenv("REDIS_ENDPOINT")) != "" {
		redisOpts, err := infra.NewDefaultRedisOptions()
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("load redis config: %w", err)
		}
		client, err := infra.NewRedisClient(redisOpts)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		resources.Redis = client
	} else {
		appLogger.S().Infow("redis endpoint not configured, redis-backed features disabled")
	}

	return resources, nil
}

// Close 释放全部外部资源。
func (r *Resources) Close() error {
	if r == nil {
		return nil
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			return err
		}
	}
	if r.SQLDB != nil {
		if err := r.SQLDB.Close(); err != nil {
			return err
		}
	}
	return nil
}

// DBConn 返回 GORM 连接。
func (r *Resources) DBConn() *gorm.DB {
	if r == nil {
		return nil
	}
	return r.DB
}
