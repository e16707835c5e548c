package database

import (
	"context"
	"fmt"
	"time"

	"chainflow-backend/internal/config"
	"chainflow-backend/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// NewRedisConnection 创建Redis连接，队列、幂等锁与事件缓存共用
func NewRedisConnection(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("NewRedisConnection Error: ", err, "addr", cfg.Addr())
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("NewRedisConnection: ", "addr", cfg.Addr(), "db", cfg.DB)
	return client, nil
}
