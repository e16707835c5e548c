package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"chainflow-backend/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Producer 向 stream 写入消息
type Producer interface {
	Enqueue(ctx context.Context, key string, payload interface{}) error
}

type redisProducer struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisProducer 创建 stream 生产者，maxLen>0 时近似裁剪 stream 长度
func NewRedisProducer(client *redis.Client, stream string, maxLen int64) Producer {
	return &redisProducer{client: client, stream: stream, maxLen: maxLen}
}

func (p *redisProducer) Enqueue(ctx context.Context, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: messageValues(Message{Key: key, Payload: data}, 1),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to enqueue to %s: %w", p.stream, err)
	}

	logger.Debug("Enqueued message", "stream", p.stream, "key", key)
	return nil
}
