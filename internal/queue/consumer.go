package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainflow-backend/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// ConsumerConfig 消费组配置
type ConsumerConfig struct {
	Stream       string
	DLQStream    string
	Group        string
	Consumer     string
	BatchSize    int64
	Block        time.Duration
	RequeueDelay time.Duration
	// 0 表示不认领遗留的 pending 消息
	ReclaimMinIdle time.Duration
}

// Consumer 消费组读取与确认
type Consumer interface {
	Read(ctx context.Context) ([]Message, error)
	Reclaim(ctx context.Context) ([]Message, error)
	Ack(ctx context.Context, msg Message) error
	Requeue(ctx context.Context, msg Message, errMsg string) error
	SendDLQ(ctx context.Context, msg Message, errMsg string) error
	Stream() string
}

type redisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

// NewRedisConsumer 创建消费者并确保消费组存在
func NewRedisConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig) (Consumer, error) {
	c := &redisConsumer{client: client, cfg: cfg}
	// 从 0 开始创建，重启时不丢失已入队的消息
	err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group %s on %s: %w", cfg.Group, cfg.Stream, err)
	}
	return c, nil
}

func (c *redisConsumer) Stream() string {
	return c.cfg.Stream
}

func (c *redisConsumer) Read(ctx context.Context) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from %s: %w", c.cfg.Stream, err)
	}

	var messages []Message
	for _, stream := range streams {
		messages = append(messages, c.parseAll(ctx, stream.Messages)...)
	}
	return messages, nil
}

// Reclaim 认领空闲超过 ReclaimMinIdle 的 pending 消息（读取后未确认即崩溃的消费者遗留）
func (c *redisConsumer) Reclaim(ctx context.Context) ([]Message, error) {
	if c.cfg.ReclaimMinIdle <= 0 {
		return nil, nil
	}

	raws, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  c.cfg.ReclaimMinIdle,
		Start:    "0-0",
		Count:    c.cfg.BatchSize,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to reclaim pending on %s: %w", c.cfg.Stream, err)
	}

	if len(raws) > 0 {
		logger.Info("Reclaimed stale pending messages", "stream", c.cfg.Stream, "count", len(raws))
	}
	return c.parseAll(ctx, raws), nil
}

// parseAll 解析失败的消息直接确认，避免反复投递
func (c *redisConsumer) parseAll(ctx context.Context, raws []redis.XMessage) []Message {
	messages := make([]Message, 0, len(raws))
	for _, raw := range raws {
		msg, parseErr := ParseMessage(raw)
		if parseErr != nil {
			logger.Error("Failed to parse stream message", parseErr, "stream", c.cfg.Stream, "message_id", raw.ID)
			_ = c.Ack(ctx, Message{ID: raw.ID, Raw: raw})
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}

func (c *redisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("failed to ack %s on %s: %w", msg.ID, c.cfg.Stream, err)
	}
	return nil
}

// Requeue 确认原消息并以 attempt+1 重新写入
func (c *redisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return err
	}

	values := messageValues(msg, msg.Attempt+1)
	if errMsg != "" {
		values[fieldLastError] = errMsg
	}

	if c.cfg.RequeueDelay > 0 {
		select {
		case <-time.After(c.cfg.RequeueDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.cfg.Stream, Values: values}).Err(); err != nil {
		return fmt.Errorf("failed to requeue %s: %w", msg.ID, err)
	}

	logger.Info("Message requeued", "stream", c.cfg.Stream, "key", msg.Key, "next_attempt", msg.Attempt+1)
	return nil
}

// SendDLQ 超过重试次数后转入死信 stream
func (c *redisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return err
	}

	values := messageValues(msg, msg.Attempt)
	values[fieldError] = errMsg

	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.cfg.DLQStream, Values: values}).Err(); err != nil {
		return fmt.Errorf("failed to send %s to %s: %w", msg.ID, c.cfg.DLQStream, err)
	}

	logger.Error("Message sent to DLQ", errors.New(errMsg), "dlq_stream", c.cfg.DLQStream, "key", msg.Key, "attempts", msg.Attempt)
	return nil
}
