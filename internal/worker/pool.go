package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chainflow-backend/internal/queue"
	"chainflow-backend/pkg/logger"
)

const (
	readErrorBackoff = time.Second
	reclaimInterval  = 30 * time.Second
)

// Handler 处理一条消息，返回错误时消息会被重试或转入死信
type Handler func(ctx context.Context, msg queue.Message) error

// Pool 固定大小的工作池，限制同时处理的消息数
type Pool struct {
	name        string
	consumer    queue.Consumer
	handler     Handler
	size        int
	maxAttempts int

	sem    chan struct{}
	wg     sync.WaitGroup
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPool 创建工作池
func NewPool(name string, consumer queue.Consumer, handler Handler, size, maxAttempts int) *Pool {
	if size <= 0 {
		size = 1
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Pool{
		name:        name,
		consumer:    consumer,
		handler:     handler,
		size:        size,
		maxAttempts: maxAttempts,
		sem:         make(chan struct{}, size),
	}
}

// Start 启动读取循环
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	logger.Info("Worker pool started", "pool", p.name, "stream", p.consumer.Stream(), "size", p.size)
	go p.readLoop(ctx)
}

// Stop 停止读取，等待进行中的消息处理完成
func (p *Pool) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.wg.Wait()
	logger.Info("Worker pool stopped", "pool", p.name)
}

func (p *Pool) readLoop(ctx context.Context) {
	defer close(p.done)

	var lastReclaim time.Time
	for {
		if ctx.Err() != nil {
			return
		}

		if time.Since(lastReclaim) >= reclaimInterval {
			lastReclaim = time.Now()
			stale, err := p.consumer.Reclaim(ctx)
			if err != nil {
				logger.Warn("Failed to reclaim pending messages", "pool", p.name, "error", err.Error())
			}
			if !p.submit(ctx, stale) {
				return
			}
		}

		messages, err := p.consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("Failed to read messages", err, "pool", p.name)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readErrorBackoff):
			}
			continue
		}

		if !p.submit(ctx, messages) {
			return
		}
	}
}

// submit 占用并发槽后派发消息，ctx 取消时返回 false
func (p *Pool) submit(ctx context.Context, messages []queue.Message) bool {
	for _, msg := range messages {
		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			// 未处理的消息保留在 pending 列表中
			return false
		}

		p.wg.Add(1)
		go func(msg queue.Message) {
			defer p.wg.Done()
			defer func() { <-p.sem }()
			// 已开始的消息在停止时也要处理完
			p.dispatch(context.WithoutCancel(ctx), msg)
		}(msg)
	}
	return true
}

func (p *Pool) dispatch(ctx context.Context, msg queue.Message) {
	err := p.handleSafe(ctx, msg)
	if err == nil {
		if ackErr := p.consumer.Ack(ctx, msg); ackErr != nil {
			logger.Warn("Failed to ack message", "pool", p.name, "message_id", msg.ID, "error", ackErr.Error())
		}
		return
	}

	if msg.Attempt >= p.maxAttempts {
		if dlqErr := p.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			logger.Error("Failed to send message to DLQ", dlqErr, "pool", p.name, "message_id", msg.ID)
		}
		return
	}

	logger.Warn("Message processing failed, requeuing", "pool", p.name, "key", msg.Key, "attempt", msg.Attempt, "error", err.Error())
	if requeueErr := p.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		logger.Error("Failed to requeue message", requeueErr, "pool", p.name, "message_id", msg.ID)
	}
}

func (p *Pool) handleSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorWithStack("Panic recovered in worker", fmt.Errorf("%v", r), "pool", p.name, "message_id", msg.ID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.handler(ctx, msg)
}
