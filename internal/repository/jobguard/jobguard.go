package jobguard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix    = "chainflow:job:"
	stateRunning = "running"
	stateDone    = "done"
)

// Guard 执行幂等保护，以 job id 为键
type Guard interface {
	// Claim 抢占执行权；已被抢占或已完成时返回 false
	Claim(ctx context.Context, jobID string) (bool, error)
	// Complete 标记完成，后续重复投递直接跳过
	Complete(ctx context.Context, jobID string) error
	// Release 释放执行权，允许重新投递后重试
	Release(ctx context.Context, jobID string) error
}

type redisGuard struct {
	rdb      *redis.Client
	leaseTTL time.Duration
	doneTTL  time.Duration
}

// NewRedisGuard 创建基于 Redis SETNX 的幂等保护
// leaseTTL 为执行中的租约时长，进程崩溃后租约过期可被重新抢占
func NewRedisGuard(rdb *redis.Client, leaseTTL, doneTTL time.Duration) Guard {
	return &redisGuard{rdb: rdb, leaseTTL: leaseTTL, doneTTL: doneTTL}
}

func key(jobID string) string {
	return keyPrefix + jobID
}

func (g *redisGuard) Claim(ctx context.Context, jobID string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, key(jobID), stateRunning, g.leaseTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}
	return ok, nil
}

func (g *redisGuard) Complete(ctx context.Context, jobID string) error {
	if err := g.rdb.Set(ctx, key(jobID), stateDone, g.doneTTL).Err(); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	return nil
}

func (g *redisGuard) Release(ctx context.Context, jobID string) error {
	// 只删除执行中的租约，已完成的标记保留
	script := redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
	if err := script.Run(ctx, g.rdb, []string{key(jobID)}, stateRunning).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release job %s: %w", jobID, err)
	}
	return nil
}
