package worker

import (
	"context"
	"fmt"

	"chainflow-backend/internal/queue"
	"chainflow-backend/internal/service/executor"
	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"
)

// BlockMatcher 区块事件匹配
type BlockMatcher interface {
	Match(ctx context.Context, chainID int64, block types.BlockMeta, events []types.BlockEvent) ([]types.ExecutionJob, error)
}

// JobExecutor 工作流执行
type JobExecutor interface {
	Execute(ctx context.Context, job *types.ExecutionJob) (executor.Outcome, error)
}

// NewBlockHandler 区块阶段：匹配工作流并把执行任务写入工作流队列
func NewBlockHandler(matcher BlockMatcher, jobs queue.Producer) Handler {
	return func(ctx context.Context, msg queue.Message) error {
		var block types.BlockMessage
		if err := msg.Decode(&block); err != nil {
			// 无法解析的消息重试也没有意义
			logger.Error("Dropping malformed block message", err, "message_id", msg.ID)
			return nil
		}

		matched, err := matcher.Match(ctx, block.ChainID, block.Block, block.Events)
		if err != nil {
			return fmt.Errorf("failed to match block %s: %w", block.Block.Hash, err)
		}

		for i := range matched {
			if err := jobs.Enqueue(ctx, matched[i].ID, &matched[i]); err != nil {
				return fmt.Errorf("failed to enqueue job %s: %w", matched[i].ID, err)
			}
		}
		return nil
	}
}

// NewWorkflowHandler 工作流阶段：执行任务链
func NewWorkflowHandler(exec JobExecutor) Handler {
	return func(ctx context.Context, msg queue.Message) error {
		var job types.ExecutionJob
		if err := msg.Decode(&job); err != nil {
			logger.Error("Dropping malformed workflow job", err, "message_id", msg.ID)
			return nil
		}
		job.Attempt = msg.Attempt

		outcome, err := exec.Execute(ctx, &job)
		if err != nil {
			return err
		}
		logger.Debug("Workflow job handled", "job_id", job.ID, "outcome", outcome)
		return nil
	}
}
