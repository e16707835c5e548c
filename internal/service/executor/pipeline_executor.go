package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chainflow-backend/internal/repository/jobguard"
	"chainflow-backend/internal/repository/tasklog"
	"chainflow-backend/internal/service/processor"
	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"

	"gorm.io/datatypes"
)

// Outcome 一次工作流任务的处理结果
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeFiltered  Outcome = "filtered"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeInactive  Outcome = "inactive"
	OutcomeInvalid   Outcome = "invalid"
)

// WorkflowStore 执行器需要的工作流查询
type WorkflowStore interface {
	GetByID(ctx context.Context, id string) (*types.Workflow, error)
}

// PipelineExecutor 按依赖链顺序执行工作流任务
type PipelineExecutor struct {
	workflows   WorkflowStore
	logs        tasklog.Repository
	guard       jobguard.Guard
	processors  *processor.Registry
	taskTimeout time.Duration
	now         func() time.Time
}

// NewPipelineExecutor 创建执行器
func NewPipelineExecutor(
	workflows WorkflowStore,
	logs tasklog.Repository,
	guard jobguard.Guard,
	processors *processor.Registry,
	taskTimeout time.Duration,
) *PipelineExecutor {
	return &PipelineExecutor{
		workflows:   workflows,
		logs:        logs,
		guard:       guard,
		processors:  processors,
		taskTimeout: taskTimeout,
		now:         time.Now,
	}
}

type taskRun struct {
	task   *types.WorkflowTask
	result *processor.Result
	err    error
	start  time.Time
	end    time.Time
}

// Execute 执行一个工作流任务
// 返回错误表示基础设施故障，消息应重新投递；任务自身失败体现在 Outcome 与日志中
func (e *PipelineExecutor) Execute(ctx context.Context, job *types.ExecutionJob) (Outcome, error) {
	claimed, err := e.guard.Claim(ctx, job.ID)
	if err != nil {
		return "", fmt.Errorf("failed to claim job %s: %w", job.ID, err)
	}
	if !claimed {
		logger.Info("Job already claimed, skipping", "job_id", job.ID)
		return OutcomeDuplicate, nil
	}

	wf, err := e.workflows.GetByID(ctx, job.WorkflowID)
	if err != nil {
		e.release(job.ID)
		return "", fmt.Errorf("failed to load workflow %s: %w", job.WorkflowID, err)
	}
	if wf == nil || wf.Status != types.WorkflowStatusRunning {
		logger.Info("Workflow not running, dropping job", "job_id", job.ID, "workflow_id", job.WorkflowID)
		return OutcomeInactive, e.complete(job.ID)
	}

	graph, err := BuildTaskGraph(wf.Tasks)
	if err != nil {
		logger.Error("Invalid workflow task graph", err, "workflow_id", wf.ID)
		return OutcomeInvalid, e.complete(job.ID)
	}

	runs, mismatch := e.walk(ctx, graph, processor.NewExecutionContext(job, wf.Name))
	if mismatch {
		logger.Debug("Workflow filtered out", "job_id", job.ID, "workflow_id", wf.ID)
		return OutcomeFiltered, e.complete(job.ID)
	}

	// 任务已产生外部副作用，持久化不随调用方取消
	outcome, err := e.persist(context.WithoutCancel(ctx), job, graph, runs)
	if cerr := e.complete(job.ID); cerr != nil && err == nil {
		err = cerr
	}
	return outcome, err
}

// walk 依次执行任务，遇到失败或过滤不匹配即停止
func (e *PipelineExecutor) walk(ctx context.Context, graph *TaskGraph, ec *processor.ExecutionContext) ([]taskRun, bool) {
	ordered := graph.Ordered()
	runs := make([]taskRun, 0, len(ordered))

	for _, task := range ordered {
		run := taskRun{task: task, start: e.now()}
		run.result, run.err = e.runTask(ctx, task, ec)
		run.end = e.now()
		runs = append(runs, run)

		if run.err != nil {
			logger.Warn("Task failed", "workflow_id", task.WorkflowID, "task", task.Name, "error", run.err.Error())
			return runs, false
		}
		if run.result != nil && run.result.Mismatch {
			return runs, true
		}
		if run.result != nil {
			ec.SetTaskOutput(task.Name, run.result.Output)
		}
	}
	return runs, false
}

type processOutcome struct {
	result *processor.Result
	err    error
}

// runTask 在超时内执行单个任务，panic 视为任务失败
func (e *PipelineExecutor) runTask(ctx context.Context, task *types.WorkflowTask, ec *processor.ExecutionContext) (*processor.Result, error) {
	p, err := e.processors.Get(task.Type)
	if err != nil {
		return nil, err
	}

	if e.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.taskTimeout)
		defer cancel()
	}

	done := make(chan processOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- processOutcome{err: fmt.Errorf("task %s panicked: %v", task.Name, r)}
			}
		}()
		res, err := p.Process(ctx, task, ec)
		done <- processOutcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("task %s timed out after %s", task.Name, e.taskTimeout)
		}
		return nil, ctx.Err()
	}
}

// persist 写入工作流日志与任务日志，未执行到的任务记为 skipped
func (e *PipelineExecutor) persist(ctx context.Context, job *types.ExecutionJob, graph *TaskGraph, runs []taskRun) (Outcome, error) {
	input, err := json.Marshal(job.Event)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to marshal workflow input: %w", err)
	}

	logID, err := e.logs.OpenWorkflowLog(ctx, job.WorkflowID, job.ID, datatypes.JSON(input))
	if errors.Is(err, tasklog.ErrDuplicateJob) {
		logger.Info("Workflow log already exists for job", "job_id", job.ID)
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to open workflow log: %w", err)
	}

	status := types.ExecutionStatusSuccess
	entries := make([]types.TaskLog, 0, len(graph.byID))
	for i, run := range runs {
		entry := buildTaskLog(logID, i, run)
		if run.err != nil {
			status = types.ExecutionStatusFailed
		}
		entries = append(entries, entry)
	}
	for i, task := range graph.Ordered()[len(runs):] {
		entries = append(entries, types.TaskLog{
			WorkflowLogID: logID,
			TaskID:        task.ID,
			TaskName:      task.Name,
			TaskType:      task.Type,
			Sequence:      len(runs) + i,
			Status:        types.ExecutionStatusPending,
		})
	}

	if err := e.logs.CreateTaskLogs(ctx, entries); err != nil {
		return OutcomeFailed, fmt.Errorf("failed to create task logs: %w", err)
	}
	if err := e.logs.SkipPending(ctx, logID); err != nil {
		return OutcomeFailed, fmt.Errorf("failed to skip pending task logs: %w", err)
	}
	if err := e.logs.CloseWorkflowLog(ctx, logID, status); err != nil {
		return OutcomeFailed, fmt.Errorf("failed to close workflow log: %w", err)
	}

	logger.Info("Workflow executed", "job_id", job.ID, "workflow_id", job.WorkflowID, "status", status, "tasks", len(runs))
	if status == types.ExecutionStatusFailed {
		return OutcomeFailed, nil
	}
	return OutcomeSucceeded, nil
}

func buildTaskLog(logID int64, seq int, run taskRun) types.TaskLog {
	start, end := run.start, run.end
	entry := types.TaskLog{
		WorkflowLogID: logID,
		TaskID:        run.task.ID,
		TaskName:      run.task.Name,
		TaskType:      run.task.Type,
		Sequence:      seq,
		Status:        types.ExecutionStatusSuccess,
		StartedAt:     &start,
		FinishedAt:    &end,
	}
	if run.result != nil {
		entry.Input = toJSON(run.result.Input)
		entry.Output = toJSON(run.result.Output)
	}
	if run.err != nil {
		entry.Status = types.ExecutionStatusFailed
		entry.Error = run.err.Error()
	}
	return entry
}

func toJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

func (e *PipelineExecutor) complete(jobID string) error {
	if err := e.guard.Complete(context.Background(), jobID); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	return nil
}

func (e *PipelineExecutor) release(jobID string) {
	if err := e.guard.Release(context.Background(), jobID); err != nil {
		logger.Error("Failed to release job", err, "job_id", jobID)
	}
}
