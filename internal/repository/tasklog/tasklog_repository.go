package tasklog

import (
	"context"
	"errors"
	"time"

	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrDuplicateJob 同一 job 已有执行记录
var ErrDuplicateJob = errors.New("workflow log already exists for job")

// Repository 执行日志仓库接口
type Repository interface {
	OpenWorkflowLog(ctx context.Context, workflowID, jobID string, input datatypes.JSON) (int64, error)
	CreateTaskLogs(ctx context.Context, logs []types.TaskLog) error
	SkipPending(ctx context.Context, workflowLogID int64) error
	CloseWorkflowLog(ctx context.Context, id int64, status types.ExecutionStatus) error
	ListByWorkflow(ctx context.Context, workflowID string, offset, limit int) ([]types.WorkflowLog, int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository 创建执行日志仓库
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// OpenWorkflowLog 创建运行中的工作流日志，job_id 唯一
func (r *repository) OpenWorkflowLog(ctx context.Context, workflowID, jobID string, input datatypes.JSON) (int64, error) {
	log := &types.WorkflowLog{
		WorkflowID: workflowID,
		JobID:      jobID,
		Status:     types.ExecutionStatusRunning,
		Input:      input,
		StartedAt:  time.Now(),
	}

	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, ErrDuplicateJob
		}
		logger.Error("OpenWorkflowLog Error", err, "workflow_id", workflowID, "job_id", jobID)
		return 0, err
	}
	return log.ID, nil
}

// CreateTaskLogs 按顺序写入任务日志
func (r *repository) CreateTaskLogs(ctx context.Context, logs []types.TaskLog) error {
	if len(logs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&logs).Error; err != nil {
		logger.Error("CreateTaskLogs Error", err, "workflow_log_id", logs[0].WorkflowLogID, "count", len(logs))
		return err
	}
	return nil
}

// SkipPending 将未执行的任务日志标记为跳过
func (r *repository) SkipPending(ctx context.Context, workflowLogID int64) error {
	err := r.db.WithContext(ctx).Model(&types.TaskLog{}).
		Where("workflow_log_id = ? AND status = ?", workflowLogID, types.ExecutionStatusPending).
		Updates(map[string]interface{}{
			"status":      types.ExecutionStatusSkipped,
			"finished_at": time.Now(),
		}).Error
	if err != nil {
		logger.Error("SkipPending Error", err, "workflow_log_id", workflowLogID)
		return err
	}
	return nil
}

// CloseWorkflowLog 写入终态
func (r *repository) CloseWorkflowLog(ctx context.Context, id int64, status types.ExecutionStatus) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&types.WorkflowLog{}).
		Where("id = ? AND status = ?", id, types.ExecutionStatusRunning).
		Updates(map[string]interface{}{
			"status":      status,
			"finished_at": &now,
		}).Error
	if err != nil {
		logger.Error("CloseWorkflowLog Error", err, "workflow_log_id", id)
		return err
	}
	return nil
}

// ListByWorkflow 分页获取工作流执行记录（含任务日志）
func (r *repository) ListByWorkflow(ctx context.Context, workflowID string, offset, limit int) ([]types.WorkflowLog, int64, error) {
	var (
		list  []types.WorkflowLog
		total int64
	)

	query := r.db.WithContext(ctx).Model(&types.WorkflowLog{}).Where("workflow_id = ?", workflowID)
	if err := query.Count(&total).Error; err != nil {
		logger.Error("ListByWorkflow Count Error", err, "workflow_id", workflowID)
		return nil, 0, err
	}

	err := query.
		Preload("TaskLogs", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error
	if err != nil {
		logger.Error("ListByWorkflow Error", err, "workflow_id", workflowID)
		return nil, 0, err
	}
	return list, total, nil
}
