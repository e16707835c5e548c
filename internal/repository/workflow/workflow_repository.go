package workflow

import (
	"context"
	"errors"
	"fmt"

	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"

	"gorm.io/gorm"
)

// Repository 工作流仓库接口
type Repository interface {
	CreateWithTasks(ctx context.Context, wf *types.Workflow) error
	GetByID(ctx context.Context, id string) (*types.Workflow, error)
	ListByUser(ctx context.Context, userID int64, offset, limit int) ([]types.Workflow, int64, error)
	// GetRunningByEventIDs 查询触发器订阅了任一事件的运行中工作流（含任务）
	GetRunningByEventIDs(ctx context.Context, eventIDs []int64) ([]types.Workflow, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository 创建工作流仓库
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// CreateWithTasks 原子创建工作流及其任务
func (r *repository) CreateWithTasks(ctx context.Context, wf *types.Workflow) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasks := wf.Tasks
		wf.Tasks = nil
		defer func() { wf.Tasks = tasks }()

		if err := tx.Create(wf).Error; err != nil {
			return fmt.Errorf("failed to create workflow: %w", err)
		}
		if len(tasks) == 0 {
			return nil
		}
		if err := tx.Create(&tasks).Error; err != nil {
			return fmt.Errorf("failed to create workflow tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("CreateWithTasks Error", err, "workflow_id", wf.ID)
		return err
	}
	return nil
}

// GetByID 获取工作流及任务，不存在返回 nil
func (r *repository) GetByID(ctx context.Context, id string) (*types.Workflow, error) {
	var wf types.Workflow
	err := r.db.WithContext(ctx).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&wf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error("GetByID Error", err, "workflow_id", id)
		return nil, err
	}
	return &wf, nil
}

// ListByUser 分页获取用户的工作流
func (r *repository) ListByUser(ctx context.Context, userID int64, offset, limit int) ([]types.Workflow, int64, error) {
	var (
		list  []types.Workflow
		total int64
	)

	query := r.db.WithContext(ctx).Model(&types.Workflow{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		logger.Error("ListByUser Count Error", err, "user_id", userID)
		return nil, 0, err
	}

	err := query.
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error
	if err != nil {
		logger.Error("ListByUser Error", err, "user_id", userID)
		return nil, 0, err
	}
	return list, total, nil
}

// GetRunningByEventIDs 查询订阅指定事件的运行中工作流
func (r *repository) GetRunningByEventIDs(ctx context.Context, eventIDs []int64) ([]types.Workflow, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}

	var list []types.Workflow
	err := r.db.WithContext(ctx).
		Where("status = ?", types.WorkflowStatusRunning).
		Where("id IN (?)", r.db.Model(&types.WorkflowTask{}).
			Select("workflow_id").
			Where("type = ? AND event_id IN ?", types.TaskTypeTrigger, eventIDs)).
		Preload("Tasks").
		Find(&list).Error
	if err != nil {
		logger.Error("GetRunningByEventIDs Error", err, "event_ids", len(eventIDs))
		return nil, err
	}
	return list, nil
}

// Update 更新工作流字段（名称、状态）
func (r *repository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&types.Workflow{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		logger.Error("Update Error", result.Error, "workflow_id", id)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
