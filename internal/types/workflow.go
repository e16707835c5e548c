package types

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// TaskType 任务类型
type TaskType string

const (
	TaskTypeTrigger  TaskType = "trigger"
	TaskTypeFilter   TaskType = "filter"
	TaskTypeWebhook  TaskType = "webhook"
	TaskTypeEmail    TaskType = "email"
	TaskTypeTelegram TaskType = "telegram"
	TaskTypeDiscord  TaskType = "discord"
)

// WorkflowStatus 工作流状态
type WorkflowStatus string

const (
	WorkflowStatusRunning WorkflowStatus = "running"
	WorkflowStatusPaused  WorkflowStatus = "paused"
)

// ExecutionStatus 执行状态（工作流日志与任务日志共用）
type ExecutionStatus string

const (
	ExecutionStatusPending ExecutionStatus = "pending"
	ExecutionStatusRunning ExecutionStatus = "running"
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
	ExecutionStatusSkipped ExecutionStatus = "skipped"
)

// Workflow 用户定义的自动化工作流
type Workflow struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	Name        string         `json:"name" gorm:"size:200;not null"`
	UserID      int64          `json:"user_id" gorm:"not null;index"`
	UserAddress string         `json:"user_address" gorm:"size:64;not null;index"`
	ChainID     int64          `json:"chain_id" gorm:"not null;index"`
	Status      WorkflowStatus `json:"status" gorm:"size:20;not null;default:'running';index"`
	Tasks       []WorkflowTask `json:"tasks" gorm:"foreignKey:WorkflowID"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 设置表名
func (Workflow) TableName() string {
	return "workflows"
}

// WorkflowTask 工作流中的一个任务
type WorkflowTask struct {
	ID         string         `json:"id" gorm:"primaryKey;size:36"`
	WorkflowID string         `json:"workflow_id" gorm:"size:36;not null;index;uniqueIndex:idx_workflow_task_name"`
	Type       TaskType       `json:"type" gorm:"size:20;not null"`
	Name       string         `json:"name" gorm:"size:100;not null;uniqueIndex:idx_workflow_task_name"`
	Config     datatypes.JSON `json:"config" gorm:"type:jsonb"`
	DependsOn  *string        `json:"depends_on" gorm:"size:36"`
	EventID    *int64         `json:"event_id,omitempty" gorm:"index"` // 仅 trigger 任务
	CreatedAt  time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 设置表名
func (WorkflowTask) TableName() string {
	return "workflow_tasks"
}

// DecodeConfig 将任务配置解析到目标结构
func (t *WorkflowTask) DecodeConfig(v interface{}) error {
	if len(t.Config) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Config, v); err != nil {
		return fmt.Errorf("invalid %s config for task %s: %w", t.Type, t.Name, err)
	}
	return nil
}

// WorkflowLog 工作流执行记录
type WorkflowLog struct {
	ID         int64           `json:"id" gorm:"primaryKey;autoIncrement"`
	WorkflowID string          `json:"workflow_id" gorm:"size:36;not null;index"`
	JobID      string          `json:"job_id" gorm:"size:200;not null;uniqueIndex"`
	Status     ExecutionStatus `json:"status" gorm:"size:20;not null;index"`
	Input      datatypes.JSON  `json:"input" gorm:"type:jsonb"`
	StartedAt  time.Time       `json:"started_at" gorm:"not null"`
	FinishedAt *time.Time      `json:"finished_at"`
	TaskLogs   []TaskLog       `json:"task_logs,omitempty" gorm:"foreignKey:WorkflowLogID"`
	CreatedAt  time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 设置表名
func (WorkflowLog) TableName() string {
	return "workflow_logs"
}

// TaskLog 任务执行记录
type TaskLog struct {
	ID            int64           `json:"id" gorm:"primaryKey;autoIncrement"`
	WorkflowLogID int64           `json:"workflow_log_id" gorm:"not null;index"`
	TaskID        string          `json:"task_id" gorm:"size:36;not null"`
	TaskName      string          `json:"task_name" gorm:"size:100;not null"`
	TaskType      TaskType        `json:"task_type" gorm:"size:20;not null"`
	Sequence      int             `json:"sequence" gorm:"not null"`
	Status        ExecutionStatus `json:"status" gorm:"size:20;not null"`
	Input         datatypes.JSON  `json:"input" gorm:"type:jsonb"`
	Output        datatypes.JSON  `json:"output" gorm:"type:jsonb"`
	Error         string          `json:"error,omitempty" gorm:"type:text"`
	StartedAt     *time.Time      `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 设置表名
func (TaskLog) TableName() string {
	return "task_logs"
}

// ExecutionJob 工作流队列消息，每个 (workflow, block) 一条
type ExecutionJob struct {
	ID          string       `json:"id"`
	WorkflowID  string       `json:"workflow_id"`
	ChainID     int64        `json:"chain_id"`
	ChainName   string       `json:"chain_name"`
	UserID      int64        `json:"user_id"`
	UserAddress string       `json:"user_address"`
	EventID     int64        `json:"event_id"`
	EventName   string       `json:"event_name"`
	Event       EventRawData `json:"event"`
	Attempt     int          `json:"attempt,omitempty"`
}

// JobID 生成幂等任务ID
func JobID(workflowID, blockHash string) string {
	return fmt.Sprintf("%s_%s", workflowID, blockHash)
}

// CreateTaskRequest 创建任务请求，DependsOn 为前置任务名称
type CreateTaskRequest struct {
	Name      string          `json:"name" binding:"required,max=100"`
	Type      TaskType        `json:"type" binding:"required,oneof=trigger filter webhook email telegram discord"`
	Config    json.RawMessage `json:"config"`
	DependsOn *string         `json:"depends_on"`
}

// CreateWorkflowRequest 创建工作流请求
type CreateWorkflowRequest struct {
	Name    string              `json:"name" binding:"required,max=200"`
	ChainID int64               `json:"chain_id" binding:"required"`
	Tasks   []CreateTaskRequest `json:"tasks" binding:"required,min=1,dive"`
}

// UpdateWorkflowRequest 更新工作流请求，仅允许修改名称与状态
type UpdateWorkflowRequest struct {
	Name   *string         `json:"name" binding:"omitempty,max=200"`
	Status *WorkflowStatus `json:"status" binding:"omitempty,oneof=running paused"`
}

// GetWorkflowLogsRequest 获取工作流日志请求
type GetWorkflowLogsRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetWorkflowLogsResponse 获取工作流日志响应
type GetWorkflowLogsResponse struct {
	Logs     []WorkflowLog `json:"logs"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// GetWorkflowListRequest 获取工作流列表请求
type GetWorkflowListRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetWorkflowListResponse 获取工作流列表响应
type GetWorkflowListResponse struct {
	Workflows []Workflow `json:"workflows"`
	Total     int64      `json:"total"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
}
