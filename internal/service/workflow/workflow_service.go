package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chainflow-backend/internal/repository/tasklog"
	"chainflow-backend/internal/repository/workflow"
	"chainflow-backend/internal/service/executor"
	"chainflow-backend/internal/service/processor"
	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"

	"github.com/google/uuid"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrChainNotFound    = errors.New("chain not found or inactive")
	ErrEventNotFound    = errors.New("trigger event not found on chain")
	ErrInvalidStatus    = errors.New("invalid workflow status")
)

// ChainFinder 查询链信息
type ChainFinder interface {
	GetChainByChainID(ctx context.Context, chainID int64) (*types.SupportChain, error)
}

// EventFinder 查询事件定义
type EventFinder interface {
	GetByID(ctx context.Context, id int64) (*types.EventDefinition, error)
}

// SecretEncrypter 加密 webhook secret
type SecretEncrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Service 工作流服务接口
type Service interface {
	CreateWorkflow(ctx context.Context, userID int64, walletAddress string, req *types.CreateWorkflowRequest) (*types.Workflow, error)
	ListWorkflows(ctx context.Context, userID int64, req *types.GetWorkflowListRequest) (*types.GetWorkflowListResponse, error)
	GetWorkflow(ctx context.Context, userID int64, id string) (*types.Workflow, error)
	UpdateWorkflow(ctx context.Context, userID int64, id string, req *types.UpdateWorkflowRequest) (*types.Workflow, error)
	GetWorkflowLogs(ctx context.Context, userID int64, id string, req *types.GetWorkflowLogsRequest) (*types.GetWorkflowLogsResponse, error)
}

type service struct {
	workflows  workflow.Repository
	logs       tasklog.Repository
	chains     ChainFinder
	events     EventFinder
	processors *processor.Registry
	secrets    SecretEncrypter
}

// NewService 创建工作流服务
func NewService(
	workflows workflow.Repository,
	logs tasklog.Repository,
	chains ChainFinder,
	events EventFinder,
	processors *processor.Registry,
	secrets SecretEncrypter,
) Service {
	return &service{
		workflows:  workflows,
		logs:       logs,
		chains:     chains,
		events:     events,
		processors: processors,
		secrets:    secrets,
	}
}

// CreateWorkflow 校验任务图与任务配置后原子创建工作流
func (s *service) CreateWorkflow(ctx context.Context, userID int64, walletAddress string, req *types.CreateWorkflowRequest) (*types.Workflow, error) {
	chain, err := s.chains.GetChainByChainID(ctx, req.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain: %w", err)
	}
	if chain == nil || !chain.IsActive {
		return nil, ErrChainNotFound
	}

	wf := &types.Workflow{
		ID:          uuid.NewString(),
		Name:        req.Name,
		UserID:      userID,
		UserAddress: walletAddress,
		ChainID:     chain.ChainID,
		Status:      types.WorkflowStatusRunning,
	}

	idByName := make(map[string]string, len(req.Tasks))
	for _, t := range req.Tasks {
		if _, dup := idByName[t.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate task name %q", executor.ErrInvalidTaskGraph, t.Name)
		}
		idByName[t.Name] = uuid.NewString()
	}

	tasks := make([]types.WorkflowTask, 0, len(req.Tasks))
	for _, t := range req.Tasks {
		task, err := s.buildTask(ctx, chain.ChainID, wf.ID, idByName, t)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	if _, err := executor.BuildTaskGraph(tasks); err != nil {
		return nil, err
	}
	wf.Tasks = tasks

	if err := s.workflows.CreateWithTasks(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	logger.Info("Workflow created", "workflow_id", wf.ID, "user_id", userID, "chain_id", wf.ChainID, "tasks", len(tasks))
	return wf, nil
}

func (s *service) buildTask(ctx context.Context, chainID int64, workflowID string, idByName map[string]string, req types.CreateTaskRequest) (*types.WorkflowTask, error) {
	if err := s.processors.Validate(req.Type, req.Config); err != nil {
		return nil, fmt.Errorf("task %s: %w", req.Name, err)
	}

	task := &types.WorkflowTask{
		ID:         idByName[req.Name],
		WorkflowID: workflowID,
		Type:       req.Type,
		Name:       req.Name,
		Config:     []byte(req.Config),
	}

	if req.DependsOn != nil {
		predecessor, ok := idByName[*req.DependsOn]
		if !ok {
			return nil, fmt.Errorf("%w: task %s depends on unknown task %q", executor.ErrInvalidTaskGraph, req.Name, *req.DependsOn)
		}
		task.DependsOn = &predecessor
	}

	switch req.Type {
	case types.TaskTypeTrigger:
		cfg, err := processor.ParseTriggerConfig(req.Config)
		if err != nil {
			return nil, err
		}
		def, err := s.events.GetByID(ctx, cfg.EventID)
		if err != nil {
			return nil, fmt.Errorf("failed to get event: %w", err)
		}
		// 触发事件必须属于工作流所在的链
		if def == nil || def.ChainID != chainID {
			return nil, ErrEventNotFound
		}
		task.EventID = &def.ID
	case types.TaskTypeWebhook:
		config, err := s.sealWebhookSecret(req.Config)
		if err != nil {
			return nil, err
		}
		task.Config = config
	}

	return task, nil
}

// sealWebhookSecret 加密配置中的 secret，其余字段保持不变
func (s *service) sealWebhookSecret(raw json.RawMessage) ([]byte, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode webhook config: %w", err)
	}

	secret, _ := fields["secret"].(string)
	if secret == "" || s.secrets == nil {
		return raw, nil
	}

	sealed, err := s.secrets.Encrypt(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt webhook secret: %w", err)
	}
	fields["secret"] = sealed
	return json.Marshal(fields)
}

// ListWorkflows 分页列出用户的工作流
func (s *service) ListWorkflows(ctx context.Context, userID int64, req *types.GetWorkflowListRequest) (*types.GetWorkflowListResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)

	workflows, total, err := s.workflows.ListByUser(ctx, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	if workflows == nil {
		workflows = []types.Workflow{}
	}

	return &types.GetWorkflowListResponse{
		Workflows: workflows,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	}, nil
}

// GetWorkflow 获取用户自己的工作流
func (s *service) GetWorkflow(ctx context.Context, userID int64, id string) (*types.Workflow, error) {
	wf, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	// 他人的工作流同样视为不存在
	if wf == nil || wf.UserID != userID {
		return nil, ErrWorkflowNotFound
	}
	return wf, nil
}

// UpdateWorkflow 修改名称或运行状态，任务不可修改
func (s *service) UpdateWorkflow(ctx context.Context, userID int64, id string, req *types.UpdateWorkflowRequest) (*types.Workflow, error) {
	wf, err := s.GetWorkflow(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil && *req.Name != wf.Name {
		updates["name"] = *req.Name
	}
	if req.Status != nil && *req.Status != wf.Status {
		switch *req.Status {
		case types.WorkflowStatusRunning, types.WorkflowStatusPaused:
			updates["status"] = *req.Status
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *req.Status)
		}
	}
	if len(updates) == 0 {
		return wf, nil
	}

	if err := s.workflows.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	if name, ok := updates["name"].(string); ok {
		wf.Name = name
	}
	if status, ok := updates["status"].(types.WorkflowStatus); ok {
		wf.Status = status
	}
	logger.Info("Workflow updated", "workflow_id", id, "user_id", userID, "status", wf.Status)
	return wf, nil
}

// GetWorkflowLogs 分页获取工作流执行记录
func (s *service) GetWorkflowLogs(ctx context.Context, userID int64, id string, req *types.GetWorkflowLogsRequest) (*types.GetWorkflowLogsResponse, error) {
	if _, err := s.GetWorkflow(ctx, userID, id); err != nil {
		return nil, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	logs, total, err := s.logs.ListByWorkflow(ctx, id, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow logs: %w", err)
	}
	if logs == nil {
		logs = []types.WorkflowLog{}
	}

	return &types.GetWorkflowLogsResponse{
		Logs:     logs,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = defaultPage
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
