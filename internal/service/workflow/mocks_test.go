package workflow_test

import (
	"context"
	"strings"

	"chainflow-backend/internal/types"

	"gorm.io/datatypes"
)

type mockWorkflowRepo struct {
	CreateWithTasksFn func(ctx context.Context, wf *types.Workflow) error
	GetByIDFn         func(ctx context.Context, id string) (*types.Workflow, error)
	ListByUserFn      func(ctx context.Context, userID int64, offset, limit int) ([]types.Workflow, int64, error)
	UpdateFn          func(ctx context.Context, id string, updates map[string]interface{}) error
}

func (m *mockWorkflowRepo) CreateWithTasks(ctx context.Context, wf *types.Workflow) error {
	if m.CreateWithTasksFn != nil {
		return m.CreateWithTasksFn(ctx, wf)
	}
	return nil
}

func (m *mockWorkflowRepo) GetByID(ctx context.Context, id string) (*types.Workflow, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockWorkflowRepo) ListByUser(ctx context.Context, userID int64, offset, limit int) ([]types.Workflow, int64, error) {
	if m.ListByUserFn != nil {
		return m.ListByUserFn(ctx, userID, offset, limit)
	}
	return nil, 0, nil
}

func (m *mockWorkflowRepo) GetRunningByEventIDs(context.Context, []int64) ([]types.Workflow, error) {
	return nil, nil
}

func (m *mockWorkflowRepo) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, id, updates)
	}
	return nil
}

type mockLogRepo struct {
	ListByWorkflowFn func(ctx context.Context, workflowID string, offset, limit int) ([]types.WorkflowLog, int64, error)
}

func (m *mockLogRepo) OpenWorkflowLog(context.Context, string, string, datatypes.JSON) (int64, error) {
	return 0, nil
}

func (m *mockLogRepo) CreateTaskLogs(context.Context, []types.TaskLog) error { return nil }

func (m *mockLogRepo) SkipPending(context.Context, int64) error { return nil }

func (m *mockLogRepo) CloseWorkflowLog(context.Context, int64, types.ExecutionStatus) error {
	return nil
}

func (m *mockLogRepo) ListByWorkflow(ctx context.Context, workflowID string, offset, limit int) ([]types.WorkflowLog, int64, error) {
	if m.ListByWorkflowFn != nil {
		return m.ListByWorkflowFn(ctx, workflowID, offset, limit)
	}
	return nil, 0, nil
}

type mockChains struct {
	chains map[int64]*types.SupportChain
}

func (m *mockChains) GetChainByChainID(_ context.Context, chainID int64) (*types.SupportChain, error) {
	return m.chains[chainID], nil
}

type mockEvents struct {
	defs map[int64]*types.EventDefinition
}

func (m *mockEvents) GetByID(_ context.Context, id int64) (*types.EventDefinition, error) {
	return m.defs[id], nil
}

// upperEncrypter 以可识别的方式“加密”
type upperEncrypter struct{}

func (upperEncrypter) Encrypt(plaintext string) (string, error) {
	return "enc:" + strings.ToUpper(plaintext), nil
}

func strPtr(s string) *string { return &s }
