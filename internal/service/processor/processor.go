package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chainflow-backend/internal/types"
)

var (
	ErrInvalidTaskConfig = errors.New("invalid task config")
	ErrUnknownTaskType   = errors.New("unknown task type")
)

// ValidationError 任务配置校验失败
type ValidationError struct {
	Type   types.TaskType
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s task config: %s", e.Type, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidTaskConfig
}

func invalid(t types.TaskType, format string, args ...interface{}) error {
	return &ValidationError{Type: t, Reason: fmt.Sprintf(format, args...)}
}

// Result 任务执行结果
// Mismatch 仅由过滤任务设置，表示整个工作流不匹配
type Result struct {
	Input    interface{}
	Output   interface{}
	Mismatch bool
}

// Processor 单一任务类型的处理器
type Processor interface {
	Type() types.TaskType
	Validate(config json.RawMessage) error
	Process(ctx context.Context, task *types.WorkflowTask, ec *ExecutionContext) (*Result, error)
}

// Registry 任务类型到处理器的映射
type Registry struct {
	processors map[types.TaskType]Processor
}

// NewRegistry 创建处理器注册表
func NewRegistry(processors ...Processor) *Registry {
	r := &Registry{processors: make(map[types.TaskType]Processor, len(processors))}
	for _, p := range processors {
		r.processors[p.Type()] = p
	}
	return r
}

// Get 获取处理器
func (r *Registry) Get(t types.TaskType) (Processor, error) {
	p, ok := r.processors[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, t)
	}
	return p, nil
}

// Validate 校验任务配置，创建工作流与执行时共用
func (r *Registry) Validate(t types.TaskType, config json.RawMessage) error {
	p, err := r.Get(t)
	if err != nil {
		return err
	}
	return p.Validate(config)
}

// decodeConfig 严格解析配置
func decodeConfig(t types.TaskType, raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return invalid(t, "config is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalid(t, "%v", err)
	}
	return nil
}
