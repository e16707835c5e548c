package processor

import (
	"context"
	"encoding/json"

	"chainflow-backend/internal/types"
)

// TriggerConfig 触发器配置
type TriggerConfig struct {
	EventID int64 `json:"event_id"`
}

// ParseTriggerConfig 解析并校验触发器配置
func ParseTriggerConfig(raw json.RawMessage) (*TriggerConfig, error) {
	var cfg TriggerConfig
	if err := decodeConfig(types.TaskTypeTrigger, raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.EventID <= 0 {
		return nil, invalid(types.TaskTypeTrigger, "event_id is required")
	}
	return &cfg, nil
}

// TriggerProcessor 触发器是工作流的根，匹配已在区块匹配阶段完成
type TriggerProcessor struct{}

func NewTriggerProcessor() *TriggerProcessor {
	return &TriggerProcessor{}
}

func (p *TriggerProcessor) Type() types.TaskType {
	return types.TaskTypeTrigger
}

func (p *TriggerProcessor) Validate(config json.RawMessage) error {
	_, err := ParseTriggerConfig(config)
	return err
}

func (p *TriggerProcessor) Process(_ context.Context, task *types.WorkflowTask, ec *ExecutionContext) (*Result, error) {
	return &Result{
		Input:  ec.Event,
		Output: ec.Event,
	}, nil
}
