package matcher

import (
	"context"
	"fmt"
	"sort"

	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"
	"chainflow-backend/pkg/utils"
)

// EventCatalog 事件定义查询，LookupByNames 返回名称在链上所有运行时版本的定义
type EventCatalog interface {
	LookupByNames(ctx context.Context, chainID int64, names []string) ([]types.EventDefinition, error)
}

// WorkflowFinder 查询订阅了事件的运行中工作流
type WorkflowFinder interface {
	GetRunningByEventIDs(ctx context.Context, eventIDs []int64) ([]types.Workflow, error)
}

// ChainFinder 查询链配置
type ChainFinder interface {
	GetChainByChainID(ctx context.Context, chainID int64) (*types.SupportChain, error)
}

// BlockMatcher 将区块事件匹配到工作流，每个 (workflow, block) 产出一个执行任务
type BlockMatcher struct {
	catalog   EventCatalog
	workflows WorkflowFinder
	chains    ChainFinder
}

// NewBlockMatcher 创建区块事件匹配器
func NewBlockMatcher(catalog EventCatalog, workflows WorkflowFinder, chains ChainFinder) *BlockMatcher {
	return &BlockMatcher{catalog: catalog, workflows: workflows, chains: chains}
}

// Match 匹配一个区块的事件；没有定义或没有工作流时返回空结果
func (m *BlockMatcher) Match(ctx context.Context, chainID int64, block types.BlockMeta, events []types.BlockEvent) ([]types.ExecutionJob, error) {
	names := uniqueNames(events)
	if len(names) == 0 {
		return nil, nil
	}

	defs, err := m.catalog.LookupByNames(ctx, chainID, names)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup event definitions: %w", err)
	}
	if len(defs) == 0 {
		logger.Debug("No event definitions for block", "chain_id", chainID, "block", block.Number)
		return nil, nil
	}

	// 工作流触发器绑定创建时的定义ID，因此按所有运行时版本的ID查询
	catalog := newVersionIndex(defs)
	eventIDs := make([]int64, 0, len(defs))
	for i := range defs {
		eventIDs = append(eventIDs, defs[i].ID)
	}

	workflows, err := m.workflows.GetRunningByEventIDs(ctx, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get running workflows: %w", err)
	}
	if len(workflows) == 0 {
		logger.Debug("No running workflows for block events", "chain_id", chainID, "block", block.Number, "events", len(names))
		return nil, nil
	}

	chain, err := m.chains.GetChainByChainID(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain %d: %w", chainID, err)
	}
	if chain == nil {
		return nil, fmt.Errorf("chain %d not found", chainID)
	}

	jobs := make([]types.ExecutionJob, 0, len(workflows))
	for i := range workflows {
		wf := &workflows[i]
		job, err := buildJob(wf, chain, block, events, catalog)
		if err != nil {
			logger.Error("Failed to build execution job", err, "workflow_id", wf.ID, "block", block.Hash)
			continue
		}
		jobs = append(jobs, *job)
	}

	logger.Info("Matched block events", "chain", chain.ChainName, "block", block.Number, "jobs", len(jobs))
	return jobs, nil
}

func buildJob(wf *types.Workflow, chain *types.SupportChain, block types.BlockMeta, events []types.BlockEvent, catalog *versionIndex) (*types.ExecutionJob, error) {
	trigger := findTrigger(wf)
	if trigger == nil || trigger.EventID == nil {
		return nil, fmt.Errorf("workflow %s has no trigger event", wf.ID)
	}

	def, ok := catalog.byID[*trigger.EventID]
	if !ok {
		return nil, fmt.Errorf("event %d not resolved for workflow %s", *trigger.EventID, wf.ID)
	}

	occurrence := firstOccurrence(events, def.Name)
	if occurrence == nil {
		return nil, fmt.Errorf("event %s not present in block %s", def.Name, block.Hash)
	}

	data, err := catalog.decode(def, occurrence.Data, chain.TokenDecimals)
	if err != nil {
		return nil, err
	}

	return &types.ExecutionJob{
		ID:          types.JobID(wf.ID, block.Hash),
		WorkflowID:  wf.ID,
		ChainID:     chain.ChainID,
		ChainName:   chain.ChainName,
		UserID:      wf.UserID,
		UserAddress: wf.UserAddress,
		EventID:     def.ID,
		EventName:   def.Name,
		Event: types.EventRawData{
			Timestamp:   block.Timestamp,
			BlockHash:   block.Hash,
			BlockNumber: block.Number,
			Success:     occurrence.Success,
			Data:        data,
		},
	}, nil
}

// DecodeEventData 按字段顺序把位置参数映射为字段名，余额类字段按链精度缩放
func DecodeEventData(def *types.EventDefinition, values []interface{}, decimals int) (map[string]interface{}, error) {
	fields := def.Fields()
	if len(values) != len(fields) {
		return nil, fmt.Errorf("event %s expects %d values, got %d", def.Name, len(fields), len(values))
	}

	data := make(map[string]interface{}, len(fields))
	for i, field := range fields {
		if field == nil {
			return nil, fmt.Errorf("event %s has an empty field descriptor at %d", def.Name, i)
		}
		data[field.Name] = utils.FormatValue(field.OriginalType, values[i], decimals)
	}
	return data, nil
}

// versionIndex 同名事件在各运行时版本下的定义，版本从新到旧
type versionIndex struct {
	byID   map[int64]*types.EventDefinition
	byName map[string][]*types.EventDefinition
}

func newVersionIndex(defs []types.EventDefinition) *versionIndex {
	idx := &versionIndex{
		byID:   make(map[int64]*types.EventDefinition, len(defs)),
		byName: make(map[string][]*types.EventDefinition),
	}
	for i := range defs {
		def := &defs[i]
		idx.byID[def.ID] = def
		idx.byName[def.Name] = append(idx.byName[def.Name], def)
	}
	for _, list := range idx.byName {
		sort.SliceStable(list, func(a, b int) bool { return list[a].SpecVersion > list[b].SpecVersion })
	}
	return idx
}

// decode 优先使用触发器绑定的定义，字段数不符时依次尝试同名的其他版本
func (idx *versionIndex) decode(bound *types.EventDefinition, values []interface{}, decimals int) (map[string]interface{}, error) {
	data, err := DecodeEventData(bound, values, decimals)
	if err == nil {
		return data, nil
	}
	for _, def := range idx.byName[bound.Name] {
		if def.ID == bound.ID {
			continue
		}
		if alt, altErr := DecodeEventData(def, values, decimals); altErr == nil {
			return alt, nil
		}
	}
	return nil, err
}

func findTrigger(wf *types.Workflow) *types.WorkflowTask {
	for i := range wf.Tasks {
		if wf.Tasks[i].Type == types.TaskTypeTrigger {
			return &wf.Tasks[i]
		}
	}
	return nil
}

func firstOccurrence(events []types.BlockEvent, name string) *types.BlockEvent {
	for i := range events {
		if events[i].Name == name {
			return &events[i]
		}
	}
	return nil
}

func uniqueNames(events []types.BlockEvent) []string {
	seen := make(map[string]struct{}, len(events))
	names := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.Name == "" {
			continue
		}
		if _, ok := seen[ev.Name]; ok {
			continue
		}
		seen[ev.Name] = struct{}{}
		names = append(names, ev.Name)
	}
	return names
}
