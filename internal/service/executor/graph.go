package executor

import (
	"errors"
	"fmt"

	"chainflow-backend/internal/types"
)

var ErrInvalidTaskGraph = errors.New("invalid task graph")

// TaskGraph 工作流任务链：任务ID到任务、任务ID到唯一后继
type TaskGraph struct {
	root *types.WorkflowTask
	byID map[string]*types.WorkflowTask
	next map[string]string
}

func graphError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidTaskGraph, fmt.Sprintf(format, args...))
}

// BuildTaskGraph 构建并校验任务链
// 恰好一个无前置的 trigger 任务，每个任务至多一个后继，且所有任务均可从 trigger 到达
func BuildTaskGraph(tasks []types.WorkflowTask) (*TaskGraph, error) {
	if len(tasks) == 0 {
		return nil, graphError("workflow has no tasks")
	}

	g := &TaskGraph{
		byID: make(map[string]*types.WorkflowTask, len(tasks)),
		next: make(map[string]string, len(tasks)),
	}
	names := make(map[string]struct{}, len(tasks))

	for i := range tasks {
		task := &tasks[i]
		if _, dup := g.byID[task.ID]; dup {
			return nil, graphError("duplicate task id %s", task.ID)
		}
		if _, dup := names[task.Name]; dup {
			return nil, graphError("duplicate task name %s", task.Name)
		}
		g.byID[task.ID] = task
		names[task.Name] = struct{}{}
	}

	for i := range tasks {
		task := &tasks[i]
		if task.DependsOn == nil {
			if task.Type != types.TaskTypeTrigger {
				return nil, graphError("task %s has no predecessor but is not a trigger", task.Name)
			}
			if g.root != nil {
				return nil, graphError("workflow has more than one trigger")
			}
			g.root = task
			continue
		}

		if task.Type == types.TaskTypeTrigger {
			return nil, graphError("trigger %s cannot depend on another task", task.Name)
		}
		pred := *task.DependsOn
		if _, ok := g.byID[pred]; !ok {
			return nil, graphError("task %s depends on unknown task %s", task.Name, pred)
		}
		if existing, taken := g.next[pred]; taken {
			return nil, graphError("task %s already has successor %s", g.byID[pred].Name, g.byID[existing].Name)
		}
		g.next[pred] = task.ID
	}

	if g.root == nil {
		return nil, graphError("workflow has no trigger")
	}

	if reached := len(g.Ordered()); reached != len(tasks) {
		return nil, graphError("%d task(s) unreachable from trigger", len(tasks)-reached)
	}
	return g, nil
}

// Root 返回 trigger 任务
func (g *TaskGraph) Root() *types.WorkflowTask {
	return g.root
}

// Next 返回后继任务，没有时为 nil
func (g *TaskGraph) Next(taskID string) *types.WorkflowTask {
	id, ok := g.next[taskID]
	if !ok {
		return nil
	}
	return g.byID[id]
}

// Ordered 从 trigger 开始按执行顺序返回任务
func (g *TaskGraph) Ordered() []*types.WorkflowTask {
	ordered := make([]*types.WorkflowTask, 0, len(g.byID))
	seen := make(map[string]struct{}, len(g.byID))
	for task := g.root; task != nil; task = g.Next(task.ID) {
		if _, loop := seen[task.ID]; loop {
			break
		}
		seen[task.ID] = struct{}{}
		ordered = append(ordered, task)
	}
	return ordered
}
