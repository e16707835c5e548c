package processor

import (
	"encoding/json"
	"sync"

	"chainflow-backend/internal/types"

	"github.com/tidwall/gjson"
)

// WorkflowRef 工作流身份
type WorkflowRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChainRef 链身份
type ChainRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UserRef 用户身份
type UserRef struct {
	ID      int64  `json:"id"`
	Address string `json:"address"`
}

// ExecutionContext 任务执行上下文，变量路径如 event.data.amount、tasks.notify.status
type ExecutionContext struct {
	Event    types.EventRawData     `json:"event"`
	Workflow WorkflowRef            `json:"workflow"`
	Chain    ChainRef               `json:"chain"`
	User     UserRef                `json:"user"`
	Tasks    map[string]interface{} `json:"tasks"`

	mu  sync.Mutex
	doc []byte
}

// NewExecutionContext 根据队列任务构建执行上下文
func NewExecutionContext(job *types.ExecutionJob, workflowName string) *ExecutionContext {
	return &ExecutionContext{
		Event:    job.Event,
		Workflow: WorkflowRef{ID: job.WorkflowID, Name: workflowName},
		Chain:    ChainRef{ID: job.ChainID, Name: job.ChainName},
		User:     UserRef{ID: job.UserID, Address: job.UserAddress},
		Tasks:    make(map[string]interface{}),
	}
}

// SetTaskOutput 记录任务输出，供后续任务引用
func (c *ExecutionContext) SetTaskOutput(name string, output interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Tasks == nil {
		c.Tasks = make(map[string]interface{})
	}
	c.Tasks[name] = output
	c.doc = nil
}

// Lookup 按点分路径取值
func (c *ExecutionContext) Lookup(path string) gjson.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == nil {
		doc, err := json.Marshal(struct {
			Event    types.EventRawData     `json:"event"`
			Workflow WorkflowRef            `json:"workflow"`
			Chain    ChainRef               `json:"chain"`
			User     UserRef                `json:"user"`
			Tasks    map[string]interface{} `json:"tasks"`
		}{c.Event, c.Workflow, c.Chain, c.User, c.Tasks})
		if err != nil {
			return gjson.Result{}
		}
		c.doc = doc
	}
	return gjson.GetBytes(c.doc, path)
}
