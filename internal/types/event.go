package types

import (
	"bytes"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// EventKind 定义种类
type EventKind string

const (
	EventKindEvent EventKind = "event"
	EventKindError EventKind = "error"
)

// EventDefinition 链上事件定义，按运行时版本保存，记录后不再修改
type EventDefinition struct {
	ID          int64                                  `json:"id" gorm:"primaryKey;autoIncrement"`
	ChainID     int64                                  `json:"chain_id" gorm:"not null;index:idx_event_chain_name"`
	SpecVersion int                                    `json:"spec_version" gorm:"not null;index"`
	Pallet      string                                 `json:"pallet" gorm:"size:100;not null"`
	Name        string                                 `json:"name" gorm:"size:200;not null;index:idx_event_chain_name"`
	Kind        EventKind                              `json:"kind" gorm:"size:10;not null;default:'event'"`
	Index       int                                    `json:"index" gorm:"not null"`
	Description string                                 `json:"description" gorm:"type:text"`
	Schema      datatypes.JSONType[[]*FieldDescriptor] `json:"schema" gorm:"type:jsonb"`
	CreatedAt   time.Time                              `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 设置表名
func (EventDefinition) TableName() string {
	return "event_definitions"
}

// Fields 返回有序的字段描述
func (e *EventDefinition) Fields() []*FieldDescriptor {
	return e.Schema.Data()
}

// ParseError 单个事件解析失败记录
type ParseError struct {
	Pallet string    `json:"pallet"`
	Name   string    `json:"name"`
	Kind   EventKind `json:"kind"`
	Err    error     `json:"-"`
}

func (e ParseError) Error() string {
	return e.Pallet + "." + e.Name + ": " + e.Err.Error()
}

func (e ParseError) Unwrap() error {
	return e.Err
}

// BlockEvent 区块中的一条原始事件，Data 为按字段顺序排列的值
type BlockEvent struct {
	Name    string        `json:"name"` // pallet.Event，例如 balances.Deposit
	Data    []interface{} `json:"data"`
	Success bool          `json:"success"`
}

// UnmarshalJSON 数值保留为 json.Number，u128 余额不经过 float64
func (e *BlockEvent) UnmarshalJSON(data []byte) error {
	type plain BlockEvent
	var p plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return err
	}
	*e = BlockEvent(p)
	return nil
}

// BlockMeta 区块元信息
type BlockMeta struct {
	Hash      string `json:"hash"`
	Number    uint64 `json:"number"`
	Timestamp int64  `json:"timestamp"`
}

// EventRawData 流水线中传递的单次事件数据
type EventRawData struct {
	Timestamp   int64                  `json:"timestamp"`
	BlockHash   string                 `json:"blockHash"`
	BlockNumber uint64                 `json:"blockNumber"`
	Success     bool                   `json:"success"`
	Data        map[string]interface{} `json:"data"`
}

// GetEventListRequest 获取事件定义列表请求
type GetEventListRequest struct {
	ChainID int64  `form:"chain_id" binding:"required"`
	Pallet  string `form:"pallet"`
	Kind    string `form:"kind" binding:"omitempty,oneof=event error"`
}

// EventSchema 事件定义及预览用的示例数据
type EventSchema struct {
	EventDefinition
	ExamplePayload map[string]interface{} `json:"example_payload"`
}

// GetEventListResponse 获取事件定义列表响应
type GetEventListResponse struct {
	Events []EventSchema `json:"events"`
	Total  int           `json:"total"`
}
