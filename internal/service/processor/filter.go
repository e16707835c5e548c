package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"chainflow-backend/internal/types"

	"github.com/tidwall/gjson"
)

// Operator 过滤条件运算符
type Operator string

const (
	OpEqual            Operator = "equal"
	OpGreaterThan      Operator = "greaterThan"
	OpGreaterThanEqual Operator = "greaterThanEqual"
	OpLessThan         Operator = "lessThan"
	OpLessThanEqual    Operator = "lessThanEqual"
	OpContains         Operator = "contains"
	OpIsTrue           Operator = "isTrue"
	OpIsFalse          Operator = "isFalse"
)

func (o Operator) valid() bool {
	switch o {
	case OpEqual, OpGreaterThan, OpGreaterThanEqual, OpLessThan, OpLessThanEqual, OpContains, OpIsTrue, OpIsFalse:
		return true
	}
	return false
}

func (o Operator) unary() bool {
	return o == OpIsTrue || o == OpIsFalse
}

// Condition 单个条件
type Condition struct {
	Variable string      `json:"variable"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value,omitempty"`
}

// FilterConfig 外层为 OR，内层为 AND
type FilterConfig struct {
	Conditions [][]Condition `json:"conditions"`
}

// FilterOutput 过滤结果
type FilterOutput struct {
	Match bool `json:"match"`
}

// ParseFilterConfig 解析并校验过滤配置
func ParseFilterConfig(raw json.RawMessage) (*FilterConfig, error) {
	var cfg FilterConfig
	if len(raw) == 0 || string(raw) == "null" {
		return &cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, invalid(types.TaskTypeFilter, "%v", err)
	}

	for i, group := range cfg.Conditions {
		for j, cond := range group {
			if strings.TrimSpace(cond.Variable) == "" {
				return nil, invalid(types.TaskTypeFilter, "condition [%d][%d]: variable is required", i, j)
			}
			if !cond.Operator.valid() {
				return nil, invalid(types.TaskTypeFilter, "condition [%d][%d]: unsupported operator %q", i, j, cond.Operator)
			}
			if !cond.Operator.unary() && cond.Value == nil {
				return nil, invalid(types.TaskTypeFilter, "condition [%d][%d]: value is required for %s", i, j, cond.Operator)
			}
		}
	}
	return &cfg, nil
}

// Evaluate 任一 AND 组全部成立即匹配；条件列表为空时恒为匹配
func (cfg *FilterConfig) Evaluate(ec *ExecutionContext) (bool, error) {
	if len(cfg.Conditions) == 0 {
		return true, nil
	}

	for _, group := range cfg.Conditions {
		ok, err := evaluateGroup(group, ec)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func evaluateGroup(group []Condition, ec *ExecutionContext) (bool, error) {
	for _, cond := range group {
		ok, err := evaluateCondition(cond, ec)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evaluateCondition(cond Condition, ec *ExecutionContext) (bool, error) {
	left := ec.Lookup(cond.Variable)
	if !left.Exists() {
		return false, fmt.Errorf("variable %s not found", cond.Variable)
	}

	switch cond.Operator {
	case OpIsTrue, OpIsFalse:
		if !left.IsBool() {
			return false, fmt.Errorf("operator %s requires a boolean variable, %s is %s", cond.Operator, cond.Variable, left.Type)
		}
		return left.Bool() == (cond.Operator == OpIsTrue), nil

	case OpContains:
		if left.Type != gjson.String {
			return false, fmt.Errorf("operator contains requires a string variable, %s is %s", cond.Variable, left.Type)
		}
		needle, ok := cond.Value.(string)
		if !ok {
			return false, fmt.Errorf("operator contains requires a string value")
		}
		return strings.Contains(strings.ToLower(left.String()), strings.ToLower(needle)), nil

	case OpEqual:
		return equal(left, cond.Value), nil

	case OpGreaterThan, OpGreaterThanEqual, OpLessThan, OpLessThanEqual:
		l, ok := resultNumber(left)
		if !ok {
			return false, fmt.Errorf("operator %s requires a numeric variable, %s is %q", cond.Operator, cond.Variable, left.String())
		}
		r, ok := valueNumber(cond.Value)
		if !ok {
			return false, fmt.Errorf("operator %s requires a numeric value, got %v", cond.Operator, cond.Value)
		}
		cmp := l.Cmp(r)
		switch cond.Operator {
		case OpGreaterThan:
			return cmp > 0, nil
		case OpGreaterThanEqual:
			return cmp >= 0, nil
		case OpLessThan:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	}

	return false, fmt.Errorf("unsupported operator %q", cond.Operator)
}

// equal 数值按精确值比较，其余按字符串或布尔比较
func equal(left gjson.Result, value interface{}) bool {
	if l, ok := resultNumber(left); ok {
		if r, ok := valueNumber(value); ok {
			return l.Cmp(r) == 0
		}
	}
	if left.IsBool() {
		if b, ok := value.(bool); ok {
			return left.Bool() == b
		}
	}
	if value == nil {
		return left.Type == gjson.Null
	}
	return left.String() == fmt.Sprint(value)
}

// resultNumber 数字或数字字符串转为精确有理数，余额字符串不会丢精度
func resultNumber(r gjson.Result) (*big.Rat, bool) {
	switch r.Type {
	case gjson.Number:
		return new(big.Rat).SetString(r.Raw)
	case gjson.String:
		return parseRat(r.String())
	}
	return nil, false
}

func valueNumber(v interface{}) (*big.Rat, bool) {
	switch n := v.(type) {
	case float64:
		return new(big.Rat).SetFloat64(n), true
	case int:
		return new(big.Rat).SetInt64(int64(n)), true
	case int64:
		return new(big.Rat).SetInt64(n), true
	case json.Number:
		return parseRat(n.String())
	case string:
		return parseRat(n)
	}
	return nil, false
}

func parseRat(s string) (*big.Rat, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	return new(big.Rat).SetString(s)
}

// FilterProcessor 过滤任务
type FilterProcessor struct{}

func NewFilterProcessor() *FilterProcessor {
	return &FilterProcessor{}
}

func (p *FilterProcessor) Type() types.TaskType {
	return types.TaskTypeFilter
}

func (p *FilterProcessor) Validate(config json.RawMessage) error {
	_, err := ParseFilterConfig(config)
	return err
}

func (p *FilterProcessor) Process(_ context.Context, task *types.WorkflowTask, ec *ExecutionContext) (*Result, error) {
	cfg, err := ParseFilterConfig(json.RawMessage(task.Config))
	if err != nil {
		return nil, err
	}

	match, err := cfg.Evaluate(ec)
	if err != nil {
		return &Result{Input: cfg}, err
	}

	return &Result{
		Input:    cfg,
		Output:   FilterOutput{Match: match},
		Mismatch: !match,
	}, nil
}
