package decoder

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"chainflow-backend/internal/types"
)

// MaxDepth 类型注册表递归解析的最大深度
const MaxDepth = 64

var (
	ErrTypeNotFound = errors.New("type not found in registry")
	ErrTypeCycle    = errors.New("cyclic type reference")
	ErrTypeTooDeep  = errors.New("type nesting exceeds max depth")
)

var numberPattern = regexp.MustCompile(`(?i)^(U|I)(8|16|32|64|128|256)$`)

// Resolve 将类型ID解析为通用字段描述，不生成示例值
func Resolve(registry types.TypeRegistry, typeID int) (*types.FieldDescriptor, error) {
	return resolve(registry, typeID, make(map[int]bool), 0)
}

// ResolveField 解析一个声明字段，名称缺失时使用位置下标
func ResolveField(registry types.TypeRegistry, field types.TypeField, index int) (*types.FieldDescriptor, error) {
	desc, err := Resolve(registry, field.TypeID)
	if err != nil {
		return nil, err
	}
	applyField(desc, field, index)
	return desc, nil
}

func applyField(desc *types.FieldDescriptor, field types.TypeField, index int) {
	if field.Name != nil && *field.Name != "" {
		desc.Name = *field.Name
	} else {
		desc.Name = strconv.Itoa(index)
	}
	if field.TypeName != "" {
		desc.OriginalType = field.TypeName
	}
	desc.Description = strings.Join(field.Docs, " ")
}

func resolve(registry types.TypeRegistry, typeID int, path map[int]bool, depth int) (*types.FieldDescriptor, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: type %d", ErrTypeTooDeep, typeID)
	}
	if path[typeID] {
		return nil, fmt.Errorf("%w: type %d", ErrTypeCycle, typeID)
	}

	node, ok := registry[typeID]
	if !ok || node == nil {
		return nil, fmt.Errorf("%w: %d", ErrTypeNotFound, typeID)
	}

	path[typeID] = true
	defer delete(path, typeID)

	desc := &types.FieldDescriptor{
		Type:         types.GeneralTypeUnknown,
		OriginalType: typeLabel(registry, node),
	}

	switch node.Kind {
	case types.TypeKindPrimitive:
		desc.Type = primitiveType(node.Primitive)
		desc.Primitive = node.Primitive

	case types.TypeKindArray:
		if node.ElemType == nil {
			return nil, fmt.Errorf("array type %d has no element type", typeID)
		}
		elem, err := resolve(registry, *node.ElemType, path, depth+1)
		if err != nil {
			return nil, err
		}
		desc.Type = types.GeneralTypeArray
		desc.Definition = []*types.FieldDescriptor{elem}

	case types.TypeKindTuple:
		desc.Type = types.GeneralTypeTuple
		desc.Definition = make([]*types.FieldDescriptor, 0, len(node.Tuple))
		for i, memberID := range node.Tuple {
			member, err := resolve(registry, memberID, path, depth+1)
			if err != nil {
				return nil, err
			}
			member.Name = strconv.Itoa(i)
			desc.Definition = append(desc.Definition, member)
		}

	case types.TypeKindComposite:
		desc.Type = types.GeneralTypeObject
		desc.Definition = make([]*types.FieldDescriptor, 0, len(node.Fields))
		for i, field := range node.Fields {
			member, err := resolve(registry, field.TypeID, path, depth+1)
			if err != nil {
				return nil, err
			}
			applyField(member, field, i)
			desc.Definition = append(desc.Definition, member)
		}
	}

	return desc, nil
}

func primitiveType(label string) types.GeneralType {
	switch strings.ToLower(label) {
	case "str", "char", "string":
		return types.GeneralTypeString
	case "bool":
		return types.GeneralTypeBool
	}
	if numberPattern.MatchString(label) {
		return types.GeneralTypeNumber
	}
	return types.GeneralTypeUnknown
}

// typeLabel 生成节点的原始类型标签
func typeLabel(registry types.TypeRegistry, node *types.TypeNode) string {
	if len(node.Path) > 0 {
		return strings.Join(node.Path, "::")
	}

	switch node.Kind {
	case types.TypeKindPrimitive:
		return node.Primitive
	case types.TypeKindArray:
		if node.ElemType != nil {
			return fmt.Sprintf("[%s; %d]", shallowLabel(registry, *node.ElemType), node.Len)
		}
	case types.TypeKindTuple:
		parts := make([]string, 0, len(node.Tuple))
		for _, id := range node.Tuple {
			parts = append(parts, shallowLabel(registry, id))
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return string(node.Kind)
}

// shallowLabel 只取一层标签，避免在标签生成中递归
func shallowLabel(registry types.TypeRegistry, id int) string {
	node, ok := registry[id]
	if !ok || node == nil {
		return strconv.Itoa(id)
	}
	if len(node.Path) > 0 {
		return node.Path[len(node.Path)-1]
	}
	if node.Kind == types.TypeKindPrimitive {
		return node.Primitive
	}
	return string(node.Kind)
}
