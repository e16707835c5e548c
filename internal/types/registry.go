package types

// TypeKind 类型注册表节点种类
type TypeKind string

const (
	TypeKindPrimitive   TypeKind = "primitive"
	TypeKindArray       TypeKind = "array"
	TypeKindTuple       TypeKind = "tuple"
	TypeKindComposite   TypeKind = "composite"
	TypeKindVariant     TypeKind = "variant"
	TypeKindSequence    TypeKind = "sequence"
	TypeKindCompact     TypeKind = "compact"
	TypeKindBitSequence TypeKind = "bitSequence"
)

// TypeNode 链上类型注册表中的一个节点
type TypeNode struct {
	ID        int         `json:"id"`
	Kind      TypeKind    `json:"kind"`
	Primitive string      `json:"primitive,omitempty"` // u8 / u128 / bool / str / char ...
	Path      []string    `json:"path,omitempty"`
	Fields    []TypeField `json:"fields,omitempty"`   // composite
	ElemType  *int        `json:"elemType,omitempty"` // array
	Len       int         `json:"len,omitempty"`      // array
	Tuple     []int       `json:"tuple,omitempty"`    // tuple
	Docs      []string    `json:"docs,omitempty"`
}

// TypeField 复合类型或事件中声明的字段
type TypeField struct {
	Name     *string  `json:"name,omitempty"`
	TypeID   int      `json:"type"`
	TypeName string   `json:"typeName,omitempty"`
	Docs     []string `json:"docs,omitempty"`
}

// TypeRegistry 以类型ID索引的只读注册表
type TypeRegistry map[int]*TypeNode

// NewTypeRegistry 根据节点列表构建注册表
func NewTypeRegistry(nodes []TypeNode) TypeRegistry {
	registry := make(TypeRegistry, len(nodes))
	for i := range nodes {
		node := nodes[i]
		registry[node.ID] = &node
	}
	return registry
}

// VariantMetadata pallet 中的一个事件或错误定义
type VariantMetadata struct {
	Name   string      `json:"name"`
	Index  int         `json:"index"`
	Fields []TypeField `json:"fields,omitempty"`
	Docs   []string    `json:"docs,omitempty"`
}

// PalletMetadata 单个 pallet 的事件与错误元数据
type PalletMetadata struct {
	Name   string            `json:"name"`
	Index  int               `json:"index"`
	Events []VariantMetadata `json:"events,omitempty"`
	Errors []VariantMetadata `json:"errors,omitempty"`
}

// ChainMetadata 某一运行时版本的类型注册表和 pallet 元数据
type ChainMetadata struct {
	SpecVersion int              `json:"specVersion"`
	Types       []TypeNode       `json:"types"`
	Pallets     []PalletMetadata `json:"pallets"`
}

// GeneralType 字段的通用类型
type GeneralType string

const (
	GeneralTypeObject  GeneralType = "Object"
	GeneralTypeArray   GeneralType = "Array"
	GeneralTypeNumber  GeneralType = "Number"
	GeneralTypeString  GeneralType = "String"
	GeneralTypeBool    GeneralType = "Bool"
	GeneralTypeTuple   GeneralType = "Tuple"
	GeneralTypeUnknown GeneralType = "Unknown"
)

// FieldDescriptor 解码后的字段描述
// Definition: Array 为单个元素描述，Tuple/Object 为有序成员列表
type FieldDescriptor struct {
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	Type         GeneralType        `json:"type"`
	OriginalType string             `json:"originalType"`
	Primitive    string             `json:"primitive,omitempty"` // 仅叶子节点
	Definition   []*FieldDescriptor `json:"definition,omitempty"`
	Example      interface{}        `json:"example,omitempty"`
}
