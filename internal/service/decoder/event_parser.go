package decoder

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"chainflow-backend/internal/types"

	"gorm.io/datatypes"
)

// ParseEvents 解析所有 pallet 的事件与错误定义
// 单个定义解析失败只记录到错误列表，不影响其他定义
func ParseEvents(registry types.TypeRegistry, pallets []types.PalletMetadata) ([]types.EventDefinition, []types.ParseError) {
	var (
		defs []types.EventDefinition
		errs []types.ParseError
	)

	for _, pallet := range pallets {
		for _, variant := range pallet.Events {
			def, err := parseVariant(registry, pallet.Name, variant, types.EventKindEvent)
			if err != nil {
				errs = append(errs, types.ParseError{Pallet: pallet.Name, Name: variant.Name, Kind: types.EventKindEvent, Err: err})
				continue
			}
			defs = append(defs, def)
		}
		for _, variant := range pallet.Errors {
			def, err := parseVariant(registry, pallet.Name, variant, types.EventKindError)
			if err != nil {
				errs = append(errs, types.ParseError{Pallet: pallet.Name, Name: variant.Name, Kind: types.EventKindError, Err: err})
				continue
			}
			defs = append(defs, def)
		}
	}

	return defs, errs
}

func parseVariant(registry types.TypeRegistry, pallet string, variant types.VariantMetadata, kind types.EventKind) (types.EventDefinition, error) {
	name := EventName(pallet, variant.Name)
	rng := NewExampleRand(string(kind) + ":" + name)

	fields := make([]*types.FieldDescriptor, 0, len(variant.Fields))
	for i, field := range variant.Fields {
		desc, err := ResolveField(registry, field, i)
		if err != nil {
			return types.EventDefinition{}, fmt.Errorf("field %d: %w", i, err)
		}
		PopulateExamples(desc, rng)
		fields = append(fields, desc)
	}

	return types.EventDefinition{
		Pallet:      pallet,
		Name:        name,
		Kind:        kind,
		Index:       variant.Index,
		Description: strings.Join(variant.Docs, " "),
		Schema:      datatypes.NewJSONType(fields),
	}, nil
}

// EventName 拼接事件全名，pallet 名首字母小写，例如 Balances + Deposit -> balances.Deposit
func EventName(pallet, event string) string {
	return lowerFirst(pallet) + "." + event
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// ExamplePayload 将字段示例组装为预览用的 data 对象
func ExamplePayload(fields []*types.FieldDescriptor) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		out[f.Name] = exampleValue(f)
	}
	return out
}

func exampleValue(f *types.FieldDescriptor) interface{} {
	if f.Example != nil || len(f.Definition) == 0 {
		return f.Example
	}

	switch f.Type {
	case types.GeneralTypeArray:
		return []interface{}{exampleValue(f.Definition[0])}
	case types.GeneralTypeTuple:
		items := make([]interface{}, 0, len(f.Definition))
		for _, child := range f.Definition {
			items = append(items, exampleValue(child))
		}
		return items
	default:
		return ExamplePayload(f.Definition)
	}
}
