package decoder_test

import "chainflow-backend/internal/types"

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// sampleRegistry 模拟一个精简的运行时类型注册表
func sampleRegistry() types.TypeRegistry {
	return types.NewTypeRegistry([]types.TypeNode{
		{ID: 0, Kind: types.TypeKindPrimitive, Primitive: "u8"},
		{ID: 1, Kind: types.TypeKindArray, ElemType: intPtr(0), Len: 32},
		{ID: 2, Kind: types.TypeKindComposite, Path: []string{"sp_core", "crypto", "AccountId32"},
			Fields: []types.TypeField{{TypeID: 1, TypeName: "[u8; 32]"}}},
		{ID: 3, Kind: types.TypeKindPrimitive, Primitive: "u128"},
		{ID: 4, Kind: types.TypeKindPrimitive, Primitive: "bool"},
		{ID: 5, Kind: types.TypeKindPrimitive, Primitive: "str"},
		{ID: 6, Kind: types.TypeKindTuple, Tuple: []int{3, 4}},
		{ID: 7, Kind: types.TypeKindComposite, Path: []string{"pallet_demo", "Info"},
			Fields: []types.TypeField{
				{Name: strPtr("amount"), TypeID: 3, TypeName: "T::Balance", Docs: []string{"Amount", "moved."}},
				{TypeID: 4},
			}},
		{ID: 8, Kind: types.TypeKindVariant, Path: []string{"Option"}},
		{ID: 9, Kind: types.TypeKindComposite, Path: []string{"Loop"}, Fields: []types.TypeField{{TypeID: 9}}},
		{ID: 10, Kind: types.TypeKindPrimitive, Primitive: "I32"},
		{ID: 11, Kind: types.TypeKindPrimitive, Primitive: "f64"},
		{ID: 12, Kind: types.TypeKindPrimitive, Primitive: "char"},
		{ID: 13, Kind: types.TypeKindComposite, Path: []string{"primitive_types", "H256"},
			Fields: []types.TypeField{{TypeID: 1}}},
		{ID: 14, Kind: types.TypeKindArray, ElemType: intPtr(99), Len: 2},
	})
}
