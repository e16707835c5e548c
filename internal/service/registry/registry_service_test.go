package registry_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"chainflow-backend/internal/service/registry"
	"chainflow-backend/internal/types"
)

type mockProvider struct {
	version       int
	registryCalls int
	metadata      *types.ChainMetadata
}

func (m *mockProvider) RuntimeVersion(context.Context, int64, string) (int, error) {
	return m.version, nil
}

func (m *mockProvider) Registry(context.Context, int64, string) (*types.ChainMetadata, error) {
	m.registryCalls++
	return m.metadata, nil
}

type mockVersions struct {
	hasFn func(chainID int64, spec int) (bool, error)
}

func (m *mockVersions) HasVersion(_ context.Context, chainID int64, spec int) (bool, error) {
	if m.hasFn != nil {
		return m.hasFn(chainID, spec)
	}
	return false, nil
}

type mockDefs struct {
	registerFn func(version *types.ChainVersion, defs []types.EventDefinition) error
	versions   []*types.ChainVersion
	defs       []types.EventDefinition
}

func (m *mockDefs) RegisterVersion(_ context.Context, version *types.ChainVersion, defs []types.EventDefinition) error {
	if m.registerFn != nil {
		if err := m.registerFn(version, defs); err != nil {
			return err
		}
	}
	m.versions = append(m.versions, version)
	m.defs = append(m.defs, defs...)
	return nil
}

func strPtr(s string) *string { return &s }

var _ = Describe("Service", func() {
	var (
		provider *mockProvider
		versions *mockVersions
		defs     *mockDefs
		svc      *registry.Service
		chain    *types.SupportChain
	)

	BeforeEach(func() {
		provider = &mockProvider{
			version: 1002000,
			metadata: &types.ChainMetadata{
				Types: []types.TypeNode{
					{ID: 0, Kind: types.TypeKindPrimitive, Primitive: "u128"},
					{ID: 1, Kind: types.TypeKindArray, ElemType: func() *int { v := 2; return &v }(), Len: 32},
					{ID: 2, Kind: types.TypeKindPrimitive, Primitive: "u8"},
				},
				Pallets: []types.PalletMetadata{{
					Name: "Balances",
					Events: []types.VariantMetadata{
						{Name: "Deposit", Index: 7, Fields: []types.TypeField{
							{Name: strPtr("who"), TypeID: 1, TypeName: "T::AccountId"},
							{Name: strPtr("amount"), TypeID: 0, TypeName: "T::Balance"},
						}},
						{Name: "Broken", Index: 8, Fields: []types.TypeField{{Name: strPtr("x"), TypeID: 42}}},
					},
					Errors: []types.VariantMetadata{{Name: "InsufficientBalance", Index: 2}},
				}},
			},
		}
		versions = &mockVersions{}
		defs = &mockDefs{}
		svc = registry.NewService(provider, versions, defs)
		chain = &types.SupportChain{ChainID: 1, ChainName: "polkadot"}
	})

	It("registers a new runtime version and isolates broken events", func() {
		res, err := svc.SyncRuntime(context.Background(), chain, "0xblock")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Registered).To(BeTrue())
		Expect(res.SpecVersion).To(Equal(1002000))
		Expect(res.Events).To(Equal(1))
		Expect(res.Errors).To(Equal(1))
		Expect(res.Failed).To(HaveLen(1))
		Expect(res.Failed[0].Name).To(Equal("Broken"))

		Expect(defs.versions).To(HaveLen(1))
		Expect(defs.versions[0].BlockHash).To(Equal("0xblock"))
		Expect(defs.defs).To(HaveLen(2))
		Expect(defs.defs[0].Name).To(Equal("balances.Deposit"))
	})

	It("does not fetch metadata for a version that is already stored", func() {
		versions.hasFn = func(int64, int) (bool, error) { return true, nil }
		res, err := svc.SyncRuntime(context.Background(), chain, "0xblock")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Registered).To(BeFalse())
		Expect(provider.registryCalls).To(BeZero())
	})

	It("remembers registered versions", func() {
		_, err := svc.SyncRuntime(context.Background(), chain, "0xa")
		Expect(err).NotTo(HaveOccurred())
		versions.hasFn = func(int64, int) (bool, error) { return false, fmt.Errorf("should not be called") }
		res, err := svc.SyncRuntime(context.Background(), chain, "0xb")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Registered).To(BeFalse())
		Expect(provider.registryCalls).To(Equal(1))
	})

	It("registers a parallel set when the runtime upgrades", func() {
		_, err := svc.SyncRuntime(context.Background(), chain, "0xa")
		Expect(err).NotTo(HaveOccurred())
		provider.version = 1003000
		res, err := svc.SyncRuntime(context.Background(), chain, "0xb")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Registered).To(BeTrue())
		Expect(defs.versions).To(HaveLen(2))
	})

	It("treats a concurrent registration as done", func() {
		defs.registerFn = func(*types.ChainVersion, []types.EventDefinition) error {
			return fmt.Errorf("failed to create chain version: %w", gorm.ErrDuplicatedKey)
		}
		res, err := svc.SyncRuntime(context.Background(), chain, "0xblock")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Registered).To(BeFalse())
	})
})
