package event

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"chainflow-backend/internal/types"
)

func ids(defs []types.EventDefinition) []int64 {
	out := make([]int64, 0, len(defs))
	for _, def := range defs {
		out = append(out, def.ID)
	}
	return out
}

var _ = Describe("cachedRepository", func() {
	var (
		ctx   context.Context
		rdb   *fakeRedis
		store *fakeStore
		repo  *cachedRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		rdb = newFakeRedis()
		store = &fakeStore{}
		repo = newCachedRepository(store, rdb, 0)

		Expect(repo.RegisterVersion(ctx, &types.ChainVersion{ChainID: 1, SpecVersion: 1000},
			[]types.EventDefinition{definition("balances.Deposit"), definition("balances.Transfer")})).To(Succeed())
	})

	It("loads misses from the database and serves repeats from the cache", func() {
		first, err := repo.LookupByNames(ctx, 1, []string{"balances.Deposit"})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids(first)).To(ConsistOf(int64(1)))

		second, err := repo.LookupByNames(ctx, 1, []string{"balances.Deposit"})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids(second)).To(ConsistOf(int64(1)))
		Expect(store.lookups).To(HaveLen(1))
	})

	It("only queries the database for names missing from the cache", func() {
		_, err := repo.LookupByNames(ctx, 1, []string{"balances.Deposit"})
		Expect(err).NotTo(HaveOccurred())

		defs, err := repo.LookupByNames(ctx, 1, []string{"balances.Deposit", "balances.Transfer"})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids(defs)).To(ConsistOf(int64(1), int64(2)))
		Expect(store.lookups).To(Equal([][]string{{"balances.Deposit"}, {"balances.Transfer"}}))
	})

	It("keeps earlier runtime versions after an upgrade", func() {
		_, err := repo.LookupByNames(ctx, 1, []string{"balances.Deposit"})
		Expect(err).NotTo(HaveOccurred())

		Expect(repo.RegisterVersion(ctx, &types.ChainVersion{ChainID: 1, SpecVersion: 2000},
			[]types.EventDefinition{definition("balances.Deposit")})).To(Succeed())

		defs, err := repo.LookupByNames(ctx, 1, []string{"balances.Deposit"})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids(defs)).To(ConsistOf(int64(1), int64(3)))
		Expect(store.lookups).To(HaveLen(2))

		cached, err := repo.LookupByNames(ctx, 1, []string{"balances.Deposit"})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids(cached)).To(ConsistOf(int64(1), int64(3)))
		Expect(store.lookups).To(HaveLen(2))
	})

	It("falls back to the database when the generation cannot be read", func() {
		rdb.getErr = errors.New("redis down")
		defs, err := repo.LookupByNames(ctx, 1, []string{"balances.Deposit"})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids(defs)).To(ConsistOf(int64(1)))
		Expect(rdb.keyCount()).To(Equal(1))
	})

	It("falls back to the database when the batch read fails", func() {
		rdb.mgetErr = errors.New("timeout")
		defs, err := repo.LookupByNames(ctx, 1, []string{"balances.Transfer"})
		Expect(err).NotTo(HaveOccurred())
		Expect(ids(defs)).To(ConsistOf(int64(2)))
	})

	It("returns database errors", func() {
		store.err = errors.New("db down")
		_, err := repo.LookupByNames(ctx, 1, []string{"balances.Deposit"})
		Expect(err).To(MatchError("db down"))
	})

	It("does not cache names without definitions", func() {
		defs, err := repo.LookupByNames(ctx, 1, []string{"system.Remarked"})
		Expect(err).NotTo(HaveOccurred())
		Expect(defs).To(BeEmpty())
		Expect(rdb.keyCount()).To(Equal(1))
	})
})
