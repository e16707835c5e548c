package scanner_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"chainflow-backend/internal/config"
	"chainflow-backend/internal/service/scanner"
	"chainflow-backend/internal/types"
)

var _ = Describe("ChainScanner", func() {
	var (
		cfg      *config.ScannerConfig
		chain    *types.SupportChain
		data     *fakeChainData
		runtime  *fakeRuntime
		repo     *fakeProgressRepo
		producer *fakeProducer
	)

	BeforeEach(func() {
		cfg = &config.ScannerConfig{ScanInterval: time.Millisecond, ScanIntervalSlow: time.Millisecond, ScanBatchSize: 5, ErrorBackoff: time.Millisecond}
		chain = &types.SupportChain{ChainID: 1, ChainName: "polkadot"}
		data = &fakeChainData{head: 100, eventsFn: func(hash string) []types.BlockEvent {
			if hash == "0x97" {
				return nil
			}
			return []types.BlockEvent{{Name: "balances.Deposit", Data: []interface{}{"a", "1"}, Success: true}}
		}}
		runtime = &fakeRuntime{version: 1002000}
		repo = newFakeProgressRepo()
		producer = &fakeProducer{}
	})

	newScanner := func(progress *types.BlockScanProgress) *scanner.ChainScanner {
		return scanner.NewChainScanner(cfg, chain, progress, data, runtime, repo, producer)
	}

	It("starts at the finalized head on first run", func() {
		cs := newScanner(&types.BlockScanProgress{ChainID: 1})
		Expect(cs.ScanOnce(context.Background())).To(Succeed())

		Expect(data.hashCalls).To(BeEmpty())
		Expect(producer.keys).To(Equal([]string{"0x100"}))
		msg := producer.payloads[0].(*types.BlockMessage)
		Expect(msg.ChainID).To(Equal(int64(1)))
		Expect(msg.Block.Number).To(Equal(uint64(100)))
		Expect(msg.Block.Timestamp).To(Equal(int64(1700000000000)))
		Expect(repo.blocks).To(Equal([]int64{100}))
		Expect(repo.specs).To(Equal([]int{1002000}))
		Expect(cs.GetStatus().LastScannedBlock).To(Equal(int64(100)))
	})

	It("walks forward from stored progress in batches and skips empty blocks", func() {
		cs := newScanner(&types.BlockScanProgress{ChainID: 1, LastScannedBlock: 94, LastScannedHash: "0x94", SpecVersion: 1002000})
		Expect(cs.ScanOnce(context.Background())).To(Succeed())

		Expect(data.hashCalls).To(Equal([]uint64{95, 96, 97, 98, 99}))
		Expect(producer.keys).To(Equal([]string{"0x95", "0x96", "0x98", "0x99"}))
		Expect(runtime.hashes).To(HaveLen(5))
		Expect(repo.specs).To(BeEmpty())
		Expect(cs.GetStatus().LastScannedBlock).To(Equal(int64(99)))

		Expect(cs.ScanOnce(context.Background())).To(Succeed())
		Expect(producer.keys).To(HaveLen(5))
		Expect(cs.GetStatus().BlocksLag).To(BeZero())
	})

	It("does nothing when already at the head", func() {
		cs := newScanner(&types.BlockScanProgress{ChainID: 1, LastScannedBlock: 100, LastScannedHash: "0x100"})
		Expect(cs.ScanOnce(context.Background())).To(Succeed())
		Expect(producer.keys).To(BeEmpty())
	})

	It("runs and stops its loop", func() {
		cs := newScanner(&types.BlockScanProgress{ChainID: 1})
		Expect(cs.Start(context.Background())).To(Succeed())
		Expect(cs.Start(context.Background())).To(HaveOccurred())
		Eventually(func() int64 { return cs.GetStatus().LastScannedBlock }).Should(Equal(int64(100)))
		cs.Stop()
	})
})

var _ = Describe("Service", func() {
	It("starts a scanner per active chain and skips paused ones", func() {
		repo := newFakeProgressRepo()
		repo.progress[2] = &types.BlockScanProgress{ChainID: 2, ScanStatus: types.ScanStatusPaused}
		chains := &fakeChains{chains: []*types.SupportChain{
			{ChainID: 1, ChainName: "polkadot"},
			{ChainID: 2, ChainName: "kusama"},
		}}
		cfg := &config.ScannerConfig{ScanInterval: time.Hour, ScanIntervalSlow: time.Hour, ScanBatchSize: 1, ErrorBackoff: time.Hour}

		svc := scanner.NewService(cfg, chains, &fakeChainData{head: 10}, &fakeRuntime{version: 1}, repo, &fakeProducer{})
		Expect(svc.Start(context.Background())).To(Succeed())
		defer svc.Stop()

		statuses := svc.GetStatus()
		Expect(statuses).To(HaveLen(1))
		Expect(statuses[0].ChainName).To(Equal("polkadot"))
		Expect(repo.progress).To(HaveKey(int64(1)))
	})
})
