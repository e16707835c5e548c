package chainrpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ethereum/go-ethereum/rpc"

	"chainflow-backend/internal/config"
	"chainflow-backend/internal/service/chainrpc"
	"chainflow-backend/internal/types"
)

type chainService struct {
	failures int32
}

func (s *chainService) GetFinalizedHead() (string, error) {
	if atomic.AddInt32(&s.failures, -1) >= 0 {
		return "", errors.New("node syncing")
	}
	return "0xfinal", nil
}

func (s *chainService) GetHeader(hash string) (map[string]string, error) {
	if hash != "0xfinal" {
		return nil, errors.New("unknown block")
	}
	return map[string]string{"number": "0x1312d00", "parentHash": "0xparent"}, nil
}

func (s *chainService) GetBlockHash(number uint64) *string {
	if number > 20000000 {
		return nil
	}
	hash := "0xhash"
	return &hash
}

type stateService struct{}

func (stateService) GetRuntimeVersion(hash string) map[string]interface{} {
	return map[string]interface{}{"specName": "polkadot", "specVersion": 1002000}
}

type gatewayService struct{}

func (gatewayService) GetTypeRegistry(hash string) *types.ChainMetadata {
	return &types.ChainMetadata{
		SpecVersion: 1002000,
		Types:       []types.TypeNode{{ID: 0, Kind: types.TypeKindPrimitive, Primitive: "u128"}},
		Pallets:     []types.PalletMetadata{{Name: "Balances", Index: 5}},
	}
}

func (gatewayService) GetBlockEvents(hash string) map[string]interface{} {
	return map[string]interface{}{
		"timestamp": 1700000000000,
		"events": []map[string]interface{}{
			{"name": "balances.Deposit", "data": []interface{}{"alice", json.Number("123456789012345678901")}, "success": true},
		},
	}
}

type staticChains struct{}

func (staticChains) GetChainByChainID(_ context.Context, chainID int64) (*types.SupportChain, error) {
	if chainID != 1 {
		return nil, nil
	}
	return &types.SupportChain{ChainID: 1, ChainName: "polkadot", RPCURL: "ws://node"}, nil
}

var _ = Describe("Provider", func() {
	var (
		chainSvc *chainService
		manager  *chainrpc.RPCManager
		provider *chainrpc.Provider
		dials    int32
	)

	BeforeEach(func() {
		chainSvc = &chainService{}
		server := rpc.NewServer()
		Expect(server.RegisterName("chain", chainSvc)).To(Succeed())
		Expect(server.RegisterName("state", stateService{})).To(Succeed())
		Expect(server.RegisterName("chainflow", gatewayService{})).To(Succeed())
		DeferCleanup(server.Stop)

		atomic.StoreInt32(&dials, 0)
		cfg := &config.RPCConfig{Timeout: time.Second, RetryMax: 3, RetryDelay: time.Millisecond}
		manager = chainrpc.NewRPCManager(cfg, staticChains{}, chainrpc.WithDialer(func(_ context.Context, url string) (*rpc.Client, error) {
			Expect(url).To(Equal("ws://node"))
			atomic.AddInt32(&dials, 1)
			return rpc.DialInProc(server), nil
		}))
		DeferCleanup(manager.Stop)
		provider = chainrpc.NewProvider(manager)
	})

	It("reads the runtime spec version", func() {
		v, err := provider.RuntimeVersion(context.Background(), 1, "0xfinal")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(1002000))
	})

	It("reads the type registry", func() {
		md, err := provider.Registry(context.Background(), 1, "0xfinal")
		Expect(err).NotTo(HaveOccurred())
		Expect(md.Types).To(HaveLen(1))
		Expect(md.Pallets[0].Name).To(Equal("Balances"))
	})

	It("resolves the finalized header with a decoded number", func() {
		h, err := provider.LatestFinalized(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Hash).To(Equal("0xfinal"))
		Expect(h.Number).To(Equal(uint64(20000000)))
	})

	It("retries and reconnects after a failed call", func() {
		chainSvc.failures = 2
		h, err := provider.LatestFinalized(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Hash).To(Equal("0xfinal"))
		Expect(atomic.LoadInt32(&dials)).To(Equal(int32(3)))
	})

	It("gives up after the configured attempts", func() {
		chainSvc.failures = 10
		_, err := provider.LatestFinalized(context.Background(), 1)
		Expect(err).To(MatchError(ContainSubstring("after 3 attempts")))
	})

	It("reports missing blocks", func() {
		hash, err := provider.BlockHash(context.Background(), 1, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(hash).To(Equal("0xhash"))

		_, err = provider.BlockHash(context.Background(), 1, 30000000)
		Expect(err).To(MatchError(ContainSubstring("not found")))
	})

	It("reads decoded block events", func() {
		ts, events, err := provider.BlockEvents(context.Background(), 1, "0xfinal")
		Expect(err).NotTo(HaveOccurred())
		Expect(ts).To(Equal(int64(1700000000000)))
		Expect(events).To(HaveLen(1))
		Expect(events[0].Name).To(Equal("balances.Deposit"))
		Expect(events[0].Data).To(Equal([]interface{}{"alice", json.Number("123456789012345678901")}))
	})

	It("fails for chains without an RPC URL", func() {
		_, err := provider.RuntimeVersion(context.Background(), 99, "0x")
		Expect(err).To(MatchError(ContainSubstring("no RPC URL configured")))
	})
})
