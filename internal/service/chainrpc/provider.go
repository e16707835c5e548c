package chainrpc

import (
	"context"
	"fmt"

	"chainflow-backend/internal/types"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	methodRuntimeVersion = "state_getRuntimeVersion"
	methodFinalizedHead  = "chain_getFinalizedHead"
	methodHeader         = "chain_getHeader"
	methodBlockHash      = "chain_getBlockHash"

	// 解码网关扩展方法
	methodTypeRegistry = "chainflow_getTypeRegistry"
	methodBlockEvents  = "chainflow_getBlockEvents"
)

type runtimeVersion struct {
	SpecName    string `json:"specName"`
	SpecVersion int    `json:"specVersion"`
}

type header struct {
	Number     string `json:"number"`
	ParentHash string `json:"parentHash"`
}

type blockEvents struct {
	Timestamp int64              `json:"timestamp"`
	Events    []types.BlockEvent `json:"events"`
}

// Provider 链数据提供者
// 类型注册表与区块事件通过解码网关的 chainflow_* 方法获取，其余为节点标准方法
type Provider struct {
	rpc *RPCManager
}

// NewProvider 创建链数据提供者
func NewProvider(rm *RPCManager) *Provider {
	return &Provider{rpc: rm}
}

// RuntimeVersion 查询区块对应的运行时版本
func (p *Provider) RuntimeVersion(ctx context.Context, chainID int64, blockHash string) (int, error) {
	var version runtimeVersion
	err := p.rpc.ExecuteWithRetry(ctx, chainID, func(ctx context.Context, c *rpc.Client) error {
		return c.CallContext(ctx, &version, methodRuntimeVersion, blockHash)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get runtime version: %w", err)
	}
	return version.SpecVersion, nil
}

// Registry 查询区块对应的类型注册表与 pallet 元数据
func (p *Provider) Registry(ctx context.Context, chainID int64, blockHash string) (*types.ChainMetadata, error) {
	var metadata types.ChainMetadata
	err := p.rpc.ExecuteWithRetry(ctx, chainID, func(ctx context.Context, c *rpc.Client) error {
		return c.CallContext(ctx, &metadata, methodTypeRegistry, blockHash)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get type registry: %w", err)
	}
	return &metadata, nil
}

// LatestFinalized 查询最新的最终确定区块
func (p *Provider) LatestFinalized(ctx context.Context, chainID int64) (*types.BlockHeader, error) {
	var hash string
	err := p.rpc.ExecuteWithRetry(ctx, chainID, func(ctx context.Context, c *rpc.Client) error {
		return c.CallContext(ctx, &hash, methodFinalizedHead)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get finalized head: %w", err)
	}
	return p.header(ctx, chainID, hash)
}

// BlockHash 按高度查询区块哈希
func (p *Provider) BlockHash(ctx context.Context, chainID int64, number uint64) (string, error) {
	var hash *string
	err := p.rpc.ExecuteWithRetry(ctx, chainID, func(ctx context.Context, c *rpc.Client) error {
		return c.CallContext(ctx, &hash, methodBlockHash, number)
	})
	if err != nil {
		return "", fmt.Errorf("failed to get block hash of %d: %w", number, err)
	}
	if hash == nil || *hash == "" {
		return "", fmt.Errorf("block %d not found", number)
	}
	return *hash, nil
}

// BlockEvents 查询区块中已解码的事件
func (p *Provider) BlockEvents(ctx context.Context, chainID int64, blockHash string) (int64, []types.BlockEvent, error) {
	var result blockEvents
	err := p.rpc.ExecuteWithRetry(ctx, chainID, func(ctx context.Context, c *rpc.Client) error {
		return c.CallContext(ctx, &result, methodBlockEvents, blockHash)
	})
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get block events: %w", err)
	}
	return result.Timestamp, result.Events, nil
}

func (p *Provider) header(ctx context.Context, chainID int64, hash string) (*types.BlockHeader, error) {
	var h header
	err := p.rpc.ExecuteWithRetry(ctx, chainID, func(ctx context.Context, c *rpc.Client) error {
		return c.CallContext(ctx, &h, methodHeader, hash)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get header %s: %w", hash, err)
	}

	number, err := hexutil.DecodeUint64(h.Number)
	if err != nil {
		return nil, fmt.Errorf("invalid block number %q: %w", h.Number, err)
	}
	return &types.BlockHeader{Hash: hash, Number: number}, nil
}
