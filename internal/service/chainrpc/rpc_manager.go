package chainrpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chainflow-backend/internal/config"
	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"

	"github.com/ethereum/go-ethereum/rpc"
)

// ChainSource 查询链的RPC地址
type ChainSource interface {
	GetChainByChainID(ctx context.Context, chainID int64) (*types.SupportChain, error)
}

// Dialer 建立RPC连接
type Dialer func(ctx context.Context, rawURL string) (*rpc.Client, error)

// Option RPC管理器选项
type Option func(*RPCManager)

// WithDialer 替换默认的连接方式
func WithDialer(d Dialer) Option {
	return func(rm *RPCManager) { rm.dial = d }
}

// RPCManager 按链维护 JSON-RPC 客户端
type RPCManager struct {
	cfg     *config.RPCConfig
	chains  ChainSource
	dial    Dialer
	clients map[int64]*rpc.Client
	mutex   sync.RWMutex
}

// NewRPCManager 创建RPC管理器
func NewRPCManager(cfg *config.RPCConfig, chains ChainSource, opts ...Option) *RPCManager {
	rm := &RPCManager{
		cfg:     cfg,
		chains:  chains,
		dial:    rpc.DialContext,
		clients: make(map[int64]*rpc.Client),
	}
	for _, opt := range opts {
		opt(rm)
	}
	return rm
}

// Stop 关闭所有连接
func (rm *RPCManager) Stop() {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	for chainID, client := range rm.clients {
		client.Close()
		logger.Debug("Closed RPC client", "chain_id", chainID)
	}
	rm.clients = make(map[int64]*rpc.Client)
	logger.Info("RPC Manager stopped")
}

// getOrCreateClient 获取或创建指定链的客户端
func (rm *RPCManager) getOrCreateClient(ctx context.Context, chainID int64) (*rpc.Client, error) {
	rm.mutex.RLock()
	client, ok := rm.clients[chainID]
	rm.mutex.RUnlock()
	if ok {
		return client, nil
	}

	chainInfo, err := rm.chains.GetChainByChainID(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain %d: %w", chainID, err)
	}
	if chainInfo == nil || chainInfo.RPCURL == "" {
		return nil, fmt.Errorf("no RPC URL configured for chain %d", chainID)
	}

	dialCtx, cancel := context.WithTimeout(ctx, rm.cfg.Timeout)
	defer cancel()

	client, err = rm.dial(dialCtx, chainInfo.RPCURL)
	if err != nil {
		logger.Error("Failed to dial RPC", err, "chain_id", chainID, "chain_name", chainInfo.ChainName)
		return nil, fmt.Errorf("failed to dial RPC for chain %d: %w", chainID, err)
	}

	rm.mutex.Lock()
	if existing, ok := rm.clients[chainID]; ok {
		rm.mutex.Unlock()
		client.Close()
		return existing, nil
	}
	rm.clients[chainID] = client
	rm.mutex.Unlock()

	logger.Info("Connected RPC client", "chain_id", chainID, "chain_name", chainInfo.ChainName)
	return client, nil
}

// ExecuteWithRetry 带重试的RPC调用，失败时丢弃连接并指数退避
func (rm *RPCManager) ExecuteWithRetry(ctx context.Context, chainID int64, fn func(ctx context.Context, client *rpc.Client) error) error {
	attempts := rm.cfg.RetryMax
	if attempts <= 0 {
		attempts = 1
	}
	retryDelay := rm.cfg.RetryDelay

	var lastErr error
	for i := 0; i < attempts; i++ {
		client, err := rm.getOrCreateClient(ctx, chainID)
		if err == nil {
			callCtx, cancel := context.WithTimeout(ctx, rm.cfg.Timeout)
			err = fn(callCtx, client)
			cancel()
			if err == nil {
				return nil
			}
			rm.removeClient(chainID)
		}

		lastErr = err
		logger.Warn("RPC call failed", "chain_id", chainID, "attempt", i+1, "error", err.Error())

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
				retryDelay *= 2
			}
		}
	}

	return fmt.Errorf("RPC call failed after %d attempts: %w", attempts, lastErr)
}

// removeClient 移除指定链的客户端，下次调用时重连
func (rm *RPCManager) removeClient(chainID int64) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	if client, ok := rm.clients[chainID]; ok {
		client.Close()
		delete(rm.clients, chainID)
	}
}

// GetStatus 获取连接状态
func (rm *RPCManager) GetStatus() map[string]interface{} {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	chains := make([]int64, 0, len(rm.clients))
	for chainID := range rm.clients {
		chains = append(chains, chainID)
	}
	return map[string]interface{}{
		"total_clients": len(rm.clients),
		"chains":        chains,
	}
}
