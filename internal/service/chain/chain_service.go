package chain

import (
	"context"
	"fmt"

	"chainflow-backend/internal/repository/chain"
	"chainflow-backend/internal/types"
)

// Service 支持链服务接口
type Service interface {
	GetSupportChains(ctx context.Context, req *types.GetSupportChainsRequest) (*types.GetSupportChainsResponse, error)
	GetChainByChainID(ctx context.Context, chainID int64) (*types.SupportChain, error)
	GetLatestVersion(ctx context.Context, chainID int64) (*types.ChainVersion, error)
}

type service struct {
	chainRepo chain.Repository
}

// NewService 创建支持链服务
func NewService(chainRepo chain.Repository) Service {
	return &service{chainRepo: chainRepo}
}

// GetSupportChains 获取支持链列表
func (s *service) GetSupportChains(ctx context.Context, req *types.GetSupportChainsRequest) (*types.GetSupportChainsResponse, error) {
	chains, err := s.chainRepo.GetSupportChains(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get support chains: %w", err)
	}
	if chains == nil {
		chains = []*types.SupportChain{}
	}
	return &types.GetSupportChainsResponse{
		Chains: chains,
		Total:  len(chains),
	}, nil
}

// GetChainByChainID 根据ChainID获取链信息，不存在时返回 nil
func (s *service) GetChainByChainID(ctx context.Context, chainID int64) (*types.SupportChain, error) {
	return s.chainRepo.GetChainByChainID(ctx, chainID)
}

// GetLatestVersion 获取链当前登记的运行时版本
func (s *service) GetLatestVersion(ctx context.Context, chainID int64) (*types.ChainVersion, error) {
	return s.chainRepo.GetLatestVersion(ctx, chainID)
}
