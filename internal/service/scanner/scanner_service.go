package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chainflow-backend/internal/config"
	"chainflow-backend/internal/queue"
	"chainflow-backend/internal/repository/scanner"
	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"
)

// ActiveChains 查询启用的链
type ActiveChains interface {
	GetAllActiveChains(ctx context.Context) ([]*types.SupportChain, error)
}

// Service 管理所有链的扫描器
type Service struct {
	config       *config.ScannerConfig
	chains       ActiveChains
	data         ChainData
	runtime      RuntimeSyncer
	progressRepo scanner.ProgressRepository
	blocks       queue.Producer

	mutex    sync.RWMutex
	scanners map[int64]*ChainScanner
}

// NewService 创建扫链服务
func NewService(
	cfg *config.ScannerConfig,
	chains ActiveChains,
	data ChainData,
	runtime RuntimeSyncer,
	progressRepo scanner.ProgressRepository,
	blocks queue.Producer,
) *Service {
	return &Service{
		config:       cfg,
		chains:       chains,
		data:         data,
		runtime:      runtime,
		progressRepo: progressRepo,
		blocks:       blocks,
		scanners:     make(map[int64]*ChainScanner),
	}
}

// Start 为每条启用的链启动扫描器，单链失败不影响其他链
func (s *Service) Start(ctx context.Context) error {
	chains, err := s.chains.GetAllActiveChains(ctx)
	if err != nil {
		return fmt.Errorf("failed to get active chains: %w", err)
	}

	for _, chainInfo := range chains {
		progress, err := s.loadProgress(ctx, chainInfo)
		if err != nil {
			logger.Error("Failed to load scan progress", err, "chain", chainInfo.ChainName)
			continue
		}
		if progress.ScanStatus == types.ScanStatusPaused {
			logger.Info("Chain scanner paused, skipping", "chain", chainInfo.ChainName)
			continue
		}

		cs := NewChainScanner(s.config, chainInfo, progress, s.data, s.runtime, s.progressRepo, s.blocks)
		if err := cs.Start(ctx); err != nil {
			logger.Error("Failed to start chain scanner", err, "chain", chainInfo.ChainName)
			continue
		}

		s.mutex.Lock()
		s.scanners[chainInfo.ChainID] = cs
		s.mutex.Unlock()
	}

	logger.Info("Scanner service started", "chains", len(s.scanners))
	return nil
}

// Stop 停止所有扫描器
func (s *Service) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, cs := range s.scanners {
		cs.Stop()
	}
	s.scanners = make(map[int64]*ChainScanner)
	logger.Info("Scanner service stopped")
}

// GetStatus 获取所有扫描器状态
func (s *Service) GetStatus() []ChainScannerStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	statuses := make([]ChainScannerStatus, 0, len(s.scanners))
	for _, cs := range s.scanners {
		statuses = append(statuses, cs.GetStatus())
	}
	return statuses
}

func (s *Service) loadProgress(ctx context.Context, chainInfo *types.SupportChain) (*types.BlockScanProgress, error) {
	progress, err := s.progressRepo.GetProgress(ctx, chainInfo.ChainID)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		return progress, nil
	}

	progress = &types.BlockScanProgress{
		ChainID:        chainInfo.ChainID,
		ChainName:      chainInfo.ChainName,
		ScanStatus:     types.ScanStatusRunning,
		LastUpdateTime: time.Now(),
	}
	if err := s.progressRepo.CreateProgress(ctx, progress); err != nil {
		return nil, err
	}
	return progress, nil
}
