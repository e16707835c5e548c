package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chainflow-backend/internal/config"
	"chainflow-backend/internal/queue"
	"chainflow-backend/internal/repository/scanner"
	"chainflow-backend/internal/service/registry"
	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"
)

// ChainData 链数据来源
type ChainData interface {
	LatestFinalized(ctx context.Context, chainID int64) (*types.BlockHeader, error)
	BlockHash(ctx context.Context, chainID int64, number uint64) (string, error)
	BlockEvents(ctx context.Context, chainID int64, blockHash string) (int64, []types.BlockEvent, error)
}

// RuntimeSyncer 运行时版本登记
type RuntimeSyncer interface {
	SyncRuntime(ctx context.Context, chain *types.SupportChain, blockHash string) (*registry.SyncResult, error)
}

// ChainScanner 单链扫描器，按最终确定区块推进并把区块事件写入区块队列
type ChainScanner struct {
	config       *config.ScannerConfig
	chainInfo    *types.SupportChain
	progress     *types.BlockScanProgress
	data         ChainData
	runtime      RuntimeSyncer
	progressRepo scanner.ProgressRepository
	blocks       queue.Producer

	mutex      sync.RWMutex
	stopCh     chan struct{}
	wg         sync.WaitGroup
	isRunning  bool
	lastUpdate time.Time
}

// ChainScannerStatus 链扫描器状态
type ChainScannerStatus struct {
	ChainID            int64     `json:"chain_id"`
	ChainName          string    `json:"chain_name"`
	ScanStatus         string    `json:"scan_status"`
	SpecVersion        int       `json:"spec_version"`
	LastScannedBlock   int64     `json:"last_scanned_block"`
	LatestNetworkBlock int64     `json:"latest_network_block"`
	BlocksLag          int64     `json:"blocks_lag"`
	ScanSpeed          string    `json:"scan_speed"`
	LastUpdate         time.Time `json:"last_update"`
	ErrorMessage       *string   `json:"error_message,omitempty"`
}

// NewChainScanner 创建新的链扫描器
func NewChainScanner(
	cfg *config.ScannerConfig,
	chainInfo *types.SupportChain,
	progress *types.BlockScanProgress,
	data ChainData,
	runtime RuntimeSyncer,
	progressRepo scanner.ProgressRepository,
	blocks queue.Producer,
) *ChainScanner {
	return &ChainScanner{
		config:       cfg,
		chainInfo:    chainInfo,
		progress:     progress,
		data:         data,
		runtime:      runtime,
		progressRepo: progressRepo,
		blocks:       blocks,
		stopCh:       make(chan struct{}),
		lastUpdate:   time.Now(),
	}
}

// Start 启动链扫描器
func (cs *ChainScanner) Start(ctx context.Context) error {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	if cs.isRunning {
		return fmt.Errorf("chain scanner for chain %d is already running", cs.chainInfo.ChainID)
	}

	cs.wg.Add(1)
	go cs.scanLoop(ctx)

	cs.isRunning = true
	logger.Info("Chain scanner started", "chain", cs.chainInfo.ChainName, "from_block", cs.progress.LastScannedBlock)
	return nil
}

// Stop 停止链扫描器
func (cs *ChainScanner) Stop() {
	cs.mutex.Lock()
	if !cs.isRunning {
		cs.mutex.Unlock()
		return
	}
	close(cs.stopCh)
	cs.isRunning = false
	cs.mutex.Unlock()

	cs.wg.Wait()
	logger.Info("Chain scanner stopped", "chain_id", cs.chainInfo.ChainID)
}

// scanLoop 扫描循环
func (cs *ChainScanner) scanLoop(ctx context.Context) {
	defer cs.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cs.stopCh:
			return
		default:
		}

		wait := cs.getScanInterval()
		if err := cs.ScanOnce(ctx); err != nil {
			logger.Error("Scan blocks failed", err, "chain_id", cs.chainInfo.ChainID)
			cs.updateProgressStatus(types.ScanStatusError, err.Error())
			wait = cs.config.ErrorBackoff
		}

		select {
		case <-time.After(wait):
		case <-cs.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ScanOnce 扫描一批最终确定区块
// 首次运行从当前最终确定区块开始，不回溯历史区块
func (cs *ChainScanner) ScanOnce(ctx context.Context) error {
	head, err := cs.data.LatestFinalized(ctx, cs.chainInfo.ChainID)
	if err != nil {
		return fmt.Errorf("failed to get finalized head: %w", err)
	}
	latest := int64(head.Number)

	cs.mutex.Lock()
	cs.progress.LatestNetworkBlock = latest
	fresh := cs.progress.LastScannedBlock == 0 && cs.progress.LastScannedHash == ""
	cs.mutex.Unlock()

	fromBlock := cs.progress.LastScannedBlock + 1
	if fresh {
		fromBlock = latest
	}
	if fromBlock > latest {
		logger.Debug("No new blocks to scan", "chain_id", cs.chainInfo.ChainID, "latest", latest)
		return nil
	}
	toBlock := cs.calculateToBlock(fromBlock, latest)

	for current := fromBlock; current <= toBlock; current++ {
		select {
		case <-cs.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		hash := head.Hash
		if current != latest {
			if hash, err = cs.data.BlockHash(ctx, cs.chainInfo.ChainID, uint64(current)); err != nil {
				return err
			}
		}

		if err := cs.scanSingleBlock(ctx, uint64(current), hash); err != nil {
			return fmt.Errorf("failed to scan block %d: %w", current, err)
		}

		cs.mutex.Lock()
		cs.progress.LastScannedBlock = current
		cs.progress.LastScannedHash = hash
		cs.progress.ScanStatus = types.ScanStatusRunning
		cs.progress.ErrorMessage = nil
		cs.progress.LastUpdateTime = time.Now()
		cs.lastUpdate = cs.progress.LastUpdateTime
		cs.mutex.Unlock()

		// 重复入队由工作流阶段的幂等ID去重
		if current%10 == 0 || current == toBlock {
			if err := cs.progressRepo.UpdateProgressBlock(ctx, cs.chainInfo.ChainID, current, hash, latest); err != nil {
				logger.Error("Failed to update progress", err, "chain_id", cs.chainInfo.ChainID, "block", current)
			}
		}
	}

	return nil
}

// scanSingleBlock 登记运行时版本并把区块事件写入区块队列
func (cs *ChainScanner) scanSingleBlock(ctx context.Context, number uint64, hash string) error {
	synced, err := cs.runtime.SyncRuntime(ctx, cs.chainInfo, hash)
	if err != nil {
		return fmt.Errorf("failed to sync runtime: %w", err)
	}
	if synced.SpecVersion != cs.progress.SpecVersion {
		cs.mutex.Lock()
		cs.progress.SpecVersion = synced.SpecVersion
		cs.mutex.Unlock()
		if err := cs.progressRepo.UpdateSpecVersion(ctx, cs.chainInfo.ChainID, synced.SpecVersion); err != nil {
			logger.Error("Failed to update spec version", err, "chain_id", cs.chainInfo.ChainID)
		}
	}

	timestamp, events, err := cs.data.BlockEvents(ctx, cs.chainInfo.ChainID, hash)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	msg := &types.BlockMessage{
		ChainID: cs.chainInfo.ChainID,
		Block:   types.BlockMeta{Hash: hash, Number: number, Timestamp: timestamp},
		Events:  events,
	}
	if err := cs.blocks.Enqueue(ctx, hash, msg); err != nil {
		return fmt.Errorf("failed to enqueue block: %w", err)
	}

	logger.Debug("Enqueued block", "chain", cs.chainInfo.ChainName, "block", number, "events", len(events))
	return nil
}

// calculateToBlock 计算要扫描到的区块号
func (cs *ChainScanner) calculateToBlock(fromBlock, latestBlock int64) int64 {
	batchSize := int64(cs.config.ScanBatchSize)
	if batchSize <= 0 {
		batchSize = 1
	}

	toBlock := fromBlock + batchSize - 1
	if toBlock > latestBlock {
		toBlock = latestBlock
	}
	return toBlock
}

// getScanInterval 落后较多时使用快速间隔
func (cs *ChainScanner) getScanInterval() time.Duration {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	lag := cs.progress.LatestNetworkBlock - cs.progress.LastScannedBlock
	if lag > 100 {
		return cs.config.ScanInterval
	}
	return cs.config.ScanIntervalSlow
}

// updateProgressStatus 更新进度状态
func (cs *ChainScanner) updateProgressStatus(status string, errorMsg string) {
	cs.mutex.Lock()
	cs.progress.ScanStatus = status
	if errorMsg != "" {
		cs.progress.ErrorMessage = &errorMsg
	} else {
		cs.progress.ErrorMessage = nil
	}
	cs.progress.LastUpdateTime = time.Now()
	message := cs.progress.ErrorMessage
	cs.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := cs.progressRepo.UpdateProgressStatus(ctx, cs.chainInfo.ChainID, status, message); err != nil {
		logger.Error("Failed to update progress status", err, "chain_id", cs.chainInfo.ChainID)
	}
}

// GetStatus 获取扫描器状态
func (cs *ChainScanner) GetStatus() ChainScannerStatus {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	lag := cs.progress.LatestNetworkBlock - cs.progress.LastScannedBlock
	scanSpeed := "slow"
	if lag > 100 {
		scanSpeed = "fast"
	}

	return ChainScannerStatus{
		ChainID:            cs.chainInfo.ChainID,
		ChainName:          cs.chainInfo.ChainName,
		ScanStatus:         cs.progress.ScanStatus,
		SpecVersion:        cs.progress.SpecVersion,
		LastScannedBlock:   cs.progress.LastScannedBlock,
		LatestNetworkBlock: cs.progress.LatestNetworkBlock,
		BlocksLag:          lag,
		ScanSpeed:          scanSpeed,
		LastUpdate:         cs.lastUpdate,
		ErrorMessage:       cs.progress.ErrorMessage,
	}
}
