package scanner

import (
	"context"
	"errors"
	"time"

	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressRepository 扫块进度仓库接口
type ProgressRepository interface {
	GetProgress(ctx context.Context, chainID int64) (*types.BlockScanProgress, error)
	CreateProgress(ctx context.Context, progress *types.BlockScanProgress) error
	UpdateProgressBlock(ctx context.Context, chainID int64, block int64, hash string, latest int64) error
	UpdateProgressStatus(ctx context.Context, chainID int64, status string, errorMessage *string) error
	UpdateSpecVersion(ctx context.Context, chainID int64, specVersion int) error
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository 创建扫块进度仓库
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

// GetProgress 获取链的扫块进度，不存在返回 nil
func (r *progressRepository) GetProgress(ctx context.Context, chainID int64) (*types.BlockScanProgress, error) {
	var progress types.BlockScanProgress
	err := r.db.WithContext(ctx).Where("chain_id = ?", chainID).First(&progress).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error("GetProgress Error", err, "chain_id", chainID)
		return nil, err
	}
	return &progress, nil
}

// CreateProgress 创建扫块进度，已存在时不覆盖
func (r *progressRepository) CreateProgress(ctx context.Context, progress *types.BlockScanProgress) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "chain_id"}}, DoNothing: true}).
		Create(progress).Error
	if err != nil {
		logger.Error("CreateProgress Error", err, "chain_id", progress.ChainID)
		return err
	}
	return nil
}

// UpdateProgressBlock 更新已扫描区块
func (r *progressRepository) UpdateProgressBlock(ctx context.Context, chainID int64, block int64, hash string, latest int64) error {
	err := r.db.WithContext(ctx).Model(&types.BlockScanProgress{}).
		Where("chain_id = ?", chainID).
		Updates(map[string]interface{}{
			"last_scanned_block":   block,
			"last_scanned_hash":    hash,
			"latest_network_block": latest,
			"scan_status":          types.ScanStatusRunning,
			"error_message":        nil,
			"last_update_time":     time.Now(),
		}).Error
	if err != nil {
		logger.Error("UpdateProgressBlock Error", err, "chain_id", chainID, "block", block)
		return err
	}
	return nil
}

// UpdateProgressStatus 更新扫块状态
func (r *progressRepository) UpdateProgressStatus(ctx context.Context, chainID int64, status string, errorMessage *string) error {
	err := r.db.WithContext(ctx).Model(&types.BlockScanProgress{}).
		Where("chain_id = ?", chainID).
		Updates(map[string]interface{}{
			"scan_status":      status,
			"error_message":    errorMessage,
			"last_update_time": time.Now(),
		}).Error
	if err != nil {
		logger.Error("UpdateProgressStatus Error", err, "chain_id", chainID, "status", status)
		return err
	}
	return nil
}

// UpdateSpecVersion 记录扫描时观察到的运行时版本
func (r *progressRepository) UpdateSpecVersion(ctx context.Context, chainID int64, specVersion int) error {
	err := r.db.WithContext(ctx).Model(&types.BlockScanProgress{}).
		Where("chain_id = ?", chainID).
		Update("spec_version", specVersion).Error
	if err != nil {
		logger.Error("UpdateSpecVersion Error", err, "chain_id", chainID, "spec_version", specVersion)
		return err
	}
	return nil
}
