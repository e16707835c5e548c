package chain

import (
	"context"
	"errors"

	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository 支持链仓库接口
type Repository interface {
	GetAllActiveChains(ctx context.Context) ([]*types.SupportChain, error)
	GetSupportChains(ctx context.Context, req *types.GetSupportChainsRequest) ([]*types.SupportChain, error)
	GetChainByChainID(ctx context.Context, chainID int64) (*types.SupportChain, error)

	// 运行时版本
	GetLatestVersion(ctx context.Context, chainID int64) (*types.ChainVersion, error)
	HasVersion(ctx context.Context, chainID int64, specVersion int) (bool, error)
}

// repository 支持链仓库实现
type repository struct {
	db *gorm.DB
}

// NewRepository 创建新的支持链仓库
func NewRepository(db *gorm.DB) Repository {
	return &repository{
		db: db,
	}
}

// GetAllActiveChains 获取所有激活的链
func (r *repository) GetAllActiveChains(ctx context.Context) ([]*types.SupportChain, error) {
	var chains []*types.SupportChain

	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("chain_id ASC").Find(&chains).Error
	if err != nil {
		logger.Error("GetAllActiveChains Error: ", err)
		return nil, err
	}

	logger.Debug("GetAllActiveChains: ", "count", len(chains))
	return chains, nil
}

// GetSupportChains 按条件筛选支持链
func (r *repository) GetSupportChains(ctx context.Context, req *types.GetSupportChainsRequest) ([]*types.SupportChain, error) {
	var chains []*types.SupportChain

	query := r.db.WithContext(ctx).Model(&types.SupportChain{})
	if req != nil && req.IsTestnet != nil {
		query = query.Where("is_testnet = ?", *req.IsTestnet)
	}
	if req != nil && req.IsActive != nil {
		query = query.Where("is_active = ?", *req.IsActive)
	}

	if err := query.Order("chain_id ASC").Find(&chains).Error; err != nil {
		logger.Error("GetSupportChains Error: ", err)
		return nil, err
	}
	return chains, nil
}

// GetChainByChainID 根据链ID获取链信息
func (r *repository) GetChainByChainID(ctx context.Context, chainID int64) (*types.SupportChain, error) {
	var chain types.SupportChain

	err := r.db.WithContext(ctx).Where("chain_id = ?", chainID).First(&chain).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error("GetChainByChainID Error: ", err, "chain_id", chainID)
		return nil, err
	}
	return &chain, nil
}

// GetLatestVersion 获取链最新登记的运行时版本
func (r *repository) GetLatestVersion(ctx context.Context, chainID int64) (*types.ChainVersion, error) {
	var version types.ChainVersion

	err := r.db.WithContext(ctx).
		Where("chain_id = ?", chainID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "spec_version"}, Desc: true}).
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error("GetLatestVersion Error: ", err, "chain_id", chainID)
		return nil, err
	}
	return &version, nil
}

// HasVersion 判断运行时版本是否已登记
func (r *repository) HasVersion(ctx context.Context, chainID int64, specVersion int) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).Model(&types.ChainVersion{}).
		Where("chain_id = ? AND spec_version = ?", chainID, specVersion).
		Count(&count).Error
	if err != nil {
		logger.Error("HasVersion Error: ", err, "chain_id", chainID, "spec_version", specVersion)
		return false, err
	}
	return count > 0, nil
}
