package event

import (
	"context"
	"errors"
	"fmt"

	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"

	"gorm.io/gorm"
)

// Repository 事件定义仓库接口
type Repository interface {
	// RegisterVersion 在同一事务中登记运行时版本及其事件定义
	RegisterVersion(ctx context.Context, version *types.ChainVersion, defs []types.EventDefinition) error
	// LookupByNames 按名称查询事件在该链上所有运行时版本的定义，同名按版本从新到旧
	LookupByNames(ctx context.Context, chainID int64, names []string) ([]types.EventDefinition, error)
	GetByID(ctx context.Context, id int64) (*types.EventDefinition, error)
	ListLatest(ctx context.Context, chainID int64, pallet string, kind string) ([]types.EventDefinition, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository 创建事件定义仓库
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// RegisterVersion 登记运行时版本，旧版本定义保持不变
func (r *repository) RegisterVersion(ctx context.Context, version *types.ChainVersion, defs []types.EventDefinition) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(version).Error; err != nil {
			return fmt.Errorf("failed to create chain version: %w", err)
		}

		if len(defs) == 0 {
			return nil
		}
		for i := range defs {
			defs[i].ChainID = version.ChainID
			defs[i].SpecVersion = version.SpecVersion
		}
		if err := tx.CreateInBatches(defs, 200).Error; err != nil {
			return fmt.Errorf("failed to create event definitions: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("RegisterVersion Error", err, "chain_id", version.ChainID, "spec_version", version.SpecVersion)
		return err
	}

	logger.Info("RegisterVersion", "chain_id", version.ChainID, "spec_version", version.SpecVersion, "definitions", len(defs))
	return nil
}

// LookupByNames 查询所有版本的定义，未命中的名称直接忽略
func (r *repository) LookupByNames(ctx context.Context, chainID int64, names []string) ([]types.EventDefinition, error) {
	if len(names) == 0 {
		return nil, nil
	}

	var defs []types.EventDefinition
	if err := lookupByNames(r.db.WithContext(ctx), chainID, names).Find(&defs).Error; err != nil {
		logger.Error("LookupByNames Error", err, "chain_id", chainID, "names", len(names))
		return nil, err
	}
	return defs, nil
}

func lookupByNames(tx *gorm.DB, chainID int64, names []string) *gorm.DB {
	return tx.Model(&types.EventDefinition{}).
		Where("chain_id = ? AND kind = ? AND name IN ?", chainID, types.EventKindEvent, names).
		Order("name ASC, spec_version DESC")
}

// GetByID 根据ID获取事件定义
func (r *repository) GetByID(ctx context.Context, id int64) (*types.EventDefinition, error) {
	var def types.EventDefinition
	err := r.db.WithContext(ctx).First(&def, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error("GetByID Error", err, "event_id", id)
		return nil, err
	}
	return &def, nil
}

// ListLatest 列出链上最新版本的事件定义
func (r *repository) ListLatest(ctx context.Context, chainID int64, pallet string, kind string) ([]types.EventDefinition, error) {
	sub := r.db.WithContext(ctx).Model(&types.ChainVersion{}).
		Select("MAX(spec_version)").
		Where("chain_id = ?", chainID)

	query := r.db.WithContext(ctx).
		Where("chain_id = ? AND spec_version = (?)", chainID, sub)
	if pallet != "" {
		query = query.Where("LOWER(pallet) = LOWER(?)", pallet)
	}
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var defs []types.EventDefinition
	if err := query.Order("pallet ASC, index ASC").Find(&defs).Error; err != nil {
		logger.Error("ListLatest Error", err, "chain_id", chainID)
		return nil, err
	}
	return defs, nil
}
