package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"chainflow-backend/internal/service/decoder"
	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"

	"gorm.io/gorm"
)

// MetadataProvider 链运行时元数据来源
type MetadataProvider interface {
	RuntimeVersion(ctx context.Context, chainID int64, blockHash string) (int, error)
	Registry(ctx context.Context, chainID int64, blockHash string) (*types.ChainMetadata, error)
}

// VersionStore 运行时版本查询
type VersionStore interface {
	HasVersion(ctx context.Context, chainID int64, specVersion int) (bool, error)
}

// DefinitionStore 事件定义写入
type DefinitionStore interface {
	RegisterVersion(ctx context.Context, version *types.ChainVersion, defs []types.EventDefinition) error
}

// SyncResult 版本同步结果
type SyncResult struct {
	SpecVersion int
	Registered  bool
	Events      int
	Errors      int
	Failed      []types.ParseError
}

// Service 链运行时版本登记服务
type Service struct {
	provider MetadataProvider
	versions VersionStore
	defs     DefinitionStore

	mu    sync.Mutex
	known map[int64]int
}

// NewService 创建版本登记服务
func NewService(provider MetadataProvider, versions VersionStore, defs DefinitionStore) *Service {
	return &Service{
		provider: provider,
		versions: versions,
		defs:     defs,
		known:    make(map[int64]int),
	}
}

// SyncRuntime 检查区块的运行时版本，未登记时解析并保存该版本的全部事件定义
// 单个事件解析失败只记录日志，不影响其他事件
func (s *Service) SyncRuntime(ctx context.Context, chain *types.SupportChain, blockHash string) (*SyncResult, error) {
	specVersion, err := s.provider.RuntimeVersion(ctx, chain.ChainID, blockHash)
	if err != nil {
		return nil, err
	}
	result := &SyncResult{SpecVersion: specVersion}

	if s.isKnown(chain.ChainID, specVersion) {
		return result, nil
	}

	exists, err := s.versions.HasVersion(ctx, chain.ChainID, specVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to check spec version: %w", err)
	}
	if exists {
		s.remember(chain.ChainID, specVersion)
		return result, nil
	}

	metadata, err := s.provider.Registry(ctx, chain.ChainID, blockHash)
	if err != nil {
		return nil, err
	}

	defs, parseErrs := decoder.ParseEvents(types.NewTypeRegistry(metadata.Types), metadata.Pallets)
	for _, pe := range parseErrs {
		logger.Error("Failed to parse event definition", pe.Err, "chain", chain.ChainName, "pallet", pe.Pallet, "name", pe.Name, "kind", pe.Kind)
	}

	version := &types.ChainVersion{
		ChainID:     chain.ChainID,
		SpecVersion: specVersion,
		BlockHash:   blockHash,
	}
	for _, d := range defs {
		if d.Kind == types.EventKindError {
			version.ErrorCount++
		} else {
			version.EventCount++
		}
	}

	if err := s.defs.RegisterVersion(ctx, version, defs); err != nil {
		// 其他实例已登记同一版本
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.remember(chain.ChainID, specVersion)
			return result, nil
		}
		return nil, fmt.Errorf("failed to register spec version %d: %w", specVersion, err)
	}

	s.remember(chain.ChainID, specVersion)
	result.Registered = true
	result.Events = version.EventCount
	result.Errors = version.ErrorCount
	result.Failed = parseErrs

	logger.Info("Registered runtime version", "chain", chain.ChainName, "spec_version", specVersion,
		"events", version.EventCount, "errors", version.ErrorCount, "parse_failures", len(parseErrs))
	return result, nil
}

func (s *Service) isKnown(chainID int64, specVersion int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.known[chainID]
	return ok && v == specVersion
}

func (s *Service) remember(chainID int64, specVersion int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[chainID] = specVersion
}
