package event

import (
	"context"
	"errors"
	"fmt"

	"chainflow-backend/internal/service/decoder"
	"chainflow-backend/internal/types"
)

var ErrEventNotFound = errors.New("event not found")

// Catalog 事件定义查询
type Catalog interface {
	GetByID(ctx context.Context, id int64) (*types.EventDefinition, error)
	ListLatest(ctx context.Context, chainID int64, pallet string, kind string) ([]types.EventDefinition, error)
}

// Service 事件定义服务接口
type Service interface {
	ListEvents(ctx context.Context, req *types.GetEventListRequest) (*types.GetEventListResponse, error)
	GetEvent(ctx context.Context, id int64) (*types.EventSchema, error)
}

type service struct {
	catalog Catalog
}

// NewService 创建事件定义服务
func NewService(catalog Catalog) Service {
	return &service{catalog: catalog}
}

// ListEvents 列出链上最新运行时版本的事件定义
func (s *service) ListEvents(ctx context.Context, req *types.GetEventListRequest) (*types.GetEventListResponse, error) {
	defs, err := s.catalog.ListLatest(ctx, req.ChainID, req.Pallet, req.Kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]types.EventSchema, 0, len(defs))
	for _, def := range defs {
		events = append(events, withExample(def))
	}
	return &types.GetEventListResponse{
		Events: events,
		Total:  len(events),
	}, nil
}

// GetEvent 获取单个事件定义
func (s *service) GetEvent(ctx context.Context, id int64) (*types.EventSchema, error) {
	def, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if def == nil {
		return nil, ErrEventNotFound
	}
	schema := withExample(*def)
	return &schema, nil
}

func withExample(def types.EventDefinition) types.EventSchema {
	return types.EventSchema{
		EventDefinition: def,
		ExamplePayload:  decoder.ExamplePayload(def.Fields()),
	}
}
