package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "chainflow:event"

// cacheClient 缓存用到的 Redis 命令
type cacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// cachedRepository 在 Redis 中缓存按名称查询的事件定义
// 每个名称缓存其所有版本的定义；每条链维护一个代际计数，登记新版本时递增，旧缓存自然失效
type cachedRepository struct {
	Repository
	rdb cacheClient
	ttl time.Duration
}

// NewCachedRepository 包装事件定义仓库，rdb 为空时直接返回原仓库
func NewCachedRepository(repo Repository, rdb *redis.Client, ttl time.Duration) Repository {
	if rdb == nil {
		return repo
	}
	return newCachedRepository(repo, rdb, ttl)
}

func newCachedRepository(repo Repository, rdb cacheClient, ttl time.Duration) *cachedRepository {
	return &cachedRepository{Repository: repo, rdb: rdb, ttl: ttl}
}

func generationKey(chainID int64) string {
	return fmt.Sprintf("%s:%d:gen", cacheKeyPrefix, chainID)
}

func nameKey(chainID int64, gen int64, name string) string {
	return fmt.Sprintf("%s:%d:%d:%s", cacheKeyPrefix, chainID, gen, name)
}

func (c *cachedRepository) generation(ctx context.Context, chainID int64) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey(chainID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// RegisterVersion 登记后递增代际计数
func (c *cachedRepository) RegisterVersion(ctx context.Context, version *types.ChainVersion, defs []types.EventDefinition) error {
	if err := c.Repository.RegisterVersion(ctx, version, defs); err != nil {
		return err
	}
	if err := c.rdb.Incr(ctx, generationKey(version.ChainID)).Err(); err != nil {
		logger.Warn("Failed to bump event cache generation", "chain_id", version.ChainID, "error", err)
	}
	return nil
}

// LookupByNames 优先读缓存，未命中的名称回源数据库并回填
func (c *cachedRepository) LookupByNames(ctx context.Context, chainID int64, names []string) ([]types.EventDefinition, error) {
	if len(names) == 0 {
		return nil, nil
	}

	gen, err := c.generation(ctx, chainID)
	if err != nil {
		logger.Warn("Event cache unavailable, falling back to database", "chain_id", chainID, "error", err)
		return c.Repository.LookupByNames(ctx, chainID, names)
	}

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = nameKey(chainID, gen, name)
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warn("Event cache read failed", "chain_id", chainID, "error", err)
		return c.Repository.LookupByNames(ctx, chainID, names)
	}

	var (
		defs    []types.EventDefinition
		missing []string
	)
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, names[i])
			continue
		}
		var versions []types.EventDefinition
		if err := json.Unmarshal([]byte(s), &versions); err != nil {
			missing = append(missing, names[i])
			continue
		}
		defs = append(defs, versions...)
	}

	if len(missing) == 0 {
		return defs, nil
	}

	loaded, err := c.Repository.LookupByNames(ctx, chainID, missing)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]types.EventDefinition, len(missing))
	for _, def := range loaded {
		grouped[def.Name] = append(grouped[def.Name], def)
	}
	for name, versions := range grouped {
		data, err := json.Marshal(versions)
		if err != nil {
			continue
		}
		if err := c.rdb.Set(ctx, nameKey(chainID, gen, name), data, c.ttl).Err(); err != nil {
			logger.Warn("Event cache write failed", "chain_id", chainID, "name", name, "error", err)
			break
		}
	}

	return append(defs, loaded...), nil
}
