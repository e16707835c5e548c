package event

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"

	"chainflow-backend/internal/types"
)

type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	mgetErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) MGet(_ context.Context, keys ...string) *redis.SliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mgetErr != nil {
		return redis.NewSliceResult(nil, f.mgetErr)
	}
	values := make([]interface{}, len(keys))
	for i, key := range keys {
		if v, ok := f.data[key]; ok {
			values[i] = v
		}
	}
	return redis.NewSliceResult(values, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	default:
		return redis.NewStatusResult("", errors.New("unsupported value"))
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) keyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

// fakeStore 按 (chain, name) 保存所有版本的定义
type fakeStore struct {
	Repository
	defs    []types.EventDefinition
	nextID  int64
	lookups [][]string
	err     error
}

func (f *fakeStore) RegisterVersion(_ context.Context, version *types.ChainVersion, defs []types.EventDefinition) error {
	for i := range defs {
		f.nextID++
		defs[i].ID = f.nextID
		defs[i].ChainID = version.ChainID
		defs[i].SpecVersion = version.SpecVersion
		f.defs = append(f.defs, defs[i])
	}
	return nil
}

func (f *fakeStore) LookupByNames(_ context.Context, chainID int64, names []string) ([]types.EventDefinition, error) {
	f.lookups = append(f.lookups, append([]string(nil), names...))
	if f.err != nil {
		return nil, f.err
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []types.EventDefinition
	for _, def := range f.defs {
		if def.ChainID == chainID && wanted[def.Name] {
			out = append(out, def)
		}
	}
	return out, nil
}

func definition(name string) types.EventDefinition {
	return types.EventDefinition{
		Pallet: "Balances",
		Name:   name,
		Kind:   types.EventKindEvent,
		Schema: datatypes.NewJSONType([]*types.FieldDescriptor{
			{Name: "who", Type: types.GeneralTypeString, OriginalType: "T::AccountId"},
		}),
	}
}
