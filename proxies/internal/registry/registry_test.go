package registry_test

import (
	"errors"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	"github.com/on-the-ground/proxy_ive_go/proxies/internal/registry"
	"github.com/on-the-ground/proxy_ive_go/proxies/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type handle struct {
	name string
}

func stores(t *testing.T) map[string]func() registry.Store[*handle] {
	t.Helper()
	return map[string]func() registry.Store[*handle]{
		"memory": registry.NewMemoryStore[*handle],
		"memdb": func() registry.Store[*handle] {
			s, err := registry.NewMemDBStore[*handle]()
			require.NoError(t, err)
			return s
		},
	}
}

func TestGetOrDefineDefinesOnce(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			r := registry.New(newStore(), nil)
			key := registry.Key{Strategy: model.StrategyStub, Target: "t1"}

			calls := 0
			define := func() (*handle, error) {
				calls++
				return &handle{name: "T1Proxy"}, nil
			}

			first, err := r.GetOrDefine(key, define)
			require.NoError(t, err)
			second, err := r.GetOrDefine(key, define)
			require.NoError(t, err)

			assert.Same(t, first, second)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestKeysAreIndependent(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			r := registry.New(newStore(), nil)
			keys := []registry.Key{
				{Strategy: model.StrategyStub, Target: "t1"},
				{Strategy: model.StrategyMock, Target: "t1"},
				{Strategy: model.StrategyForward, Target: "t1", Source: "s1"},
				{Strategy: model.StrategyForward, Target: "t1", Source: "s2"},
				{Strategy: model.StrategyLazyForward, Target: "t1"},
				{Strategy: model.StrategyLazyForward, Target: "t1", Aux: "ID"},
			}

			seen := map[*handle]bool{}
			for _, k := range keys {
				h, err := r.GetOrDefine(k, func() (*handle, error) {
					return &handle{name: k.String()}, nil
				})
				require.NoError(t, err)
				assert.Equal(t, k.String(), h.name)
				seen[h] = true
			}
			assert.Len(t, seen, len(keys))
		})
	}
}

func TestFailedDefinitionPublishesNothing(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			r := registry.New(newStore(), nil)
			key := registry.Key{Strategy: model.StrategyForward, Target: "t1", Source: "s1"}
			boom := errors.New("boom")

			_, err := r.GetOrDefine(key, func() (*handle, error) { return nil, boom })
			assert.ErrorIs(t, err, boom)

			entries, err := r.Entries("")
			require.NoError(t, err)
			assert.Empty(t, entries)

			h, err := r.GetOrDefine(key, func() (*handle, error) { return &handle{name: "retry"}, nil })
			require.NoError(t, err)
			assert.Equal(t, "retry", h.name)
		})
	}
}

func TestConcurrentDefinitionYieldsOneValue(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			r := registry.New(newStore(), nil)
			key := registry.Key{Strategy: model.StrategyMock, Target: "t1"}

			var calls atomic.Int32
			results := make([]*handle, 32)

			var g errgroup.Group
			for i := range results {
				i := i
				g.Go(func() error {
					h, err := r.GetOrDefine(key, func() (*handle, error) {
						calls.Add(1)
						return &handle{name: "T1_Mock"}, nil
					})
					results[i] = h
					return err
				})
			}
			require.NoError(t, g.Wait())

			assert.Equal(t, int32(1), calls.Load())
			for _, h := range results {
				assert.Same(t, results[0], h)
			}
		})
	}
}

func TestEntriesAndReset(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			r := registry.New(newStore(), nil)
			for _, k := range []registry.Key{
				{Strategy: model.StrategyStub, Target: "a"},
				{Strategy: model.StrategyStub, Target: "b"},
				{Strategy: model.StrategyMock, Target: "a"},
			} {
				_, err := r.GetOrDefine(k, func() (*handle, error) { return &handle{name: k.String()}, nil })
				require.NoError(t, err)
			}

			stubs, err := r.Entries(model.StrategyStub)
			require.NoError(t, err)
			names := make([]string, len(stubs))
			for i, e := range stubs {
				names[i] = e.Value.name
				assert.Equal(t, model.StrategyStub, e.Key.Strategy)
			}
			sort.Strings(names)
			assert.Equal(t, []string{"stub/a//", "stub/b//"}, names)

			all, err := r.Entries("")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			require.NoError(t, r.Reset())
			all, err = r.Entries("")
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestRegistryLogsDefinitions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := registry.New(registry.NewMemoryStore[*handle](), zap.New(core))

	key := registry.Key{Strategy: model.StrategyStub, Target: "t1"}
	_, err := r.GetOrDefine(key, func() (*handle, error) { return &handle{}, nil })
	require.NoError(t, err)
	_, err = r.GetOrDefine(key, func() (*handle, error) { return &handle{}, nil })
	require.NoError(t, err)

	defined := logs.FilterMessage("defined synthesized type").All()
	require.Len(t, defined, 1)
	assert.Equal(t, "stub/t1//", defined[0].ContextMap()["key"])
}
