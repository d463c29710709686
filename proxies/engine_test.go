package proxies_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/on-the-ground/proxy_ive_go/proxies"
	"github.com/on-the-ground/proxy_ive_go/proxies/config"
	"github.com/on-the-ground/proxy_ive_go/proxies/descriptor"
	"github.com/on-the-ground/proxy_ive_go/proxies/model"
)

type Counter interface {
	Add(delta int, more ...int) int
	GetTotal() int
	SetTotal(int)
}

func counterHandle(t *testing.T, name string) func() (*proxies.TypeHandle, error) {
	t.Helper()
	d, err := descriptor.For[Counter]()
	require.NoError(t, err)
	return func() (*proxies.TypeHandle, error) {
		return buildCounter(d, name), nil
	}
}

// buildCounter keeps the running total in an *int state.
func buildCounter(d *descriptor.Descriptor, name string) *proxies.TypeHandle {
	b := proxies.NewBuilder(name, model.StrategyStub, d)
	add, _ := d.Method("Add")
	b.Method(add, func(o *proxies.Object, args []reflect.Value) ([]reflect.Value, error) {
		total := o.State().(*int)
		for _, a := range args {
			*total += int(a.Int())
		}
		return []reflect.Value{reflect.ValueOf(*total)}, nil
	})
	totalProp, _ := d.Property("Total")
	b.Property(totalProp, proxies.Accessor{
		Get: func(o *proxies.Object) (reflect.Value, error) {
			return reflect.ValueOf(*o.State().(*int)), nil
		},
		Set: func(o *proxies.Object, v reflect.Value) error {
			*o.State().(*int) = int(v.Int())
			return nil
		},
	})
	return b.Build()
}

func initTestEngine(t *testing.T, store config.StoreKind) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	require.NoError(t, proxies.Init(config.NewConfig("debug", false, store), proxies.WithLogger(zap.New(core))))
	t.Cleanup(func() {
		require.NoError(t, proxies.Reset())
	})
	return logs
}

func TestDefineCachesPerKey(t *testing.T) {
	for _, store := range []config.StoreKind{config.StoreMemory, config.StoreMemDB} {
		t.Run(string(store), func(t *testing.T) {
			logs := initTestEngine(t, store)
			d, err := descriptor.For[Counter]()
			require.NoError(t, err)

			first, err := proxies.Define(model.StrategyStub, d, nil, "", counterHandle(t, "CounterProxy"))
			require.NoError(t, err)
			second, err := proxies.Define(model.StrategyStub, d, nil, "", counterHandle(t, "Other"))
			require.NoError(t, err)
			assert.Same(t, first, second)
			assert.Equal(t, "CounterProxy", second.Name())

			keyed, err := proxies.Define(model.StrategyStub, d, nil, "Total", counterHandle(t, "CounterKeyed"))
			require.NoError(t, err)
			assert.NotSame(t, first, keyed)

			defined, err := proxies.Defined(model.StrategyStub)
			require.NoError(t, err)
			assert.Len(t, defined, 2)

			assert.Equal(t, 1, logs.FilterMessage("type synthesis engine initialized").Len())
			assert.Equal(t, 2, logs.FilterMessage("defined synthesized type").Len())
		})
	}
}

func TestDefineRejectsNilTarget(t *testing.T) {
	initTestEngine(t, config.StoreMemory)
	_, err := proxies.Define(model.StrategyStub, nil, nil, "", nil)
	assert.ErrorIs(t, err, model.ErrInvalidTarget)
}

func TestFailedDefineIsNotCached(t *testing.T) {
	initTestEngine(t, config.StoreMemory)
	d, err := descriptor.For[Counter]()
	require.NoError(t, err)
	boom := errors.New("boom")

	_, err = proxies.Define(model.StrategyMock, d, nil, "", func() (*proxies.TypeHandle, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	defined, err := proxies.Defined("")
	require.NoError(t, err)
	assert.Empty(t, defined)
}

func TestResetDropsCache(t *testing.T) {
	initTestEngine(t, config.StoreMemory)
	d, err := descriptor.For[Counter]()
	require.NoError(t, err)

	before, err := proxies.Define(model.StrategyStub, d, nil, "", counterHandle(t, "CounterProxy"))
	require.NoError(t, err)
	require.NoError(t, proxies.Reset())

	after, err := proxies.Define(model.StrategyStub, d, nil, "", counterHandle(t, "CounterProxy"))
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.NotEqual(t, before.ID(), after.ID())
}

func TestHandleMetadata(t *testing.T) {
	initTestEngine(t, config.StoreMemory)
	d, err := descriptor.For[Counter]()
	require.NoError(t, err)

	h, err := proxies.Define(model.StrategyStub, d, nil, "", counterHandle(t, "CounterProxy"))
	require.NoError(t, err)

	assert.NotEmpty(t, h.ID())
	assert.Equal(t, model.StrategyStub, h.Strategy())
	assert.Same(t, d, h.Target())
	assert.Nil(t, h.SourceType())
	assert.True(t, h.Implements(d))
	assert.True(t, h.DefinedAt().End().After(h.DefinedAt().Start()))
	assert.Equal(t, "CounterProxy(stub proxies_test.Counter)", h.String())

	methods := h.Methods()
	require.Len(t, methods, 1)
	assert.Equal(t, "Add", methods[0].Name)

	total, ok := h.Property("Total")
	require.True(t, ok)
	assert.True(t, total.Readable)
	assert.True(t, total.Writable)
}
