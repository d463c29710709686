package lazy_test

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/on-the-ground/proxy_ive_go/proxies"
	"github.com/on-the-ground/proxy_ive_go/proxies/config"
	"github.com/on-the-ground/proxy_ive_go/proxies/descriptor"
	"github.com/on-the-ground/proxy_ive_go/proxies/lazy"
	"github.com/on-the-ground/proxy_ive_go/proxies/log"
	"github.com/on-the-ground/proxy_ive_go/proxies/model"
)

func TestMain(m *testing.M) {
	if err := proxies.Init(config.Default(), proxies.WithLogger(log.NewTest())); err != nil {
		panic(err)
	}
	goleak.VerifyTestMain(m)
}

type Complicated struct {
	ID             int `proxy:"key"`
	ItsComplicated int
	Notes          []string
}

func (c *Complicated) Bump(by int) int {
	c.ItsComplicated += by
	return c.ItsComplicated
}

type IEagerBeaver interface {
	GetID() int
}

type Shape struct {
	descriptor.Abstract
	Area func() float64
}

func TestLazyDefersFactoryUntilAccess(t *testing.T) {
	invoked := false
	obj, err := lazy.For(func() *Complicated {
		invoked = true
		return &Complicated{ItsComplicated: 7}
	})
	require.NoError(t, err)

	assert.False(t, invoked)
	assert.False(t, lazy.Materialized(obj))

	v, err := obj.Get("ItsComplicated")
	require.NoError(t, err)
	assert.True(t, invoked)
	assert.True(t, lazy.Materialized(obj))
	assert.Equal(t, 7, v)
}

func TestLazyFactoryRunsOnce(t *testing.T) {
	var calls atomic.Int32
	obj, err := lazy.For(func() *Complicated {
		calls.Add(1)
		return &Complicated{ItsComplicated: 1}
	})
	require.NoError(t, err)

	require.NoError(t, obj.Set("Notes", []string{"a"}))
	out, err := obj.Call("Bump", 2)
	require.NoError(t, err)
	assert.Equal(t, []any{3}, out)

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			_, err := obj.Get("ItsComplicated")
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), calls.Load())

	base, err := lazy.Base[Complicated](obj)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, base.Notes)
	assert.Equal(t, 3, base.ItsComplicated)
}

func TestLazyKeyIsolation(t *testing.T) {
	invoked := false
	obj, err := lazy.ForKeyed("ID", 123, func() *Complicated {
		invoked = true
		return &Complicated{ID: 1, ItsComplicated: 7}
	})
	require.NoError(t, err)
	assert.Equal(t, "Complicated_LazyDelegateKeyed_ID", obj.Handle().Name())

	v, err := obj.Get("ID")
	require.NoError(t, err)
	assert.Equal(t, 123, v)

	require.NoError(t, obj.Set("ID", 456))
	v, err = obj.Get("ID")
	require.NoError(t, err)
	assert.Equal(t, 456, v)
	assert.False(t, invoked)

	base, err := lazy.Base[Complicated](obj)
	require.NoError(t, err)
	assert.True(t, invoked)
	assert.Equal(t, 1, base.ID)

	v, err = obj.Get("ID")
	require.NoError(t, err)
	assert.Equal(t, 456, v)
}

type Untagged struct {
	N int
}

func TestLazyKeyFromTag(t *testing.T) {
	invoked := false
	obj, err := lazy.ForTagged(123, func() *Complicated {
		invoked = true
		return &Complicated{ID: 1}
	})
	require.NoError(t, err)
	assert.Equal(t, "Complicated_LazyDelegateKeyed_ID", obj.Handle().Name())

	v, err := obj.Get("ID")
	require.NoError(t, err)
	assert.Equal(t, 123, v)
	assert.False(t, invoked)

	explicit, err := lazy.ForKeyed("ID", 5, func() *Complicated { return nil })
	require.NoError(t, err)
	assert.Same(t, explicit.Handle(), obj.Handle())

	_, err = lazy.ForTagged(1, func() *Untagged { return &Untagged{} })
	assert.ErrorIs(t, err, model.ErrInvalidTarget)

	_, err = lazy.ForTagged("not an int", func() *Complicated { return nil })
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestLazyWithoutStatePanics(t *testing.T) {
	d, err := descriptor.For[Complicated]()
	require.NoError(t, err)
	h, err := lazy.Synthesize(d, "")
	require.NoError(t, err)
	obj := proxies.NewObject(h, nil)

	defer func() {
		err, ok := recover().(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, model.ErrInternalInvariant)
	}()
	_, _ = obj.Get("ItsComplicated")
}

func TestLazyTypesAreCachedPerKey(t *testing.T) {
	d, err := descriptor.For[Complicated]()
	require.NoError(t, err)

	unkeyed, err := lazy.Synthesize(d, "")
	require.NoError(t, err)
	again, err := lazy.Synthesize(d, "")
	require.NoError(t, err)
	keyed, err := lazy.Synthesize(d, "ID")
	require.NoError(t, err)

	assert.Same(t, unkeyed, again)
	assert.NotSame(t, unkeyed, keyed)
	assert.Equal(t, "Complicated_LazyDelegate", unkeyed.Name())
	assert.Equal(t, "ID", keyed.Aux())
}

func TestLazyNilBase(t *testing.T) {
	obj, err := lazy.For(func() *Complicated { return nil })
	require.NoError(t, err)

	_, err = obj.Get("ItsComplicated")
	assert.ErrorIs(t, err, model.ErrNilBase)
	_, err = obj.Call("Bump", 1)
	assert.ErrorIs(t, err, model.ErrNilBase)
	assert.False(t, lazy.Materialized(obj))
}

func TestLazyUntypedFactoryMustReturnTarget(t *testing.T) {
	d, err := descriptor.For[Complicated]()
	require.NoError(t, err)

	obj, err := lazy.New(d, func() any { return &Shape{} })
	require.NoError(t, err)
	_, err = obj.Get("ItsComplicated")
	assert.ErrorIs(t, err, model.ErrInvalidTarget)

	obj, err = lazy.NewKeyed(d, "ID", 9, func() any { return &Complicated{ItsComplicated: 2} })
	require.NoError(t, err)
	v, err := obj.Get("ItsComplicated")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestLazyRejectsInvalidTargets(t *testing.T) {
	_, err := lazy.ForKeyed[IEagerBeaver]("ID", 123, nil)
	assert.ErrorIs(t, err, model.ErrInvalidTarget)
	assert.ErrorContains(t, err, "interfaces can't be delegated to")

	_, err = lazy.For(func() *Shape { return &Shape{} })
	assert.ErrorIs(t, err, model.ErrInvalidTarget)

	_, err = lazy.ForKeyed("Missing", 1, func() *Complicated { return nil })
	assert.ErrorIs(t, err, model.ErrInvalidTarget)

	_, err = lazy.ForKeyed("ID", "not an int", func() *Complicated { return nil })
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = lazy.For[Complicated](nil)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}
