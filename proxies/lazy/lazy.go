// Package lazy synthesizes stand-ins for concrete struct types whose real
// instance is built by a factory on first use.
//
// Nothing of the target exists until a non-key property is accessed or a
// method is called. The factory then runs exactly once per object and every
// later access goes to the same instance. An optional key property lives on
// the stand-in itself, so it can be read and written without building the
// instance.
package lazy

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/on-the-ground/proxy_ive_go/proxies"
	"github.com/on-the-ground/proxy_ive_go/proxies/descriptor"
	"github.com/on-the-ground/proxy_ive_go/proxies/model"
	"github.com/on-the-ground/proxy_ive_go/shared/helper"
)

type delegate struct {
	once         sync.Once
	factory      func() reflect.Value
	want         reflect.Type
	base         reflect.Value
	err          error
	materialized atomic.Bool

	// key is the independent slot of the key property, invalid when unkeyed.
	key reflect.Value
}

func (s *delegate) ensureBase(typeName string) (reflect.Value, error) {
	s.once.Do(func() {
		s.err = fmt.Errorf("%w: factory of %s did not complete", model.ErrNilBase, typeName)
		b := s.factory()
		switch {
		case !b.IsValid() || (b.Kind() == reflect.Pointer && b.IsNil()):
			s.err = fmt.Errorf("%w: %s", model.ErrNilBase, typeName)
			return
		case b.Type() != s.want:
			s.err = fmt.Errorf("%w: factory of %s returned %s, want %s", model.ErrInvalidTarget, typeName, b.Type(), s.want)
			return
		}
		s.base = b
		s.err = nil
		s.materialized.Store(true)
		proxies.Logger().Debug("materialized lazy delegate", zap.String("type", typeName))
	})
	return s.base, s.err
}

// Synthesize returns the cached lazy type of target. keyProperty, when not
// empty, names a field of target that is kept apart from the instance.
func Synthesize(target *descriptor.Descriptor, keyProperty string) (*proxies.TypeHandle, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: nil descriptor", model.ErrInvalidTarget)
	}
	if target.IsInterface() {
		return nil, fmt.Errorf("%w: interfaces can't be delegated to: %s", model.ErrInvalidTarget, target.FullName())
	}
	if target.IsAbstract() {
		return nil, fmt.Errorf("%w: abstract types can't be delegated to: %s", model.ErrInvalidTarget, target.FullName())
	}
	if keyProperty != "" {
		p, ok := target.Property(keyProperty)
		if !ok || !p.IsField() {
			return nil, fmt.Errorf("%w: %s has no key property %s", model.ErrInvalidTarget, target.FullName(), keyProperty)
		}
	}
	return proxies.Define(model.StrategyLazyForward, target, nil, keyProperty, func() (*proxies.TypeHandle, error) {
		return build(target, keyProperty), nil
	})
}

// Instantiate creates a lazy object over h. factory must return a *T where
// T is the target of h. keyValue seeds the key property of keyed types.
func Instantiate(h *proxies.TypeHandle, keyValue any, factory func() any) (*proxies.Object, error) {
	if h == nil || h.Strategy() != model.StrategyLazyForward {
		return nil, fmt.Errorf("%w: %v is not a lazy type", model.ErrInvalidTarget, h)
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: nil factory", model.ErrInvalidArgument)
	}
	st := &delegate{
		factory: func() reflect.Value { return reflect.ValueOf(factory()) },
		want:    reflect.PointerTo(h.Target().Type()),
	}
	if h.Aux() != "" {
		p, _ := h.Target().Property(h.Aux())
		v, ok := helper.ValueOf(keyValue, p.Type)
		if !ok {
			return nil, fmt.Errorf("%w: key %T is not assignable to %s.%s of type %s",
				model.ErrInvalidArgument, keyValue, h.Target().Name(), p.Name, p.Type)
		}
		st.key = reflect.New(p.Type).Elem()
		st.key.Set(v)
	}
	return proxies.NewObject(h, st), nil
}

// New returns a lazy object of d built by factory on first use.
func New(d *descriptor.Descriptor, factory func() any) (*proxies.Object, error) {
	h, err := Synthesize(d, "")
	if err != nil {
		return nil, err
	}
	return Instantiate(h, nil, factory)
}

// NewKeyed is New with the key property set to keyValue up front.
func NewKeyed(d *descriptor.Descriptor, keyProperty string, keyValue any, factory func() any) (*proxies.Object, error) {
	if keyProperty == "" {
		return nil, fmt.Errorf("%w: empty key property", model.ErrInvalidArgument)
	}
	h, err := Synthesize(d, keyProperty)
	if err != nil {
		return nil, err
	}
	return Instantiate(h, keyValue, factory)
}

// For returns a lazy *T stand-in built by factory on first use.
func For[T any](factory func() *T) (*proxies.Object, error) {
	d, err := descriptor.For[T]()
	if err != nil {
		return nil, err
	}
	return New(d, untyped(factory))
}

// ForKeyed is For with the key property set to keyValue up front.
func ForKeyed[T any](keyProperty string, keyValue any, factory func() *T) (*proxies.Object, error) {
	d, err := descriptor.For[T]()
	if err != nil {
		return nil, err
	}
	return NewKeyed(d, keyProperty, keyValue, untyped(factory))
}

// ForTagged is ForKeyed with the key property taken from the field of T
// tagged `proxy:"key"`.
func ForTagged[T any](keyValue any, factory func() *T) (*proxies.Object, error) {
	d, err := descriptor.For[T]()
	if err != nil {
		return nil, err
	}
	key, ok := d.KeyProperty()
	if !ok {
		return nil, fmt.Errorf("%w: %s has no field tagged %s:\"key\"", model.ErrInvalidTarget, d.FullName(), descriptor.KeyTag)
	}
	return NewKeyed(d, key.Name, keyValue, untyped(factory))
}

// Materialized reports whether the factory of o has produced its instance.
func Materialized(o *proxies.Object) bool {
	st, ok := o.State().(*delegate)
	return ok && st.materialized.Load()
}

// Base returns the instance behind o, building it if needed.
func Base[T any](o *proxies.Object) (*T, error) {
	st, ok := o.State().(*delegate)
	if !ok || o.Handle().Strategy() != model.StrategyLazyForward {
		return nil, fmt.Errorf("%w: %s is not a lazy object", model.ErrInvalidTarget, o)
	}
	b, err := st.ensureBase(o.Handle().Name())
	if err != nil {
		return nil, err
	}
	return helper.GetTypedValueOf[*T](func() (any, error) {
		return b.Interface(), nil
	})
}

func untyped[T any](factory func() *T) func() any {
	if factory == nil {
		return nil
	}
	return func() any { return factory() }
}

func build(d *descriptor.Descriptor, keyProperty string) *proxies.TypeHandle {
	name := d.Name() + "_LazyDelegate"
	if keyProperty != "" {
		name += "Keyed_" + keyProperty
	}
	b := proxies.NewBuilder(name, model.StrategyLazyForward, d).Aux(keyProperty)

	for _, p := range d.Properties() {
		switch {
		case p.Name == keyProperty:
			b.Property(p, keyAccessor())
		case p.IsField():
			b.Property(p, fieldAccessor(p, name))
		default:
			b.Property(p, methodAccessor(p, name))
		}
	}

	pt := reflect.PointerTo(d.Type())
	for _, m := range d.Methods() {
		pm, ok := pt.MethodByName(m.Name)
		if !ok {
			panic(fmt.Errorf("%w: %s lists %s outside the method set of %s", model.ErrInternalInvariant, d, m.Name, pt))
		}
		b.Method(m, forwarder(pm.Index, name))
	}
	return b.Build()
}

func keyAccessor() proxies.Accessor {
	return proxies.Accessor{
		Get: func(o *proxies.Object) (reflect.Value, error) {
			return stateOf(o).key, nil
		},
		Set: func(o *proxies.Object, v reflect.Value) error {
			stateOf(o).key.Set(v)
			return nil
		},
	}
}

func fieldAccessor(p descriptor.PropertySignature, typeName string) proxies.Accessor {
	field := func(o *proxies.Object) (reflect.Value, error) {
		base, err := stateOf(o).ensureBase(typeName)
		if err != nil {
			return reflect.Value{}, err
		}
		return base.Elem().FieldByIndexErr(p.Field)
	}
	return proxies.Accessor{
		Get: field,
		Set: func(o *proxies.Object, v reflect.Value) error {
			f, err := field(o)
			if err != nil {
				return err
			}
			f.Set(v)
			return nil
		},
	}
}

// methodAccessor serves properties of embedded interfaces through their
// accessor methods on the instance.
func methodAccessor(p descriptor.PropertySignature, typeName string) proxies.Accessor {
	var acc proxies.Accessor
	if p.Getter != "" {
		acc.Get = func(o *proxies.Object) (reflect.Value, error) {
			base, err := stateOf(o).ensureBase(typeName)
			if err != nil {
				return reflect.Value{}, err
			}
			return base.MethodByName(p.Getter).Call(nil)[0], nil
		}
	}
	if p.Setter != "" {
		acc.Set = func(o *proxies.Object, v reflect.Value) error {
			base, err := stateOf(o).ensureBase(typeName)
			if err != nil {
				return err
			}
			base.MethodByName(p.Setter).Call([]reflect.Value{v})
			return nil
		}
	}
	return acc
}

func forwarder(idx int, typeName string) proxies.MethodFunc {
	return func(o *proxies.Object, args []reflect.Value) ([]reflect.Value, error) {
		base, err := stateOf(o).ensureBase(typeName)
		if err != nil {
			return nil, err
		}
		return base.Method(idx).Call(args), nil
	}
}

func stateOf(o *proxies.Object) *delegate {
	return helper.MustGetTypedValue[*delegate](func() (any, error) {
		if o.State() == nil {
			return nil, fmt.Errorf("%w: %s has no lazy state", model.ErrInternalInvariant, o)
		}
		return o.State(), nil
	})
}
