// Package mock synthesizes recording implementations. Every method call is
// appended to the call log of the object's Core and answered by the first
// setup rule registered for the method whose predicate matches, or by zero
// values when none does.
//
//	obj, _ := mock.Of[Greeter]()
//	rec, _ := mock.AsRecordingCore(obj)
//	rec.AddSetup("Greet", mock.Args("world"), mock.Return("hello, world"))
//	out, _ := obj.Call("Greet", "world")
package mock

import (
	"fmt"
	"reflect"

	"github.com/on-the-ground/proxy_ive_go/proxies"
	"github.com/on-the-ground/proxy_ive_go/proxies/descriptor"
	"github.com/on-the-ground/proxy_ive_go/proxies/model"
	"github.com/on-the-ground/proxy_ive_go/shared/helper"
)

type instance struct {
	core *Core
	// base is a *T for struct targets and invalid for interfaces.
	base reflect.Value
}

// Synthesize returns the cached mock type of d.
func Synthesize(d *descriptor.Descriptor) (*proxies.TypeHandle, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil descriptor", model.ErrInvalidTarget)
	}
	return proxies.Define(model.StrategyMock, d, nil, "", func() (*proxies.TypeHandle, error) {
		return build(d), nil
	})
}

// Instantiate creates a mock object with an empty call log and no rules.
func Instantiate(h *proxies.TypeHandle) (*proxies.Object, error) {
	if h == nil || h.Strategy() != model.StrategyMock {
		return nil, fmt.Errorf("%w: %v is not a mock type", model.ErrInvalidTarget, h)
	}
	st := &instance{core: NewCore()}
	d := h.Target()
	if !d.IsInterface() {
		st.base = reflect.New(d.Type())
		fillHooks(st, d, h.Name())
	}
	return proxies.NewObject(h, st), nil
}

// New returns a fresh mock object of d.
func New(d *descriptor.Descriptor) (*proxies.Object, error) {
	h, err := Synthesize(d)
	if err != nil {
		return nil, err
	}
	return Instantiate(h)
}

// Of returns a fresh mock object of T.
func Of[T any]() (*proxies.Object, error) {
	d, err := descriptor.For[T]()
	if err != nil {
		return nil, err
	}
	return New(d)
}

// AsRecordingCore returns the recorder of a mock object.
func AsRecordingCore(x any) (Recorder, error) {
	switch v := x.(type) {
	case *Core:
		return v, nil
	case *proxies.Object:
		if v == nil {
			break
		}
		if st, ok := v.State().(*instance); ok && v.Handle().Strategy() == model.StrategyMock {
			return st.core, nil
		}
	}
	return nil, fmt.Errorf("%w: %v is not a mock", model.ErrInvalidTarget, x)
}

// Base returns the embedded *T of a mock over a struct type.
func Base[T any](o *proxies.Object) (*T, error) {
	st, ok := o.State().(*instance)
	if !ok || o.Handle().Strategy() != model.StrategyMock {
		return nil, fmt.Errorf("%w: %s is not a mock", model.ErrInvalidTarget, o)
	}
	if !st.base.IsValid() {
		return nil, fmt.Errorf("%w: %s mocks an interface", model.ErrInvalidTarget, o)
	}
	return helper.GetTypedValueOf[*T](func() (any, error) {
		return st.base.Interface(), nil
	})
}

func build(d *descriptor.Descriptor) *proxies.TypeHandle {
	name := d.Name() + "_Mock"
	b := proxies.NewBuilder(name, model.StrategyMock, d)

	for _, m := range d.Methods() {
		m := m
		b.Method(m, func(o *proxies.Object, args []reflect.Value) ([]reflect.Value, error) {
			return stateOf(o).dispatch(m, args, name)
		})
	}

	for _, p := range d.Properties() {
		if p.IsField() {
			b.Property(p, fieldAccessor(p))
			continue
		}
		var acc proxies.Accessor
		if getter, ok := d.Method(p.Getter); ok && p.Getter != "" {
			acc.Get = func(o *proxies.Object) (reflect.Value, error) {
				out, err := stateOf(o).dispatch(getter, nil, name)
				if err != nil {
					return reflect.Value{}, err
				}
				return out[0], nil
			}
		}
		if setter, ok := d.Method(p.Setter); ok && p.Setter != "" {
			acc.Set = func(o *proxies.Object, v reflect.Value) error {
				_, err := stateOf(o).dispatch(setter, []reflect.Value{v}, name)
				return err
			}
		}
		b.Property(p, acc)
	}
	return b.Build()
}

// dispatch records the call on the core and converts the response to the
// result types of m.
func (st *instance) dispatch(m descriptor.MethodSignature, args []reflect.Value, typeName string) ([]reflect.Value, error) {
	resp, _ := st.core.Record(m.Name, nil, helper.Interfaces(args))
	return results(m, resp, typeName)
}

func results(m descriptor.MethodSignature, resp any, typeName string) ([]reflect.Value, error) {
	if resp == nil || len(m.Results) == 0 {
		return helper.Zeros(m.Results), nil
	}
	if len(m.Results) == 1 {
		v, ok := helper.ValueOf(resp, m.Results[0])
		if !ok {
			return nil, fmt.Errorf("%w: setup of %s.%s returned %T, want %s",
				model.ErrInvalidArgument, typeName, m.Name, resp, m.Results[0])
		}
		return []reflect.Value{v}, nil
	}

	vals, ok := resp.([]any)
	if !ok || len(vals) != len(m.Results) {
		return nil, fmt.Errorf("%w: setup of %s.%s must return %d values as []any, got %T",
			model.ErrInvalidArgument, typeName, m.Name, len(m.Results), resp)
	}
	out := make([]reflect.Value, len(vals))
	for i, r := range vals {
		v, ok := helper.ValueOf(r, m.Results[i])
		if !ok {
			return nil, fmt.Errorf("%w: setup of %s.%s returned %T for result %d, want %s",
				model.ErrInvalidArgument, typeName, m.Name, r, i, m.Results[i])
		}
		out[i] = v
	}
	return out, nil
}

// fillHooks routes the abstract hook fields of the base to the core so that
// base code calling them is recorded too.
func fillHooks(st *instance, d *descriptor.Descriptor, typeName string) {
	for _, m := range d.Methods() {
		if m.Hook == nil {
			continue
		}
		f, err := st.base.Elem().FieldByIndexErr(m.Hook)
		if err != nil || !f.CanSet() {
			continue
		}
		m := m
		f.Set(reflect.MakeFunc(f.Type(), func(args []reflect.Value) []reflect.Value {
			out, err := st.dispatch(m, proxies.SpreadArgs(m, args), typeName)
			if err != nil {
				panic(err)
			}
			return out
		}))
	}
}

func fieldAccessor(p descriptor.PropertySignature) proxies.Accessor {
	return proxies.Accessor{
		Get: func(o *proxies.Object) (reflect.Value, error) {
			return stateOf(o).base.Elem().FieldByIndexErr(p.Field)
		},
		Set: func(o *proxies.Object, v reflect.Value) error {
			f, err := stateOf(o).base.Elem().FieldByIndexErr(p.Field)
			if err != nil {
				return err
			}
			f.Set(v)
			return nil
		},
	}
}

func stateOf(o *proxies.Object) *instance {
	return helper.MustGetTypedValue[*instance](func() (any, error) {
		if o.State() == nil {
			return nil, fmt.Errorf("%w: %s has no mock state", model.ErrInternalInvariant, o)
		}
		return o.State(), nil
	})
}
