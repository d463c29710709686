// Package stub synthesizes minimal implementations: every property is a
// plain backing slot, abstract methods report that they are not
// implemented, and concrete methods keep their real bodies.
//
// Methods promoted from an interface embedded in a struct count as abstract:
// the embedded value of a stub is always nil.
package stub

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/on-the-ground/proxy_ive_go/proxies"
	"github.com/on-the-ground/proxy_ive_go/proxies/descriptor"
	"github.com/on-the-ground/proxy_ive_go/proxies/model"
	"github.com/on-the-ground/proxy_ive_go/shared/helper"
)

type instance struct {
	// base is a *T for struct targets and invalid for interfaces.
	base  reflect.Value
	slots map[string]reflect.Value
}

// Synthesize returns the cached stub type of d, defining it on first use.
func Synthesize(d *descriptor.Descriptor) (*proxies.TypeHandle, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil descriptor", model.ErrInvalidTarget)
	}
	return proxies.Define(model.StrategyStub, d, nil, "", func() (*proxies.TypeHandle, error) {
		return build(d), nil
	})
}

// Instantiate creates a stub object with zeroed slots.
func Instantiate(h *proxies.TypeHandle) (*proxies.Object, error) {
	if h == nil || h.Strategy() != model.StrategyStub {
		return nil, fmt.Errorf("%w: %v is not a stub type", model.ErrInvalidTarget, h)
	}
	d := h.Target()
	st := &instance{slots: make(map[string]reflect.Value)}
	for _, p := range d.Properties() {
		if !p.IsField() {
			st.slots[p.Name] = reflect.New(p.Type).Elem()
		}
	}
	if !d.IsInterface() {
		st.base = reflect.New(d.Type())
		fillHooks(st.base, d, h.Name())
	}
	return proxies.NewObject(h, st), nil
}

// New returns a fresh stub object of d.
func New(d *descriptor.Descriptor) (*proxies.Object, error) {
	h, err := Synthesize(d)
	if err != nil {
		return nil, err
	}
	return Instantiate(h)
}

// Of returns a fresh stub object of T.
func Of[T any]() (*proxies.Object, error) {
	d, err := descriptor.For[T]()
	if err != nil {
		return nil, err
	}
	return New(d)
}

// Base returns the embedded *T of a stub over a struct type.
func Base[T any](o *proxies.Object) (*T, error) {
	st, ok := o.State().(*instance)
	if !ok || o.Handle().Strategy() != model.StrategyStub {
		return nil, fmt.Errorf("%w: %s is not a stub", model.ErrInvalidTarget, o)
	}
	if !st.base.IsValid() {
		return nil, fmt.Errorf("%w: %s stubs an interface", model.ErrInvalidTarget, o)
	}
	return helper.GetTypedValueOf[*T](func() (any, error) {
		return st.base.Interface(), nil
	})
}

func build(d *descriptor.Descriptor) *proxies.TypeHandle {
	name := d.Name() + "Proxy"
	b := proxies.NewBuilder(name, model.StrategyStub, d)

	for _, p := range d.Properties() {
		if p.IsField() {
			b.Property(p, fieldAccessor(p))
			continue
		}
		acc := slotAccessor(p)
		b.Property(p, acc)

		getter := p.Getter
		if getter == "" {
			getter = "Get" + p.Name
		}
		if ownsName(d, getter, p) {
			b.Method(descriptor.MethodSignature{Name: getter, Results: []reflect.Type{p.Type}},
				func(o *proxies.Object, _ []reflect.Value) ([]reflect.Value, error) {
					v, err := acc.Get(o)
					return []reflect.Value{v}, err
				})
		}
		setter := p.Setter
		if setter == "" {
			setter = "Set" + p.Name
		}
		if ownsName(d, setter, p) {
			b.Method(descriptor.MethodSignature{Name: setter, Params: []reflect.Type{p.Type}},
				func(o *proxies.Object, args []reflect.Value) ([]reflect.Value, error) {
					return nil, acc.Set(o, args[0])
				})
		}
	}

	promoted := make(map[string]bool)
	for _, iface := range d.Interfaces() {
		for _, m := range iface.Methods() {
			promoted[m.Name] = true
		}
	}

	pt := reflect.PointerTo(d.Type())
	for _, m := range d.Methods() {
		if b.HasMethod(m.Name) {
			continue
		}
		if _, isAccessor := d.AccessorOf(m.Name); isAccessor {
			continue
		}
		if m.IsAbstract || promoted[m.Name] {
			b.Method(m, unimplemented(m.Name, name))
			continue
		}
		pm, ok := pt.MethodByName(m.Name)
		if !ok {
			panic(fmt.Errorf("%w: %s lists %s outside the method set of %s", model.ErrInternalInvariant, d, m.Name, pt))
		}
		idx := pm.Index
		b.Method(m, func(o *proxies.Object, args []reflect.Value) (out []reflect.Value, err error) {
			defer recoverUnimplemented(&err)
			return stateOf(o).base.Method(idx).Call(args), nil
		})
	}
	return b.Build()
}

// ownsName reports whether a generated accessor may use name: it is free
// or already belongs to p.
func ownsName(d *descriptor.Descriptor, name string, p descriptor.PropertySignature) bool {
	if _, declared := d.Method(name); !declared {
		return true
	}
	owner, ok := d.AccessorOf(name)
	return ok && owner.Name == p.Name
}

func slotAccessor(p descriptor.PropertySignature) proxies.Accessor {
	return proxies.Accessor{
		Get: func(o *proxies.Object) (reflect.Value, error) {
			return stateOf(o).slots[p.Name], nil
		},
		Set: func(o *proxies.Object, v reflect.Value) error {
			stateOf(o).slots[p.Name].Set(v)
			return nil
		},
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

func unimplemented(method, typeName string) proxies.MethodFunc {
	return func(*proxies.Object, []reflect.Value) ([]reflect.Value, error) {
		return nil, &model.UnimplementedError{Method: method, Type: typeName}
	}
}

// fillHooks overrides the abstract hook fields of base so that base code
// calling them observes the stub.
func fillHooks(base reflect.Value, d *descriptor.Descriptor, typeName string) {
	for _, m := range d.Methods() {
		if m.Hook == nil {
			continue
		}
		f, err := base.Elem().FieldByIndexErr(m.Hook)
		if err != nil || !f.CanSet() {
			continue
		}
		hookErr := &model.UnimplementedError{Method: m.Name, Type: typeName}
		f.Set(reflect.MakeFunc(f.Type(), func([]reflect.Value) []reflect.Value {
			panic(hookErr)
		}))
	}
}

// recoverUnimplemented turns the panic of an overridden hook reached from a
// concrete body into the returned error.
func recoverUnimplemented(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok && errors.Is(e, model.ErrUnimplemented) {
		*err = e
		return
	}
	panic(r)
}

func stateOf(o *proxies.Object) *instance {
	return helper.MustGetTypedValue[*instance](func() (any, error) {
		if o.State() == nil {
			return nil, fmt.Errorf("%w: %s has no stub state", model.ErrInternalInvariant, o)
		}
		return o.State(), nil
	})
}
