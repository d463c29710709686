// Package forward synthesizes interface implementations that forward every
// call to a source object of an unrelated type.
//
// A source serves a target interface when, for every method of the
// interface, it has a method of the same name taking identical parameter
// types. Results are passed back unchanged. The check happens once, when
// the (target, source type) pair is first synthesized.
package forward

import (
	"fmt"
	"reflect"

	"github.com/on-the-ground/proxy_ive_go/proxies"
	"github.com/on-the-ground/proxy_ive_go/proxies/descriptor"
	"github.com/on-the-ground/proxy_ive_go/proxies/model"
)

type binding struct {
	src reflect.Value
}

// Synthesize returns the cached forwarding type from source to target.
func Synthesize(target *descriptor.Descriptor, source reflect.Type) (*proxies.TypeHandle, error) {
	if target == nil || !target.IsInterface() {
		return nil, fmt.Errorf("%w: target type must be an interface, got %v", model.ErrInvalidTarget, target)
	}
	if source == nil {
		return nil, fmt.Errorf("%w: nil source type", model.ErrInvalidTarget)
	}
	return proxies.Define(model.StrategyForward, target, source, "", func() (*proxies.TypeHandle, error) {
		return build(target, source)
	})
}

// Extract wraps src so that it can be used as target.
func Extract(target *descriptor.Descriptor, src any) (*proxies.Object, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", model.ErrInvalidTarget)
	}
	sv := reflect.ValueOf(src)
	h, err := Synthesize(target, sv.Type())
	if err != nil {
		return nil, err
	}
	return proxies.NewObject(h, &binding{src: sv}), nil
}

// From wraps src so that it can be used as the interface I.
func From[I any](src any) (*proxies.Object, error) {
	d, err := descriptor.For[I]()
	if err != nil {
		return nil, err
	}
	return Extract(d, src)
}

// Source returns the object a forwarding object delegates to.
func Source(o *proxies.Object) (any, error) {
	b, ok := o.State().(*binding)
	if !ok || o.Handle().Strategy() != model.StrategyForward {
		return nil, fmt.Errorf("%w: %s is not a forwarding object", model.ErrInvalidTarget, o)
	}
	return b.src.Interface(), nil
}

func build(target *descriptor.Descriptor, source reflect.Type) (*proxies.TypeHandle, error) {
	srcMethods := make(map[string]descriptor.MethodSignature)
	for _, m := range descriptor.MethodsOf(source) {
		srcMethods[m.Name] = m
	}

	b := proxies.NewBuilder(sourceName(source)+"To"+target.Name()+"Wrapper", model.StrategyForward, target).
		Source(source)

	for _, tm := range target.Methods() {
		sm, ok := srcMethods[tm.Name]
		if !ok || !sm.SameParams(tm) {
			return nil, &model.SignatureMismatchError{
				Method: tm.Name,
				Source: source.String(),
				Target: target.FullName(),
			}
		}
		rm, _ := source.MethodByName(tm.Name)
		b.Method(tm, forwarder(rm.Index))
	}

	for _, p := range target.Properties() {
		var acc proxies.Accessor
		if p.Getter != "" {
			m, _ := source.MethodByName(p.Getter)
			call := forwarder(m.Index)
			acc.Get = func(o *proxies.Object) (reflect.Value, error) {
				out, err := call(o, nil)
				if err != nil {
					return reflect.Value{}, err
				}
				return out[0], nil
			}
		}
		if p.Setter != "" {
			m, _ := source.MethodByName(p.Setter)
			call := forwarder(m.Index)
			acc.Set = func(o *proxies.Object, v reflect.Value) error {
				_, err := call(o, []reflect.Value{v})
				return err
			}
		}
		b.Property(p, acc)
	}
	return b.Build(), nil
}

func forwarder(idx int) proxies.MethodFunc {
	return func(o *proxies.Object, args []reflect.Value) ([]reflect.Value, error) {
		b, ok := o.State().(*binding)
		if !ok {
			panic(fmt.Errorf("%w: forwarding state of %s is %T", model.ErrInternalInvariant, o, o.State()))
		}
		return b.src.Method(idx).Call(args), nil
	}
}

// sourceName names the source in generated type names: the bare type name,
// without pointer or package.
func sourceName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer && t.Name() == "" {
		t = t.Elem()
	}
	if n := t.Name(); n != "" {
		return n
	}
	return t.String()
}
