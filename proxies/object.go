package proxies

import (
	"fmt"
	"reflect"

	"github.com/on-the-ground/proxy_ive_go/proxies/descriptor"
	"github.com/on-the-ground/proxy_ive_go/proxies/model"
	"github.com/on-the-ground/proxy_ive_go/shared/helper"
)

// Object is an instance of a synthesized type. Its state is owned by the
// synthesizer that created it.
type Object struct {
	handle *TypeHandle
	state  any
}

// NewObject creates an instance of h carrying state. Synthesizers call it
// from their Instantiate functions.
func NewObject(h *TypeHandle, state any) *Object {
	if h == nil {
		panic(fmt.Errorf("%w: object without a type", model.ErrInternalInvariant))
	}
	return &Object{handle: h, state: state}
}

func (o *Object) Handle() *TypeHandle { return o.handle }

func (o *Object) State() any { return o.state }

// Is reports whether o can stand in for the type described by d.
func (o *Object) Is(d *descriptor.Descriptor) bool {
	return o.handle.Implements(d)
}

// Call invokes the named method with args and returns its results.
func (o *Object) Call(method string, args ...any) ([]any, error) {
	m, ok := o.handle.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no method %s", model.ErrNoSuchMember, o.handle.name, method)
	}
	in, err := bindArgs(m.sig, args)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", o.handle.name, method, err)
	}
	out, err := m.body(o, in)
	if err != nil {
		return nil, err
	}
	return helper.Interfaces(out), nil
}

// Get reads the named property.
func (o *Object) Get(property string) (any, error) {
	p, ok := o.handle.properties[property]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no property %s", model.ErrNoSuchMember, o.handle.name, property)
	}
	if p.acc.Get == nil {
		return nil, fmt.Errorf("%w: property %s of %s is write-only", model.ErrNoSuchMember, property, o.handle.name)
	}
	v, err := p.acc.Get(o)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// Set writes the named property. v must be assignable to the property type.
func (o *Object) Set(property string, v any) error {
	p, ok := o.handle.properties[property]
	if !ok {
		return fmt.Errorf("%w: %s has no property %s", model.ErrNoSuchMember, o.handle.name, property)
	}
	if p.acc.Set == nil {
		return fmt.Errorf("%w: property %s of %s is read-only", model.ErrNoSuchMember, property, o.handle.name)
	}
	rv, ok := helper.ValueOf(v, p.sig.Type)
	if !ok {
		return fmt.Errorf("%w: %T is not assignable to %s.%s of type %s",
			model.ErrInvalidArgument, v, o.handle.name, property, p.sig.Type)
	}
	return p.acc.Set(o, rv)
}

func (o *Object) String() string {
	return o.handle.name
}

func bindArgs(sig descriptor.MethodSignature, args []any) ([]reflect.Value, error) {
	fixed := len(sig.Params)
	if sig.Variadic {
		fixed--
	}
	if len(args) < fixed || (!sig.Variadic && len(args) > fixed) {
		return nil, fmt.Errorf("%w: want %d arguments, got %d", model.ErrInvalidArgument, len(sig.Params), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		t := variadicParam(sig, i)
		v, ok := helper.ValueOf(a, t)
		if !ok {
			return nil, fmt.Errorf("%w: argument %d: %T is not assignable to %s", model.ErrInvalidArgument, i, a, t)
		}
		in[i] = v
	}
	return in, nil
}

// variadicParam returns the type of the i-th passed argument, unpacking the
// trailing variadic slice.
func variadicParam(sig descriptor.MethodSignature, i int) reflect.Type {
	last := len(sig.Params) - 1
	if sig.Variadic && i >= last {
		return sig.Params[last].Elem()
	}
	return sig.Params[i]
}

// SpreadArgs flattens the trailing variadic slice of args received through a
// func value into individual arguments, the form MethodFunc bodies get.
func SpreadArgs(sig descriptor.MethodSignature, args []reflect.Value) []reflect.Value {
	if !sig.Variadic || len(args) == 0 {
		return args
	}
	last := args[len(args)-1]
	out := append([]reflect.Value(nil), args[:len(args)-1]...)
	for i := 0; i < last.Len(); i++ {
		out = append(out, last.Index(i))
	}
	return out
}
