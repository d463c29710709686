package proxies

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/google/uuid"

	"github.com/on-the-ground/proxy_ive_go/proxies/descriptor"
	"github.com/on-the-ground/proxy_ive_go/proxies/model"
)

// MethodFunc is the body of a synthesized method. args already match the
// declared parameter types; variadic arguments are passed one by one.
type MethodFunc func(o *Object, args []reflect.Value) ([]reflect.Value, error)

// Accessor reads and writes one property. A nil Set makes the property
// read-only, a nil Get write-only.
type Accessor struct {
	Get func(o *Object) (reflect.Value, error)
	Set func(o *Object, v reflect.Value) error
}

type boundMethod struct {
	sig  descriptor.MethodSignature
	body MethodFunc
}

type boundProperty struct {
	sig descriptor.PropertySignature
	acc Accessor
}

// TypeHandle is a synthesized type: a named dispatch table over the
// capability set of a target type. Handles are immutable and shared by every
// object of the type.
type TypeHandle struct {
	id         string
	name       string
	strategy   model.Strategy
	target     *descriptor.Descriptor
	sourceType reflect.Type
	aux        string
	definedAt  model.TimeSpan

	methods    map[string]boundMethod
	properties map[string]boundProperty
}

func (h *TypeHandle) ID() string { return h.id }

// Name is the generated type name, e.g. GreeterProxy.
func (h *TypeHandle) Name() string { return h.name }

func (h *TypeHandle) Strategy() model.Strategy { return h.strategy }

// Target is the descriptor the type implements (interface) or extends (struct).
func (h *TypeHandle) Target() *descriptor.Descriptor { return h.target }

// SourceType is the forwarded-to type of a forwarding type, nil otherwise.
func (h *TypeHandle) SourceType() reflect.Type { return h.sourceType }

// Aux is the strategy specific part of the cache key (the key property of a
// keyed lazy type).
func (h *TypeHandle) Aux() string { return h.aux }

func (h *TypeHandle) DefinedAt() model.TimeSpan { return h.definedAt }

// Implements reports whether objects of the type can stand in for d: d is
// the target itself or an interface embedded in it.
func (h *TypeHandle) Implements(d *descriptor.Descriptor) bool {
	if d == nil {
		return false
	}
	if d == h.target {
		return true
	}
	return slices.Contains(h.target.Interfaces(), d)
}

// Methods returns the dispatchable method signatures sorted by name.
func (h *TypeHandle) Methods() []descriptor.MethodSignature {
	out := make([]descriptor.MethodSignature, 0, len(h.methods))
	for _, m := range h.methods {
		out = append(out, m.sig)
	}
	slices.SortFunc(out, func(a, b descriptor.MethodSignature) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out
}

func (h *TypeHandle) Method(name string) (descriptor.MethodSignature, bool) {
	m, ok := h.methods[name]
	return m.sig, ok
}

// Properties returns the property signatures sorted by name.
func (h *TypeHandle) Properties() []descriptor.PropertySignature {
	out := make([]descriptor.PropertySignature, 0, len(h.properties))
	for _, p := range h.properties {
		out = append(out, p.sig)
	}
	slices.SortFunc(out, func(a, b descriptor.PropertySignature) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out
}

func (h *TypeHandle) Property(name string) (descriptor.PropertySignature, bool) {
	p, ok := h.properties[name]
	return p.sig, ok
}

func (h *TypeHandle) String() string {
	return fmt.Sprintf("%s(%s %s)", h.name, h.strategy, h.target.FullName())
}

// Builder assembles a TypeHandle. Synthesizers use it inside Define.
type Builder struct {
	h *TypeHandle
}

func NewBuilder(name string, strategy model.Strategy, target *descriptor.Descriptor) *Builder {
	return &Builder{h: &TypeHandle{
		name:       name,
		strategy:   strategy,
		target:     target,
		methods:    make(map[string]boundMethod),
		properties: make(map[string]boundProperty),
	}}
}

func (b *Builder) Source(t reflect.Type) *Builder {
	b.h.sourceType = t
	return b
}

func (b *Builder) Aux(aux string) *Builder {
	b.h.aux = aux
	return b
}

// HasMethod reports whether a method of that name was already bound.
func (b *Builder) HasMethod(name string) bool {
	_, ok := b.h.methods[name]
	return ok
}

// Method binds body to sig.Name. Binding the same name twice is a
// synthesizer bug.
func (b *Builder) Method(sig descriptor.MethodSignature, body MethodFunc) *Builder {
	if _, dup := b.h.methods[sig.Name]; dup {
		panic(fmt.Errorf("%w: method %s bound twice on %s", model.ErrInternalInvariant, sig.Name, b.h.name))
	}
	b.h.methods[sig.Name] = boundMethod{sig: sig, body: body}
	return b
}

// Property binds acc to sig.Name. Readable and Writable are derived from acc.
func (b *Builder) Property(sig descriptor.PropertySignature, acc Accessor) *Builder {
	if _, dup := b.h.properties[sig.Name]; dup {
		panic(fmt.Errorf("%w: property %s bound twice on %s", model.ErrInternalInvariant, sig.Name, b.h.name))
	}
	sig.Readable = acc.Get != nil
	sig.Writable = acc.Set != nil
	b.h.properties[sig.Name] = boundProperty{sig: sig, acc: acc}
	return b
}

// Build stamps the handle with its identity and definition time.
func (b *Builder) Build() *TypeHandle {
	h := b.h
	b.h = nil
	h.id = uuid.New().String()
	h.definedAt = model.Now()
	return h
}
