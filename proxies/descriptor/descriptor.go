// Package descriptor derives inert capability metadata (methods and
// properties) from Go types.
//
// Three shapes are understood:
//
//   - interface types: every method is abstract. Accessor methods shaped
//     GetX() T, X() T paired with SetX(T), or SetX(T) form property X.
//     A bare X() T with no SetX is a plain method, not a property, so an
//     interface declaring only Name() string has no Name property.
//   - structs embedding Abstract: exported func-typed fields are abstract
//     method hooks, methods of embedded interfaces are abstract, the method
//     set of *T is concrete.
//   - any other struct: exported fields are properties, the method set of *T
//     is concrete.
//
// Descriptors are memoized per reflect.Type, so Of returns the same
// *Descriptor for the same type for the lifetime of the process.
//
// Name is the bare type name for the first type described under it. A type
// from another package with the same bare name gets a short fingerprint
// suffix, so generated type names stay distinct.
package descriptor

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/on-the-ground/proxy_ive_go/proxies/model"
)

// Abstract marks a struct as an abstract base when embedded:
//
//	type Shape struct {
//	    descriptor.Abstract
//	    Name string
//	    Area func() float64 // abstract
//	}
type Abstract struct{}

// KeyTag is the struct tag that marks a key property: `proxy:"key"`.
const KeyTag = "proxy"

var abstractType = reflect.TypeOf(Abstract{})

// Kind classifies the target of a descriptor.
type Kind int

const (
	KindConcrete Kind = iota
	KindAbstract
	KindInterface
)

func (k Kind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindAbstract:
		return "abstract"
	default:
		return "concrete"
	}
}

// Descriptor is the capability set of one Go type. It is immutable once built.
type Descriptor struct {
	id          string
	typ         reflect.Type
	kind        Kind
	name        string
	fingerprint uint64

	methods    []MethodSignature
	methodIdx  map[string]int
	properties []PropertySignature
	propIdx    map[string]int
	accessors  map[string]int
	interfaces []*Descriptor
}

var (
	memo  sync.Map // reflect.Type -> *Descriptor
	names sync.Map // bare name -> fingerprint of the type that claimed it
)

// For returns the descriptor of T.
func For[T any]() (*Descriptor, error) {
	return Of(reflect.TypeOf((*T)(nil)).Elem())
}

// Of returns the descriptor of t. Pointers to structs describe the struct.
func Of(t reflect.Type) (*Descriptor, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", model.ErrInvalidTarget)
	}
	if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct {
		t = t.Elem()
	}
	if d, ok := memo.Load(t); ok {
		return d.(*Descriptor), nil
	}

	var (
		d   *Descriptor
		err error
	)
	switch t.Kind() {
	case reflect.Interface:
		d = deriveInterface(t)
	case reflect.Struct:
		d, err = deriveStruct(t)
	default:
		err = fmt.Errorf("%w: %s is neither an interface nor a struct", model.ErrInvalidTarget, t)
	}
	if err != nil {
		return nil, err
	}

	actual, _ := memo.LoadOrStore(t, d)
	return actual.(*Descriptor), nil
}

// ID is the identity used for caching; equal for the same underlying type.
func (d *Descriptor) ID() string { return d.id }

// Type returns the described type (the struct, never a pointer to it).
func (d *Descriptor) Type() reflect.Type { return d.typ }

// Name returns the bare type name, suffixed with the low fingerprint bits
// when another type already claimed it. Synthesizers derive generated type
// names from it.
func (d *Descriptor) Name() string { return d.name }

// FullName returns the package-qualified type name.
func (d *Descriptor) FullName() string { return d.typ.String() }

func (d *Descriptor) Kind() Kind { return d.kind }

func (d *Descriptor) IsInterface() bool { return d.kind == KindInterface }

func (d *Descriptor) IsAbstract() bool { return d.kind == KindAbstract }

// Fingerprint is an xxhash of the package-qualified identity of the type.
func (d *Descriptor) Fingerprint() uint64 { return d.fingerprint }

// Methods returns the methods in declaration-sorted order.
func (d *Descriptor) Methods() []MethodSignature {
	return append([]MethodSignature(nil), d.methods...)
}

func (d *Descriptor) Method(name string) (MethodSignature, bool) {
	i, ok := d.methodIdx[name]
	if !ok {
		return MethodSignature{}, false
	}
	return d.methods[i], true
}

func (d *Descriptor) Properties() []PropertySignature {
	return append([]PropertySignature(nil), d.properties...)
}

func (d *Descriptor) Property(name string) (PropertySignature, bool) {
	i, ok := d.propIdx[name]
	if !ok {
		return PropertySignature{}, false
	}
	return d.properties[i], true
}

// AccessorOf returns the property whose getter or setter is the named method.
func (d *Descriptor) AccessorOf(method string) (PropertySignature, bool) {
	i, ok := d.accessors[method]
	if !ok {
		return PropertySignature{}, false
	}
	return d.properties[i], true
}

// KeyProperty returns the first property tagged `proxy:"key"`.
func (d *Descriptor) KeyProperty() (PropertySignature, bool) {
	for _, p := range d.properties {
		if p.IsKey {
			return p, true
		}
	}
	return PropertySignature{}, false
}

// Interfaces returns the interfaces embedded directly in a struct target.
func (d *Descriptor) Interfaces() []*Descriptor {
	return append([]*Descriptor(nil), d.interfaces...)
}

func (d *Descriptor) String() string {
	return d.kind.String() + " " + d.FullName()
}

func newDescriptor(t reflect.Type, kind Kind) *Descriptor {
	fp := xxhash.Sum64String(t.PkgPath() + "." + t.String())
	return &Descriptor{
		id:          IdentityOf(t),
		typ:         t,
		kind:        kind,
		name:        claimName(t, fp),
		fingerprint: fp,
		methodIdx:   make(map[string]int),
		propIdx:     make(map[string]int),
		accessors:   make(map[string]int),
	}
}

func claimName(t reflect.Type, fp uint64) string {
	bare := t.Name()
	if bare == "" {
		bare = t.String()
	}
	if owner, _ := names.LoadOrStore(bare, fp); owner.(uint64) == fp {
		return bare
	}
	return bare + "_" + strconv.FormatUint(fp&0xffffffff, 16)
}

func (d *Descriptor) addMethod(m MethodSignature) {
	if _, dup := d.methodIdx[m.Name]; dup {
		return
	}
	d.methodIdx[m.Name] = len(d.methods)
	d.methods = append(d.methods, m)
}

func (d *Descriptor) addProperty(p PropertySignature) {
	if _, dup := d.propIdx[p.Name]; dup {
		return
	}
	i := len(d.properties)
	d.propIdx[p.Name] = i
	d.properties = append(d.properties, p)
	if p.Getter != "" {
		d.accessors[p.Getter] = i
	}
	if p.Setter != "" {
		d.accessors[p.Setter] = i
	}
}

func deriveInterface(t reflect.Type) *Descriptor {
	d := newDescriptor(t, KindInterface)
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		d.addMethod(signatureOf(m.Name, m.Type, 0, true))
	}
	for _, p := range accessorProperties(d.methods) {
		d.addProperty(p)
	}
	return d
}

func deriveStruct(t reflect.Type) (*Descriptor, error) {
	kind := KindConcrete
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.Anonymous && f.Type == abstractType {
			kind = KindAbstract
		}
	}
	d := newDescriptor(t, kind)

	abstractNames := map[string]bool{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous || f.Type.Kind() != reflect.Interface {
			continue
		}
		iface, err := Of(f.Type)
		if err != nil {
			return nil, err
		}
		d.interfaces = append(d.interfaces, iface)
		if kind == KindAbstract {
			for _, m := range iface.methods {
				abstractNames[m.Name] = true
			}
		}
	}

	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if f.Type.Kind() == reflect.Func && kind == KindAbstract {
			m := signatureOf(f.Name, f.Type, 0, true)
			m.Hook = f.Index
			d.addMethod(m)
			continue
		}
		d.addProperty(PropertySignature{
			Name:     f.Name,
			Type:     f.Type,
			Readable: true,
			Writable: true,
			IsKey:    f.Tag.Get(KeyTag) == "key",
			Field:    f.Index,
		})
	}

	pt := reflect.PointerTo(t)
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		d.addMethod(signatureOf(m.Name, m.Type, 1, abstractNames[m.Name]))
	}

	for _, iface := range d.interfaces {
		for _, p := range iface.properties {
			d.addProperty(p)
		}
	}
	return d, nil
}

// accessorProperties groups accessor-shaped methods into properties.
func accessorProperties(methods []MethodSignature) []PropertySignature {
	byName := make(map[string]MethodSignature, len(methods))
	for _, m := range methods {
		byName[m.Name] = m
	}

	var (
		props []PropertySignature
		seen  = map[string]bool{}
	)
	for _, m := range methods {
		if !m.isGetterShape() {
			continue
		}
		name, ok := strings.CutPrefix(m.Name, "Get")
		if !ok || !isExportedName(name) {
			s, paired := byName["Set"+m.Name]
			if !paired || !s.isSetterShape() || s.Params[0] != m.Results[0] {
				continue
			}
			name = m.Name
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		p := PropertySignature{Name: name, Type: m.Results[0], Readable: true, Getter: m.Name}
		if s, ok := byName["Set"+name]; ok && s.isSetterShape() && s.Params[0] == p.Type {
			p.Writable = true
			p.Setter = s.Name
		}
		props = append(props, p)
	}

	for _, m := range methods {
		if !m.isSetterShape() {
			continue
		}
		name := strings.TrimPrefix(m.Name, "Set")
		if !isExportedName(name) || seen[name] {
			continue
		}
		if _, clash := byName[name]; clash {
			continue
		}
		seen[name] = true
		props = append(props, PropertySignature{Name: name, Type: m.Params[0], Writable: true, Setter: m.Name})
	}
	return props
}

func isExportedName(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

var identities sync.Map // reflect.Type -> string

// IdentityOf returns a process-stable identity for the exact type t. Unlike
// Of it accepts any type and does not fold pointers.
func IdentityOf(t reflect.Type) string {
	if id, ok := identities.Load(t); ok {
		return id.(string)
	}
	id, _ := identities.LoadOrStore(t, uuid.New().String())
	return id.(string)
}

// MethodsOf returns the method set of the exact type t.
func MethodsOf(t reflect.Type) []MethodSignature {
	skip := 1
	if t.Kind() == reflect.Interface {
		skip = 0
	}
	out := make([]MethodSignature, 0, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		out = append(out, signatureOf(m.Name, m.Type, skip, skip == 0))
	}
	return out
}
