package descriptor

import (
	"reflect"
	"strings"
)

// MethodSignature describes one method of a capability set.
type MethodSignature struct {
	Name     string
	Params   []reflect.Type
	Results  []reflect.Type
	Variadic bool

	// IsAbstract is set for interface methods, hook fields and methods of
	// interfaces embedded in an abstract struct.
	IsAbstract bool

	// Hook is the field index of a func-typed hook on an abstract struct.
	Hook []int
}

// signatureOf reads a func type, skipping the first skip inputs (receiver).
func signatureOf(name string, ft reflect.Type, skip int, abstract bool) MethodSignature {
	m := MethodSignature{
		Name:       name,
		Variadic:   ft.IsVariadic(),
		IsAbstract: abstract,
	}
	for i := skip; i < ft.NumIn(); i++ {
		m.Params = append(m.Params, ft.In(i))
	}
	for i := 0; i < ft.NumOut(); i++ {
		m.Results = append(m.Results, ft.Out(i))
	}
	return m
}

// SameParams reports whether both methods take identical parameter types.
// Result types are not compared.
func (m MethodSignature) SameParams(other MethodSignature) bool {
	if m.Variadic != other.Variadic || len(m.Params) != len(other.Params) {
		return false
	}
	for i, p := range m.Params {
		if other.Params[i] != p {
			return false
		}
	}
	return true
}

// FuncType rebuilds the func type of the method without a receiver.
func (m MethodSignature) FuncType() reflect.Type {
	return reflect.FuncOf(m.Params, m.Results, m.Variadic)
}

func (m MethodSignature) String() string {
	var b strings.Builder
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if m.Variadic && i == len(m.Params)-1 {
			b.WriteString("...")
			b.WriteString(p.Elem().String())
			continue
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	switch len(m.Results) {
	case 0:
	case 1:
		b.WriteByte(' ')
		b.WriteString(m.Results[0].String())
	default:
		b.WriteString(" (")
		for i, r := range m.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}

func (m MethodSignature) isGetterShape() bool {
	return len(m.Params) == 0 && len(m.Results) == 1
}

func (m MethodSignature) isSetterShape() bool {
	return strings.HasPrefix(m.Name, "Set") && len(m.Params) == 1 && !m.Variadic && len(m.Results) == 0
}

// PropertySignature describes one property of a capability set.
type PropertySignature struct {
	Name     string
	Type     reflect.Type
	Readable bool
	Writable bool
	IsKey    bool

	// Getter and Setter name the accessor methods of interface properties.
	Getter string
	Setter string

	// Field is the field index of a struct property.
	Field []int
}

// IsField reports whether the property is a struct field.
func (p PropertySignature) IsField() bool { return p.Field != nil }
