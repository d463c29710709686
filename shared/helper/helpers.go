package helper

import (
	"fmt"
	"reflect"
)

// GetTypedValueOf safely asserts the result of a getter function to the expected type T.
// Returns an error if type assertion fails.
func GetTypedValueOf[T any](getFn func() (any, error)) (T, error) {
	var zero T

	res, err := getFn()
	if err != nil {
		return zero, fmt.Errorf("failed to get value: %w", err)
	}

	val, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected type: %T", res)
	}

	return val, nil
}

// MustGetTypedValue is the panic-on-failure variant of GetTypedValueOf.
// Use when failure means a synthesizer bug rather than a usage error.
func MustGetTypedValue[T any](getFn func() (any, error)) T {
	res, err := GetTypedValueOf[T](getFn)
	if err != nil {
		panic(err)
	}
	return res
}

// Zeros returns the zero value of each type.
func Zeros(types []reflect.Type) []reflect.Value {
	out := make([]reflect.Value, len(types))
	for i, t := range types {
		out[i] = reflect.Zero(t)
	}
	return out
}

// Interfaces unwraps reflect values into plain values.
func Interfaces(vals []reflect.Value) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v.Interface()
	}
	return out
}

// ValueOf wraps v as a value of type t. A nil v yields the zero value of t.
func ValueOf(v any, t reflect.Type) (reflect.Value, bool) {
	if v == nil {
		switch t.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
			return reflect.Zero(t), true
		default:
			return reflect.Value{}, false
		}
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, false
	}
	if rv.Type() != t {
		conv := reflect.New(t).Elem()
		conv.Set(rv)
		return conv, true
	}
	return rv, true
}
