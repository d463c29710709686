package mock

import "reflect"

// Any matches every call.
func Any() Predicate {
	return func(Invocation) bool { return true }
}

// Args matches calls whose parameters deeply equal values.
func Args(values ...any) Predicate {
	return func(inv Invocation) bool {
		if len(inv.Params) != len(values) {
			return false
		}
		for i, v := range values {
			if !reflect.DeepEqual(inv.Params[i], v) {
				return false
			}
		}
		return true
	}
}

// Return answers with fixed values: one value for single-result methods,
// one per result otherwise.
func Return(values ...any) Response {
	return func([]reflect.Type, []any) any {
		switch len(values) {
		case 0:
			return nil
		case 1:
			return values[0]
		default:
			return values
		}
	}
}
