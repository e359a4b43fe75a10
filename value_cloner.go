package taskguard

import "reflect"

// ValueCloner clones results handed to more than one receiver, such as the
// callers coalesced onto one deduplicated execution.
// CloneValue should return a deep copy of the input value.
type ValueCloner[V any] interface {
	CloneValue(V) V
}

// ValueClonerFunc is a function type that implements the ValueCloner interface.
type ValueClonerFunc[V any] func(v V) V

// CloneValue calls the function.
func (f ValueClonerFunc[V]) CloneValue(v V) V {
	return f(v)
}

// NopValueCloner shares values between receivers without copying.
// Use it for primitive types or values treated as immutable.
type NopValueCloner[V any] struct{}

// CloneValue returns the input value.
func (NopValueCloner[V]) CloneValue(v V) V {
	return v
}

// DefaultValueCloner returns a cloner for V based on its Clone or DeepCopy method,
// or a NopValueCloner for primitive kinds. It panics for any other type.
func DefaultValueCloner[V any]() ValueCloner[V] {
	c, ok := LookupValueCloner[V]()
	if !ok {
		panic("value type does not have Clone or DeepCopy method")
	}
	return c
}

// LookupValueCloner is DefaultValueCloner reporting false instead of panicking.
func LookupValueCloner[V any]() (ValueCloner[V], bool) {
	type cloner interface {
		Clone() V
	}
	type deepCopier interface {
		DeepCopy() V
	}

	var zero V
	switch any(zero).(type) {
	case cloner:
		return ValueClonerFunc[V](func(v V) V {
			return any(v).(cloner).Clone()
		}), true

	case deepCopier:
		return ValueClonerFunc[V](func(v V) V {
			return any(v).(deepCopier).DeepCopy()
		}), true
	}

	typ := reflect.TypeFor[V]()
	switch typ.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Uintptr, reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String, reflect.UnsafePointer:
		return NopValueCloner[V]{}, true
	default:
		return nil, false
	}
}
