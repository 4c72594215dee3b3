package cache

import (
	"reflect"
	"sync"
)

// CheckKey panics with ErrNilKey if k is a nil pointer, interface, map,
// slice, func or chan. Callers invoke it before touching any state.
func CheckKey[K comparable](k K) {
	if isNil(k) {
		panic(ErrNilKey)
	}
}

// CheckValue panics with ErrNilValue if v is nil (see CheckKey).
func CheckValue[V any](v V) {
	if isNil(v) {
		panic(ErrNilValue)
	}
}

// IsNilValue reports whether v is a nil of a nillable kind.
func IsNilValue[V any](v V) bool { return isNil(v) }

func isNil[T any](x T) bool {
	a := any(x)
	if a == nil {
		return true
	}
	rv := reflect.ValueOf(a)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

// Equal is the default value equality used by ContainsValue, ReplaceIf and
// RemoveIf. Types that are comparable all the way down use ==. A comparable
// type with interface fields or elements uses == too, unless a dynamic value
// turns out uncomparable, in which case that pair goes to reflect.DeepEqual.
// Everything else uses reflect.DeepEqual.
func Equal[V any](a, b V) bool {
	t := reflect.TypeFor[V]()
	if !t.Comparable() {
		return reflect.DeepEqual(a, b)
	}
	if !holdsInterface(t) {
		return any(a) == any(b)
	}
	return equalOrDeep(any(a), any(b))
}

func equalOrDeep(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = reflect.DeepEqual(a, b)
		}
	}()
	return a == b
}

var interfaceTypes sync.Map // reflect.Type -> bool

// holdsInterface reports whether a value of comparable type t can carry a
// dynamic value, i.e. t is an interface or embeds one in a field or element.
func holdsInterface(t reflect.Type) bool {
	if v, ok := interfaceTypes.Load(t); ok {
		return v.(bool)
	}
	var r bool
	switch t.Kind() {
	case reflect.Interface:
		r = true
	case reflect.Array:
		r = holdsInterface(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if holdsInterface(t.Field(i).Type) {
				r = true
				break
			}
		}
	}
	interfaceTypes.Store(t, r)
	return r
}
