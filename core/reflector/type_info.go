// Package reflector derives stable, cached names for Go types. Actor and
// message kinds default to these names.
package reflector

import (
	"reflect"
	"sync"
)

// TypeInfo holds metadata about a reflected type.
type TypeInfo struct {
	Name    string       // "pkg/path.TypeName", or the bare name for predeclared types
	Type    reflect.Type // element type when the input was a pointer
	Pointer bool         // true if the input type was a pointer
}

var cache sync.Map // reflect.Type -> TypeInfo

// TypeInfoOf returns TypeInfo for the dynamic type of x.
func TypeInfoOf(x any) TypeInfo {
	return TypeInfoForType(reflect.TypeOf(x))
}

// TypeInfoFor returns TypeInfo for type parameter T.
func TypeInfoFor[T any]() TypeInfo {
	return TypeInfoForType(reflect.TypeFor[T]())
}

// TypeInfoForType returns TypeInfo for t. Pointer types are described by
// their element type so that T and *T share a name.
func TypeInfoForType(t reflect.Type) TypeInfo {
	if t == nil {
		return TypeInfo{}
	}
	if ti, ok := cache.Load(t); ok {
		return ti.(TypeInfo)
	}

	ti := TypeInfo{Type: t}
	if t.Kind() == reflect.Pointer {
		ti.Pointer = true
		ti.Type = t.Elem()
	}
	ti.Name = nameOf(ti.Type)

	actual, _ := cache.LoadOrStore(t, ti)
	return actual.(TypeInfo)
}

func nameOf(t reflect.Type) string {
	if t.Name() == "" {
		// unnamed composite types, e.g. []int or struct{...}
		return t.String()
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}
