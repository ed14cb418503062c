package access

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/zoobzio/serde"
)

// ErrNotCollection indicates a value is not a sequence or map.
var ErrNotCollection = errors.New("not a collection")

// EachElement returns a new sequence holding fn applied to every element
// of value, in order. value may be []any or any slice or array type.
func EachElement(value any, fn func(any) (any, error)) (any, error) {
	if seq, ok := value.([]any); ok {
		out := make([]any, len(seq))
		for i, e := range seq {
			v, err := fn(e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	rv := reflect.ValueOf(value)
	var out reflect.Value
	switch rv.Kind() {
	case reflect.Slice:
		out = reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	case reflect.Array:
		out = reflect.New(rv.Type()).Elem()
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotCollection, value)
	}

	for i := 0; i < rv.Len(); i++ {
		v, err := fn(ValueOf(copyOf(rv.Index(i))))
		if err != nil {
			return nil, err
		}
		if err := Assign(out.Index(i), v); err != nil {
			return nil, err
		}
	}
	return out.Interface(), nil
}

// EachValue returns a new map with the same keys as value and fn applied to
// every value. Keys are never passed to fn. value may be map[string]any or
// any map type.
func EachValue(value any, fn func(any) (any, error)) (any, error) {
	if m, ok := value.(map[string]any); ok {
		out := make(map[string]any, len(m))
		for k, e := range m {
			v, err := fn(e)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("%w: %T", ErrNotCollection, value)
	}
	out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
	elem := reflect.New(rv.Type().Elem()).Elem()
	iter := rv.MapRange()
	for iter.Next() {
		v, err := fn(ValueOf(copyOf(iter.Value())))
		if err != nil {
			return nil, err
		}
		elem.Set(reflect.Zero(elem.Type()))
		if err := Assign(elem, v); err != nil {
			return nil, err
		}
		out.SetMapIndex(iter.Key(), elem)
	}
	return out.Interface(), nil
}

// copyOf returns an addressable copy of v.
func copyOf(v reflect.Value) reflect.Value {
	cp := reflect.New(v.Type()).Elem()
	cp.Set(v)
	return cp
}

// AsMismatch marks collection and assignment failures as schema mismatches.
// Errors from nested visits pass through unchanged.
func AsMismatch(err error) error {
	if errors.Is(err, ErrNotCollection) || errors.Is(err, ErrUnassignable) || errors.Is(err, ErrNotStruct) {
		return fmt.Errorf("%w: %v", serde.ErrSchemaMismatch, err)
	}
	return err
}
