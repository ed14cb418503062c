package access

import (
	"reflect"
)

// Clone returns a deep copy of msg that rules may rewrite without touching
// msg.
//
// Values with a Clone method returning their own type (or, for pointers,
// their element type) use it. Everything else is copied by reflection
// through pointers, interfaces, structs, slices, arrays and maps. Pointers
// shared within msg stay shared in the copy. Unexported struct fields are
// copied as-is.
func Clone(msg any) any {
	if msg == nil {
		return nil
	}
	seen := make(map[uintptr]reflect.Value)
	return deepCopy(reflect.ValueOf(msg), seen).Interface()
}

func deepCopy(v reflect.Value, seen map[uintptr]reflect.Value) reflect.Value {
	if out, ok := viaCloner(v); ok {
		return out
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return v
		}
		if cp, ok := seen[v.Pointer()]; ok {
			return cp
		}
		cp := reflect.New(v.Type().Elem())
		seen[v.Pointer()] = cp
		cp.Elem().Set(deepCopy(v.Elem(), seen))
		return cp

	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(deepCopy(v.Elem(), seen))
		return out

	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if f := out.Field(i); f.CanSet() {
				f.Set(deepCopy(v.Field(i), seen))
			}
		}
		return out

	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		if v.Type().Elem().Kind() == reflect.Uint8 {
			reflect.Copy(out, v)
			return out
		}
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i), seen))
		}
		return out

	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i), seen))
		}
		return out

	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), deepCopy(iter.Value(), seen))
		}
		return out
	}
	return v
}

// viaCloner copies v with its own Clone method when it has one.
func viaCloner(v reflect.Value) (reflect.Value, bool) {
	if !v.IsValid() || !v.CanInterface() {
		return reflect.Value{}, false
	}
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return reflect.Value{}, false
	}
	m := v.MethodByName("Clone")
	if !m.IsValid() || m.Type().NumIn() != 0 || m.Type().NumOut() != 1 {
		return reflect.Value{}, false
	}
	switch out := m.Type().Out(0); {
	case out == v.Type():
		return m.Call(nil)[0], true
	case v.Kind() == reflect.Ptr && out == v.Type().Elem():
		cp := reflect.New(out)
		cp.Elem().Set(m.Call(nil)[0])
		return cp, true
	}
	return reflect.Value{}, false
}
