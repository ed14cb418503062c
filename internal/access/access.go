// Package access provides per-type accessor tables for reading and writing
// struct fields by their wire name.
//
// Tables are built once per (type, tag) pair from sentinel metadata and
// cached; walkers then resolve fields through closures rather than
// reflecting on every call.
package access

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/zoobzio/sentinel"
)

// wireTags are the struct tags that name fields on the wire.
var wireTags = []string{"json", "avro"}

func init() {
	for _, tag := range wireTags {
		sentinel.Tag(tag)
	}
}

// ErrNotStruct indicates a value has no accessor table.
var ErrNotStruct = errors.New("not a struct")

// ErrUnassignable indicates a value cannot be stored in a field.
var ErrUnassignable = errors.New("value not assignable")

// Accessor reads and writes one field of an addressable struct value.
type Accessor struct {
	Name string
	Get  func(rv reflect.Value) any
	Set  func(rv reflect.Value, v any) error
}

// Table maps wire names to accessors for one struct type.
type Table struct {
	TypeName string
	typ      reflect.Type
	fields   map[string]Accessor
	order    []string
	scanned  bool
}

// Names returns wire names in struct declaration order.
func (t *Table) Names() []string {
	return t.order
}

// Lookup returns the accessor for a wire name.
func (t *Table) Lookup(name string) (Accessor, bool) {
	a, ok := t.fields[name]
	return a, ok
}

type tableKey struct {
	typ reflect.Type
	tag string
}

var (
	tables   = make(map[tableKey]*Table)
	tablesMu sync.RWMutex
)

// Register scans T with sentinel and caches its accessor table under tag,
// replacing any table For built earlier.
// Types sentinel reaches while scanning T (nested records in the same
// module) are built from sentinel metadata too when first used.
func Register[T any](tag string) *Table {
	rt := reflect.TypeFor[T]()
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil
	}
	_, _ = sentinel.TryScan[T]()
	meta, scanned := scanType(rt)
	t := build(rt, meta, scanned, tag)

	tablesMu.Lock()
	defer tablesMu.Unlock()
	tables[tableKey{typ: rt, tag: tag}] = t
	return t
}

// For returns the cached table for rt, building it on first use.
func For(rt reflect.Type, tag string) (*Table, error) {
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotStruct, rt)
	}
	key := tableKey{typ: rt, tag: tag}

	// Fast path: read-lock cache check
	tablesMu.RLock()
	if t, ok := tables[key]; ok {
		tablesMu.RUnlock()
		return t, nil
	}
	tablesMu.RUnlock()

	meta, scanned := scanType(rt)
	return store(key, build(rt, meta, scanned, tag)), nil
}

// Reset clears cached tables.
// This is primarily useful for test isolation.
func Reset() {
	tablesMu.Lock()
	defer tablesMu.Unlock()
	tables = make(map[tableKey]*Table)
}

func store(key tableKey, t *Table) *Table {
	tablesMu.Lock()
	defer tablesMu.Unlock()

	// Double-check pattern
	if cached, ok := tables[key]; ok {
		return cached
	}
	tables[key] = t
	return t
}

// Struct returns the addressable struct value behind msg, which must be a
// non-nil pointer to a struct.
func Struct(msg any) (reflect.Value, error) {
	rv := reflect.ValueOf(msg)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: %T", ErrNotStruct, msg)
	}
	return rv.Elem(), nil
}

// scanType returns the metadata for rt and whether sentinel supplied it.
// sentinel keys its cache by bare type name, so an entry only counts when
// its package matches.
func scanType(rt reflect.Type) (sentinel.Metadata, bool) {
	if meta, ok := sentinel.Lookup(rt.Name()); ok && meta.PackageName == rt.PkgPath() && len(meta.Fields) > 0 {
		return meta, true
	}

	meta := sentinel.Metadata{
		TypeName:    rt.Name(),
		PackageName: rt.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, rt.NumField()),
	}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		tags := make(map[string]string, len(wireTags))
		for _, tag := range wireTags {
			if v := sf.Tag.Get(tag); v != "" {
				tags[tag] = v
			}
		}
		meta.Fields = append(meta.Fields, sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Tags:        tags,
			Index:       sf.Index,
		})
	}
	return meta, false
}

func build(rt reflect.Type, meta sentinel.Metadata, scanned bool, tag string) *Table {
	t := &Table{
		TypeName: meta.TypeName,
		typ:      rt,
		fields:   make(map[string]Accessor, len(meta.Fields)),
		scanned:  scanned,
	}
	for _, fm := range meta.Fields {
		name := wireName(fm, tag)
		if name == "" {
			continue
		}
		t.fields[name] = newAccessor(name, fm.Index)
		t.order = append(t.order, name)
	}
	return t
}

// wireName returns the field's name under tag, "" for skipped fields.
func wireName(fm sentinel.FieldMetadata, tag string) string {
	v, ok := fm.Tags[tag]
	if !ok {
		return fm.Name
	}
	name, _, _ := strings.Cut(v, ",")
	switch name {
	case "-":
		return ""
	case "":
		return fm.Name
	}
	return name
}

func newAccessor(name string, index []int) Accessor {
	return Accessor{
		Name: name,
		Get: func(rv reflect.Value) any {
			return ValueOf(rv.FieldByIndex(index))
		},
		Set: func(rv reflect.Value, v any) error {
			return Assign(rv.FieldByIndex(index), v)
		},
	}
}

// ValueOf converts a reflected value into the form walkers recurse with:
// nil for nil references and a pointer for structs, so nested records are
// rewritten in place.
func ValueOf(fv reflect.Value) any {
	switch fv.Kind() {
	case reflect.Struct:
		if fv.CanAddr() {
			return fv.Addr().Interface()
		}
		cp := reflect.New(fv.Type())
		cp.Elem().Set(fv)
		return cp.Interface()
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		if fv.IsNil() {
			return nil
		}
	}
	return fv.Interface()
}

// Assign stores v into the settable value dst.
func Assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	val := reflect.ValueOf(v)
	if dst.Kind() == reflect.Struct && val.Kind() == reflect.Ptr && val.Type().Elem() == dst.Type() {
		dst.Set(val.Elem())
		return nil
	}
	if val.Type().AssignableTo(dst.Type()) {
		dst.Set(val)
		return nil
	}
	if val.Kind() == dst.Kind() && val.Type().ConvertibleTo(dst.Type()) {
		dst.Set(val.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("%w: %T into %s", ErrUnassignable, v, dst.Type())
}
