// Package avro binds Avro schemas to the serde rule engine.
//
// Messages are either generic values as produced by hamba/avro decoding
// (map[string]any records, []any arrays, map[string]any maps) or Go structs
// tagged with `avro:"name"`. Union values may be plain, pointers to plain
// values, or wrapped as map[string]any{branchName: value}; wrapped values
// keep their wrapping.
//
// Field tags come from schema metadata keyed by "<record full name>.<field>"
// and from the field property "confluent:tags".
package avro

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/hamba/avro/v2"

	"github.com/zoobzio/serde"
	"github.com/zoobzio/serde/internal/access"
	"github.com/zoobzio/serde/walk"
)

// TagsProp is the field property holding inline tags.
const TagsProp = "confluent:tags"

// structTag names Go struct fields for Avro.
const structTag = "avro"

// adapter implements walk.Adapter over avro.Schema nodes.
type adapter struct {
	fields sync.Map // *avro.RecordSchema -> []walk.Field[avro.Schema]
}

var defaultAdapter = &adapter{}

func (a *adapter) Classify(node avro.Schema) walk.Kind {
	if node == nil {
		return walk.KindNone
	}
	switch node.Type() {
	case avro.Union:
		return walk.KindUnion
	case avro.Array:
		return walk.KindArray
	case avro.Map:
		return walk.KindMap
	case avro.Record, avro.Error:
		return walk.KindRecord
	case avro.Ref:
		return walk.KindReference
	case avro.Null:
		return walk.KindNone
	default:
		return walk.KindLeaf
	}
}

func (a *adapter) Deref(node avro.Schema) (avro.Schema, error) {
	ref, ok := node.(*avro.RefSchema)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a reference", serde.ErrSchemaMismatch, node)
	}
	return ref.Schema(), nil
}

func (a *adapter) Alternatives(node avro.Schema) []avro.Schema {
	if u, ok := node.(*avro.UnionSchema); ok {
		return u.Types()
	}
	return nil
}

func (a *adapter) Match(alt avro.Schema, value any) (any, func(any) any, bool) {
	if m, ok := value.(map[string]any); ok && len(m) == 1 {
		name := branchName(alt)
		if inner, ok := m[name]; ok {
			return inner, func(v any) any { return map[string]any{name: v} }, true
		}
	}
	if matches(alt, value) {
		return value, nil, true
	}
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Elem().Kind() != reflect.Struct {
		inner := rv.Elem().Interface()
		if !matches(alt, inner) {
			return nil, nil, false
		}
		return inner, func(v any) any {
			out := reflect.New(rv.Elem().Type())
			if err := access.Assign(out.Elem(), v); err != nil {
				return v
			}
			return out.Interface()
		}, true
	}
	return nil, nil, false
}

func (a *adapter) Element(node avro.Schema) avro.Schema {
	switch s := node.(type) {
	case *avro.ArraySchema:
		return s.Items()
	case *avro.MapSchema:
		return s.Values()
	}
	return nil
}

func (a *adapter) Fields(node avro.Schema, _ any) ([]walk.Field[avro.Schema], error) {
	rs, ok := node.(*avro.RecordSchema)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a record", serde.ErrSchemaMismatch, node)
	}
	if cached, ok := a.fields.Load(rs); ok {
		return cached.([]walk.Field[avro.Schema]), nil
	}

	fields := make([]walk.Field[avro.Schema], 0, len(rs.Fields()))
	for _, f := range rs.Fields() {
		fields = append(fields, walk.Field[avro.Schema]{
			FullName: rs.FullName() + "." + f.Name(),
			Name:     f.Name(),
			Type:     typeOf(f.Type()),
			Tags:     inlineTags(f),
			Schema:   f.Type(),
		})
	}
	a.fields.Store(rs, fields)
	return fields, nil
}

func (a *adapter) Get(msg any, f walk.Field[avro.Schema]) (any, error) {
	v, err := access.Get(msg, structTag, f.Name)
	if err != nil {
		return nil, serde.NewFieldError(serde.ErrSchemaMismatch, "get", f.FullName, err)
	}
	return v, nil
}

func (a *adapter) Set(msg any, f walk.Field[avro.Schema], value any) (any, error) {
	out, err := access.Set(msg, structTag, f.Name, value)
	if err != nil {
		return nil, serde.NewFieldError(serde.ErrSchemaMismatch, "set", f.FullName, err)
	}
	return out, nil
}

func (a *adapter) EachElement(value any, fn func(any) (any, error)) (any, error) {
	out, err := access.EachElement(value, fn)
	return out, access.AsMismatch(err)
}

func (a *adapter) EachValue(value any, fn func(any) (any, error)) (any, error) {
	out, err := access.EachValue(value, fn)
	return out, access.AsMismatch(err)
}

func (a *adapter) LeafType(node avro.Schema) serde.Type {
	return typeOf(node)
}

// typeOf projects an Avro schema onto the unified type.
func typeOf(s avro.Schema) serde.Type {
	switch s.Type() {
	case avro.Record, avro.Error:
		return serde.TypeRecord
	case avro.Enum:
		return serde.TypeEnum
	case avro.Array:
		return serde.TypeArray
	case avro.Map:
		return serde.TypeMap
	case avro.Union:
		return serde.TypeCombined
	case avro.Fixed:
		return serde.TypeFixed
	case avro.String:
		return serde.TypeString
	case avro.Bytes:
		return serde.TypeBytes
	case avro.Int:
		return serde.TypeInt
	case avro.Long:
		return serde.TypeLong
	case avro.Float:
		return serde.TypeFloat
	case avro.Double:
		return serde.TypeDouble
	case avro.Boolean:
		return serde.TypeBoolean
	case avro.Ref:
		if ref, ok := s.(*avro.RefSchema); ok {
			return typeOf(ref.Schema())
		}
	}
	return serde.TypeNull
}

// inlineTags reads the tags property of a field.
func inlineTags(f *avro.Field) []string {
	switch v := f.Prop(TagsProp).(type) {
	case []string:
		return v
	case []any:
		tags := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	}
	return nil
}

// branchName is the key naming a union branch in wrapped form.
func branchName(s avro.Schema) string {
	switch n := s.(type) {
	case avro.NamedSchema:
		return n.FullName()
	case *avro.RefSchema:
		return n.Schema().FullName()
	}
	return string(s.Type())
}

// matches reports whether value is a plain instance of s.
func matches(s avro.Schema, value any) bool {
	switch s.Type() {
	case avro.Null:
		return value == nil
	case avro.Boolean:
		_, ok := value.(bool)
		return ok
	case avro.Int:
		switch value.(type) {
		case int, int8, int16, int32:
			return true
		}
	case avro.Long:
		switch value.(type) {
		case int, int64:
			return true
		}
	case avro.Float:
		_, ok := value.(float32)
		return ok
	case avro.Double:
		_, ok := value.(float64)
		return ok
	case avro.String:
		_, ok := value.(string)
		return ok
	case avro.Bytes:
		_, ok := value.([]byte)
		return ok
	case avro.Enum:
		sym, ok := value.(string)
		return ok && slices.Contains(s.(*avro.EnumSchema).Symbols(), sym)
	case avro.Fixed:
		return fixedSize(value) == s.(*avro.FixedSchema).Size()
	case avro.Array:
		if _, ok := value.([]byte); ok {
			return false
		}
		k := reflect.ValueOf(value).Kind()
		return k == reflect.Slice || k == reflect.Array
	case avro.Map:
		rv := reflect.ValueOf(value)
		return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
	case avro.Record, avro.Error:
		return matchesRecord(s.(*avro.RecordSchema), value)
	case avro.Ref:
		return matches(s.(*avro.RefSchema).Schema(), value)
	}
	return false
}

func matchesRecord(rs *avro.RecordSchema, value any) bool {
	if m, ok := value.(map[string]any); ok {
		for k := range m {
			if !slices.ContainsFunc(rs.Fields(), func(f *avro.Field) bool { return f.Name() == k }) {
				return false
			}
		}
		return true
	}
	rv, err := access.Struct(value)
	return err == nil && strings.EqualFold(rv.Type().Name(), rs.Name())
}

func fixedSize(value any) int {
	if b, ok := value.([]byte); ok {
		return len(b)
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		return rv.Len()
	}
	return -1
}
