// Package protobuf binds protobuf message descriptors to the serde rule
// engine.
//
// Messages are walked through protoreflect, so generated and dynamic
// messages are handled alike. Fields are visited in declaration order;
// members of a oneof other than the populated one are skipped. Repeated
// fields are arrays, map fields are maps and message fields reference the
// field's message type. Field full names are protobuf full names, e.g.
// "example.Person.email".
package protobuf

import (
	"fmt"
	"reflect"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/zoobzio/serde"
	"github.com/zoobzio/serde/walk"
)

// node is a position in a message descriptor tree: a message (md set) or
// the value of a field (fd set). elem marks the element of a repeated or
// map field.
type node struct {
	md   protoreflect.MessageDescriptor
	fd   protoreflect.FieldDescriptor
	elem bool
}

func messageNode(md protoreflect.MessageDescriptor) node {
	return node{md: md}
}

// adapter implements walk.Adapter over node.
type adapter struct {
	fields sync.Map // protoreflect.FullName -> []walk.Field[node]
}

var defaultAdapter = &adapter{}

func (a *adapter) Classify(n node) walk.Kind {
	switch {
	case n.md != nil:
		return walk.KindRecord
	case n.fd == nil:
		return walk.KindNone
	case !n.elem && n.fd.IsMap():
		return walk.KindMap
	case !n.elem && n.fd.IsList():
		return walk.KindArray
	case n.fd.Message() != nil:
		return walk.KindReference
	}
	return walk.KindLeaf
}

func (a *adapter) Deref(n node) (node, error) {
	if n.fd == nil || n.fd.Message() == nil {
		return node{}, fmt.Errorf("%w: not a message field", serde.ErrSchemaMismatch)
	}
	return messageNode(n.fd.Message()), nil
}

func (a *adapter) Alternatives(node) []node {
	return nil
}

func (a *adapter) Match(node, any) (any, func(any) any, bool) {
	return nil, nil, false
}

func (a *adapter) Element(n node) node {
	if n.fd.IsMap() {
		return node{fd: n.fd.MapValue(), elem: true}
	}
	return node{fd: n.fd, elem: true}
}

func (a *adapter) Fields(n node, msg any) ([]walk.Field[node], error) {
	m, err := reflectOf(msg)
	if err != nil {
		return nil, err
	}
	if m.Descriptor().FullName() != n.md.FullName() {
		return nil, fmt.Errorf("%w: message %s, schema %s", serde.ErrSchemaMismatch, m.Descriptor().FullName(), n.md.FullName())
	}

	declared := a.declared(n.md)
	fields := make([]walk.Field[node], 0, len(declared))
	for _, f := range declared {
		fd := f.Handle.(protoreflect.FieldDescriptor)
		if od := fd.ContainingOneof(); od != nil && !od.IsSynthetic() && m.WhichOneof(od) != fd {
			continue
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// declared returns every field of md in declaration order.
func (a *adapter) declared(md protoreflect.MessageDescriptor) []walk.Field[node] {
	if cached, ok := a.fields.Load(md.FullName()); ok {
		return cached.([]walk.Field[node])
	}
	fds := md.Fields()
	fields := make([]walk.Field[node], 0, fds.Len())
	for i := 0; i < fds.Len(); i++ {
		fd := fds.Get(i)
		fields = append(fields, walk.Field[node]{
			FullName: string(fd.FullName()),
			Name:     string(fd.Name()),
			Type:     fieldType(fd),
			Schema:   node{fd: fd},
			Handle:   fd,
		})
	}
	a.fields.Store(md.FullName(), fields)
	return fields
}

func (a *adapter) Get(msg any, f walk.Field[node]) (any, error) {
	m, err := reflectOf(msg)
	if err != nil {
		return nil, serde.NewFieldError(serde.ErrSchemaMismatch, "get", f.FullName, err)
	}
	fd := f.Handle.(protoreflect.FieldDescriptor)

	switch {
	case fd.IsList():
		if !m.Has(fd) {
			return nil, nil
		}
		return m.Mutable(fd).List(), nil
	case fd.IsMap():
		if !m.Has(fd) {
			return nil, nil
		}
		return m.Mutable(fd).Map(), nil
	case fd.Message() != nil:
		if !m.Has(fd) {
			return nil, nil
		}
		return m.Mutable(fd).Message().Interface(), nil
	case fd.HasPresence() && !m.Has(fd):
		return nil, nil
	}
	return m.Get(fd).Interface(), nil
}

func (a *adapter) Set(msg any, f walk.Field[node], value any) (any, error) {
	m, err := reflectOf(msg)
	if err != nil {
		return nil, serde.NewFieldError(serde.ErrSchemaMismatch, "set", f.FullName, err)
	}
	fd := f.Handle.(protoreflect.FieldDescriptor)

	switch value.(type) {
	case protoreflect.List, protoreflect.Map:
		// rewritten in place
		return msg, nil
	}
	v, err := toValue(m.NewField(fd), value)
	if err != nil {
		return nil, serde.NewFieldError(serde.ErrSchemaMismatch, "set", f.FullName, err)
	}
	m.Set(fd, v)
	return msg, nil
}

func (a *adapter) EachElement(value any, fn func(any) (any, error)) (any, error) {
	l, ok := value.(protoreflect.List)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a repeated field", serde.ErrSchemaMismatch, value)
	}
	for i := 0; i < l.Len(); i++ {
		out, err := fn(elementOf(l.Get(i)))
		if err != nil {
			return nil, err
		}
		v, err := toValue(l.NewElement(), out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", serde.ErrSchemaMismatch, err)
		}
		l.Set(i, v)
	}
	return l, nil
}

func (a *adapter) EachValue(value any, fn func(any) (any, error)) (any, error) {
	mp, ok := value.(protoreflect.Map)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a map field", serde.ErrSchemaMismatch, value)
	}
	var keys []protoreflect.MapKey
	mp.Range(func(k protoreflect.MapKey, _ protoreflect.Value) bool {
		keys = append(keys, k)
		return true
	})
	for _, k := range keys {
		out, err := fn(elementOf(mp.Get(k)))
		if err != nil {
			return nil, err
		}
		v, err := toValue(mp.NewValue(), out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", serde.ErrSchemaMismatch, err)
		}
		mp.Set(k, v)
	}
	return mp, nil
}

func (a *adapter) LeafType(n node) serde.Type {
	return kindType(n.fd.Kind())
}

// reflectOf returns the reflective view of a message value.
func reflectOf(msg any) (protoreflect.Message, error) {
	switch m := msg.(type) {
	case protoreflect.Message:
		return m, nil
	case proto.Message:
		return m.ProtoReflect(), nil
	}
	return nil, fmt.Errorf("%w: %T is not a protobuf message", serde.ErrSchemaMismatch, msg)
}

// elementOf converts a list element or map value for recursion.
func elementOf(v protoreflect.Value) any {
	if m, ok := v.Interface().(protoreflect.Message); ok {
		return m.Interface()
	}
	return v.Interface()
}

// toValue converts v to a protoreflect value shaped like zero.
func toValue(zero protoreflect.Value, v any) (protoreflect.Value, error) {
	if _, ok := zero.Interface().(protoreflect.Message); ok {
		m, err := reflectOf(v)
		if err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfMessage(m), nil
	}
	if v == nil || reflect.TypeOf(v) != reflect.TypeOf(zero.Interface()) {
		return protoreflect.Value{}, fmt.Errorf("cannot store %T as %T", v, zero.Interface())
	}
	return protoreflect.ValueOf(v), nil
}

// fieldType projects a field descriptor onto the unified type.
func fieldType(fd protoreflect.FieldDescriptor) serde.Type {
	switch {
	case fd.IsMap():
		return serde.TypeMap
	case fd.IsList():
		return serde.TypeArray
	}
	return kindType(fd.Kind())
}

func kindType(k protoreflect.Kind) serde.Type {
	switch k {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return serde.TypeRecord
	case protoreflect.EnumKind:
		return serde.TypeEnum
	case protoreflect.StringKind:
		return serde.TypeString
	case protoreflect.BytesKind:
		return serde.TypeBytes
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return serde.TypeInt
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return serde.TypeLong
	case protoreflect.FloatKind:
		return serde.TypeFloat
	case protoreflect.DoubleKind:
		return serde.TypeDouble
	case protoreflect.BoolKind:
		return serde.TypeBoolean
	}
	return serde.TypeNull
}
