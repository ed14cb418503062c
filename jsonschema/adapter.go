// Package jsonschema binds JSON schemas to the serde rule engine.
//
// Schemas are parsed into a node tree that keeps properties in document
// order. Local $ref pointers ("#/$defs/...", "#/definitions/...") resolve
// within the document; oneOf, anyOf and allOf are unions whose first
// alternative the value validates against is walked. An object schema
// declaring only additionalProperties is a map.
//
// Messages are generic documents (map[string]any objects, []any arrays) or
// Go structs tagged with `json:"name"`. Field full names are paths rooted
// at "$", e.g. "$.address.city". Inline tags come from "confluent:tags".
package jsonschema

import (
	"fmt"

	"github.com/zoobzio/serde"
	"github.com/zoobzio/serde/internal/access"
	"github.com/zoobzio/serde/walk"
)

// TagsProp is the schema keyword holding inline tags.
const TagsProp = "confluent:tags"

const structTag = "json"

// maxRefDepth bounds $ref chains followed when typing a field.
const maxRefDepth = 32

// adapter implements walk.Adapter over *Node.
type adapter struct{}

var defaultAdapter = adapter{}

func (adapter) Classify(n *Node) walk.Kind {
	if n == nil {
		return walk.KindNone
	}
	if len(n.Alternatives) > 0 {
		return walk.KindUnion
	}
	if n.Ref != "" {
		return walk.KindReference
	}
	switch n.primaryType() {
	case "object":
		if len(n.Properties) == 0 && n.Additional != nil {
			return walk.KindMap
		}
		return walk.KindRecord
	case "array":
		return walk.KindArray
	case "boolean", "integer", "number", "string":
		return walk.KindLeaf
	case "null":
		return walk.KindNone
	}
	switch {
	case len(n.Properties) > 0:
		return walk.KindRecord
	case n.Items != nil:
		return walk.KindArray
	case n.Additional != nil:
		return walk.KindMap
	}
	return walk.KindNone
}

func (adapter) Deref(n *Node) (*Node, error) {
	target, err := n.doc.Resolve(n.Ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", serde.ErrSchemaMismatch, err)
	}
	return target, nil
}

func (adapter) Alternatives(n *Node) []*Node {
	return n.Alternatives
}

func (adapter) Match(alt *Node, value any) (any, func(any) any, bool) {
	if err := alt.doc.Validate(alt.Pointer, value); err != nil {
		return nil, nil, false
	}
	return value, nil, true
}

func (adapter) Element(n *Node) *Node {
	if n.Items != nil {
		return n.Items
	}
	return n.Additional
}

func (adapter) Fields(n *Node, _ any) ([]walk.Field[*Node], error) {
	fields := make([]walk.Field[*Node], 0, len(n.Properties))
	for _, p := range n.Properties {
		fields = append(fields, walk.Field[*Node]{
			Name:   p.Name,
			Type:   typeOf(p.Node),
			Tags:   p.Node.Tags,
			Schema: p.Node,
		})
	}
	return fields, nil
}

func (adapter) Get(msg any, f walk.Field[*Node]) (any, error) {
	v, err := access.Get(msg, structTag, f.Name)
	if err != nil {
		return nil, serde.NewFieldError(serde.ErrSchemaMismatch, "get", f.FullName, err)
	}
	return v, nil
}

func (adapter) Set(msg any, f walk.Field[*Node], value any) (any, error) {
	out, err := access.Set(msg, structTag, f.Name, value)
	if err != nil {
		return nil, serde.NewFieldError(serde.ErrSchemaMismatch, "set", f.FullName, err)
	}
	return out, nil
}

func (adapter) EachElement(value any, fn func(any) (any, error)) (any, error) {
	out, err := access.EachElement(value, fn)
	return out, access.AsMismatch(err)
}

func (adapter) EachValue(value any, fn func(any) (any, error)) (any, error) {
	out, err := access.EachValue(value, fn)
	return out, access.AsMismatch(err)
}

func (adapter) LeafType(n *Node) serde.Type {
	return typeOf(n)
}

// typeOf projects a node onto the unified type, following references.
func typeOf(n *Node) serde.Type {
	for range maxRefDepth {
		if n == nil {
			return serde.TypeNull
		}
		if len(n.Alternatives) > 0 {
			return serde.TypeCombined
		}
		if n.Ref == "" {
			break
		}
		target, err := n.doc.Resolve(n.Ref)
		if err != nil {
			return serde.TypeNull
		}
		n = target
	}

	switch n.primaryType() {
	case "object":
		if len(n.Properties) == 0 && n.Additional != nil {
			return serde.TypeMap
		}
		return serde.TypeRecord
	case "array":
		return serde.TypeArray
	case "string":
		return serde.TypeString
	case "integer":
		return serde.TypeInt
	case "number":
		return serde.TypeDouble
	case "boolean":
		return serde.TypeBoolean
	}
	return serde.TypeNull
}
