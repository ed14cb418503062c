// Package walk implements the schema tree walker shared by every schema
// format.
//
// A format supplies an Adapter describing its schema nodes and how to read
// and write message values; Transform does the descent. Union alternatives
// are tried in declared order, arrays and map values are rewritten element
// by element, records are visited field by field in declaration order, and
// the field transform is called only at leaves whose tags intersect the
// active rule's tags.
package walk

import (
	"context"
	"fmt"

	"github.com/zoobzio/serde"
)

// Kind classifies a schema node.
type Kind int

const (
	// KindNone nodes are never transformed (null types, absent nodes).
	KindNone Kind = iota
	KindLeaf
	KindRecord
	KindArray
	KindMap
	KindUnion
	KindReference
)

// Field is a declared record field. An empty FullName names the field by
// its path: the enclosing field's full name (or "$") joined with Name.
type Field[N any] struct {
	FullName string
	Name     string
	Type     serde.Type
	Tags     []string // inline tags declared on the field
	Schema   N
	Handle   any // format-specific accessor (e.g. a field descriptor)
}

// Adapter is the capability set a schema format provides to the walker.
type Adapter[N any] interface {
	// Classify returns the kind of node, or KindNone for nodes that are
	// absent or never transformed.
	Classify(node N) Kind

	// Deref resolves a reference node.
	Deref(node N) (N, error)

	// Alternatives returns a union's alternatives in declared order.
	Alternatives(node N) []N

	// Match reports whether value belongs to alternative alt. It returns the
	// value to recurse with and, when the value was wrapped to name its
	// branch, a function re-wrapping the rewritten value.
	Match(alt N, value any) (inner any, rewrap func(any) any, ok bool)

	// Element returns the schema of array items or map values.
	Element(node N) N

	// Fields returns a record's fields in declaration order. msg is the
	// record value, for formats where the visited fields depend on it.
	Fields(node N, msg any) ([]Field[N], error)

	// Get reads a field from a record value.
	Get(msg any, f Field[N]) (any, error)

	// Set writes a field and returns the record value to continue with.
	Set(msg any, f Field[N], value any) (any, error)

	// EachElement rewrites every array element in order.
	EachElement(value any, fn func(any) (any, error)) (any, error)

	// EachValue rewrites every map value; keys are never passed to fn.
	EachValue(value any, fn func(any) (any, error)) (any, error)

	// LeafType returns the unified type of a leaf node.
	LeafType(node N) serde.Type
}

// Transform walks msg along node and applies transform to tagged leaves.
// It fails with serde.ErrUnbalancedFields if the walk did not leave the
// field stack as it found it.
func Transform[N any](ctx context.Context, a Adapter[N], rc *serde.RuleContext, node N, msg any, transform serde.FieldTransform) (any, error) {
	depth := rc.Depth()
	out, err := visit(ctx, a, rc, node, msg, transform)
	if err != nil {
		return nil, err
	}
	if rc.Depth() != depth {
		return nil, fmt.Errorf("%w: depth %d, want %d", serde.ErrUnbalancedFields, rc.Depth(), depth)
	}
	return out, nil
}

// Bind returns a serde.FieldTransformer walking messages along root.
func Bind[N any](a Adapter[N], root N) serde.FieldTransformer {
	return func(ctx context.Context, rc *serde.RuleContext, transform serde.FieldTransform, msg any) (any, error) {
		return Transform(ctx, a, rc, root, msg, transform)
	}
}

func visit[N any](ctx context.Context, a Adapter[N], rc *serde.RuleContext, node N, msg any, transform serde.FieldTransform) (any, error) {
	if msg == nil {
		return nil, nil
	}

	switch a.Classify(node) {
	case KindUnion:
		for _, alt := range a.Alternatives(node) {
			inner, rewrap, ok := a.Match(alt, msg)
			if !ok {
				continue
			}
			out, err := visit(ctx, a, rc, alt, inner, transform)
			if err != nil {
				return nil, err
			}
			if rewrap != nil {
				out = rewrap(out)
			}
			return out, nil
		}
		return nil, serde.NewFieldError(serde.ErrUnresolvedUnion, "resolve", fieldName(rc), fmt.Errorf("no alternative matches %T", msg))

	case KindArray:
		elem := a.Element(node)
		return a.EachElement(msg, func(v any) (any, error) {
			return visit(ctx, a, rc, elem, v, transform)
		})

	case KindMap:
		elem := a.Element(node)
		return a.EachValue(msg, func(v any) (any, error) {
			return visit(ctx, a, rc, elem, v, transform)
		})

	case KindRecord:
		fields, err := a.Fields(node, msg)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			msg, err = visitField(ctx, a, rc, f, msg, transform)
			if err != nil {
				return nil, err
			}
		}
		return msg, nil

	case KindReference:
		target, err := a.Deref(node)
		if err != nil {
			return nil, err
		}
		return visit(ctx, a, rc, target, msg, transform)

	case KindLeaf:
		field := rc.CurrentField()
		if field == nil {
			return msg, nil
		}
		field.Type = a.LeafType(node)
		if !field.HasAnyTag(rc.Rule.Tags) {
			return msg, nil
		}
		return transform(ctx, rc, field, msg)

	default:
		return msg, nil
	}
}

func visitField[N any](ctx context.Context, a Adapter[N], rc *serde.RuleContext, f Field[N], msg any, transform serde.FieldTransform) (any, error) {
	if f.FullName == "" {
		f.FullName = fieldName(rc) + "." + f.Name
	}
	leave := rc.EnterField(f.FullName, f.Name, f.Type, f.Tags)
	defer leave()

	value, err := a.Get(msg, f)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return msg, nil
	}
	out, err := visit(ctx, a, rc, f.Schema, value, transform)
	if err != nil {
		return nil, err
	}
	return a.Set(msg, f, out)
}

func fieldName(rc *serde.RuleContext) string {
	if f := rc.CurrentField(); f != nil {
		return f.FullName
	}
	return "$"
}
