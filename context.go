package serde

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

// Header is a single message header entry.
type Header struct {
	Key   string
	Value []byte
}

// Headers is an ordered multi-map of message headers. Adding a header never
// replaces earlier entries; Last returns the most recently added value.
type Headers struct {
	entries []Header
}

// NewHeaders returns headers holding a copy of entries.
func NewHeaders(entries ...Header) *Headers {
	return &Headers{entries: slices.Clone(entries)}
}

// Add appends a header.
func (h *Headers) Add(key string, value []byte) {
	h.entries = append(h.entries, Header{Key: key, Value: value})
}

// Last returns the most recently added value for key.
func (h *Headers) Last(key string) ([]byte, bool) {
	if h == nil {
		return nil, false
	}
	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].Key == key {
			return h.entries[i].Value, true
		}
	}
	return nil, false
}

// All returns a copy of every header in insertion order.
func (h *Headers) All() []Header {
	if h == nil {
		return nil
	}
	return slices.Clone(h.entries)
}

// Len returns the number of headers.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// FieldContext describes the field currently being visited by a walker.
type FieldContext struct {
	FullName string
	Name     string
	Type     Type
	Tags     []string
}

// HasAnyTag reports whether the field carries at least one of tags.
func (f *FieldContext) HasAnyTag(tags []string) bool {
	for _, t := range tags {
		if slices.Contains(f.Tags, t) {
			return true
		}
	}
	return false
}

// FieldTransform rewrites a single leaf value.
type FieldTransform func(ctx context.Context, rc *RuleContext, field *FieldContext, value any) (any, error)

// FieldTransformer walks a message with a schema-format walker, calling
// transform at every tagged leaf. Each format package provides one.
type FieldTransformer func(ctx context.Context, rc *RuleContext, transform FieldTransform, msg any) (any, error)

// RuleContext carries the state of one rule applied to one message.
// It is created by the Pipeline and discarded once the rule completes.
type RuleContext struct {
	ID      string
	Source  *Schema
	Target  *Schema
	Subject string
	Topic   string
	Headers *Headers
	IsKey   bool
	Mode    RuleMode
	Rule    Rule

	fields      []FieldContext
	transformer FieldTransformer

	deksByFormat  map[string]Dek
	deksByWrapped map[string]Dek
}

// NewRuleContext creates a context for applying rule to a message.
func NewRuleContext(req Request, rule Rule, transformer FieldTransformer) *RuleContext {
	return &RuleContext{
		ID:          uuid.NewString(),
		Source:      req.Source,
		Target:      req.Target,
		Subject:     req.Subject,
		Topic:       req.Topic,
		Headers:     req.Headers,
		IsKey:       req.IsKey,
		Mode:        req.Mode,
		Rule:        rule,
		transformer: transformer,
	}
}

// EnterField pushes a field onto the stack and returns the function that
// pops it. The field's tags are the target schema's metadata tags for
// fullName merged with inline.
//
//	leave := rc.EnterField(fullName, name, typ, inline)
//	defer leave()
func (rc *RuleContext) EnterField(fullName, name string, typ Type, inline []string) func() {
	var declared []string
	if rc.Target != nil {
		declared = rc.Target.Metadata.FieldTags(fullName)
	}
	rc.fields = append(rc.fields, FieldContext{
		FullName: fullName,
		Name:     name,
		Type:     typ,
		Tags:     mergeTags(declared, inline),
	})
	depth := len(rc.fields)
	return func() {
		rc.fields = rc.fields[:depth-1]
	}
}

// CurrentField returns the innermost field, or nil at the top level.
func (rc *RuleContext) CurrentField() *FieldContext {
	if len(rc.fields) == 0 {
		return nil
	}
	return &rc.fields[len(rc.fields)-1]
}

// Depth returns the number of fields on the stack.
func (rc *RuleContext) Depth() int {
	return len(rc.fields)
}

// TransformFields walks msg with the format walker bound to this context,
// applying transform at every tagged leaf.
func (rc *RuleContext) TransformFields(ctx context.Context, transform FieldTransform, msg any) (any, error) {
	if rc.transformer == nil {
		return nil, newRuleError(ErrNoFieldTransformer, rc.Rule, nil)
	}
	return rc.transformer(ctx, rc, transform, msg)
}

// DekForFormat returns the DEK already used by this message for a format.
func (rc *RuleContext) DekForFormat(format string) (Dek, bool) {
	dek, ok := rc.deksByFormat[format]
	return dek, ok
}

// StoreDekForFormat remembers the DEK used by this message for a format.
func (rc *RuleContext) StoreDekForFormat(format string, dek Dek) {
	if rc.deksByFormat == nil {
		rc.deksByFormat = make(map[string]Dek)
	}
	rc.deksByFormat[format] = dek
}

// DekForWrapped returns the unwrapped DEK this message already recovered
// for a wrapped DEK.
func (rc *RuleContext) DekForWrapped(wrapped []byte) (Dek, bool) {
	dek, ok := rc.deksByWrapped[string(wrapped)]
	return dek, ok
}

// StoreDekForWrapped remembers an unwrapped DEK keyed by its wrapped bytes.
func (rc *RuleContext) StoreDekForWrapped(dek Dek) {
	if rc.deksByWrapped == nil {
		rc.deksByWrapped = make(map[string]Dek)
	}
	rc.deksByWrapped[string(dek.Wrapped)] = dek
}
