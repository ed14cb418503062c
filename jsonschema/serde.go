package jsonschema

import (
	"context"
	"fmt"
	"sync"

	"github.com/zoobzio/serde"
	jsoncodec "github.com/zoobzio/serde/codec/json"
	"github.com/zoobzio/serde/internal/access"
	"github.com/zoobzio/serde/walk"
)

// Format names this package in signals.
const Format = "json"

// Serde serializes and deserializes JSON-schema documents, running the
// schema's rules on the way through. Documents are encoded with a
// serde.Codec, JSON unless WithCodec says otherwise. Safe for concurrent
// use.
type Serde struct {
	base     serde.Base
	codec    serde.Codec
	isKey    bool
	validate bool
	docs     sync.Map // definition -> *Document
}

// Option configures a Serde.
type Option func(*Serde)

// AsKey makes the Serde handle message keys instead of values.
func AsKey() Option {
	return func(s *Serde) {
		s.isKey = true
	}
}

// WithCodec encodes documents with c.
func WithCodec(c serde.Codec) Option {
	return func(s *Serde) {
		s.codec = c
	}
}

// WithValidation validates documents against the schema after WRITE rules
// run and before READ rules run.
func WithValidation() Option {
	return func(s *Serde) {
		s.validate = true
	}
}

// New creates a JSON-schema Serde resolving schemas from store.
func New(store serde.SchemaStore, pipeline *serde.Pipeline, opts ...Option) *Serde {
	s := &Serde{
		base: serde.Base{
			Format:   Format,
			Store:    store,
			Pipeline: pipeline,
		},
		codec: jsoncodec.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Parse returns the parsed document for schema, cached by definition.
func (s *Serde) Parse(schema *serde.Schema) (*Document, error) {
	if cached, ok := s.docs.Load(schema.Definition); ok {
		return cached.(*Document), nil
	}
	doc, err := Parse(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("schema %d: %w", schema.ID, err)
	}
	actual, _ := s.docs.LoadOrStore(schema.Definition, doc)
	return actual.(*Document), nil
}

// Transformer returns the field transformer for documents of schema.
func (s *Serde) Transformer(schema *serde.Schema) (serde.FieldTransformer, error) {
	doc, err := s.Parse(schema)
	if err != nil {
		return nil, err
	}
	return Bind(doc), nil
}

// Bind returns a field transformer walking documents along doc's root.
func Bind(doc *Document) serde.FieldTransformer {
	return walk.Bind[*Node](defaultAdapter, doc.Root)
}

// Serialize encodes msg with the latest schema for topic. msg is copied
// before rules run; the caller's value is never modified.
func (s *Serde) Serialize(ctx context.Context, topic string, headers *serde.Headers, msg any) ([]byte, error) {
	return s.base.Serialize(ctx, topic, s.isKey, headers, access.Clone(msg), s.Transformer,
		func(schema *serde.Schema, v any) ([]byte, []int, error) {
			if err := s.check(schema, v); err != nil {
				return nil, nil, err
			}
			payload, err := s.codec.Marshal(v)
			return payload, nil, err
		})
}

// Deserialize decodes data into a generic document and runs READ rules.
func (s *Serde) Deserialize(ctx context.Context, topic string, headers *serde.Headers, data []byte) (any, error) {
	return s.base.Deserialize(ctx, topic, s.isKey, headers, data, false, s.Transformer,
		func(schema *serde.Schema, _ []int, payload []byte) (any, error) {
			var v any
			if err := s.codec.Unmarshal(payload, &v); err != nil {
				return nil, err
			}
			if err := s.check(schema, v); err != nil {
				return nil, err
			}
			return v, nil
		})
}

// DeserializeInto decodes data into out, a pointer to a struct tagged for
// JSON, and runs READ rules on it in place.
func (s *Serde) DeserializeInto(ctx context.Context, topic string, headers *serde.Headers, data []byte, out any) error {
	_, err := s.base.Deserialize(ctx, topic, s.isKey, headers, data, false, s.Transformer,
		func(schema *serde.Schema, _ []int, payload []byte) (any, error) {
			if err := s.codec.Unmarshal(payload, out); err != nil {
				return nil, err
			}
			if err := s.check(schema, out); err != nil {
				return nil, err
			}
			return out, nil
		})
	return err
}

func (s *Serde) check(schema *serde.Schema, v any) error {
	if !s.validate {
		return nil
	}
	doc, err := s.Parse(schema)
	if err != nil {
		return err
	}
	return doc.Validate("", v)
}
