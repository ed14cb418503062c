package avro

import (
	"context"
	"fmt"
	"sync"

	"github.com/hamba/avro/v2"

	"github.com/zoobzio/serde"
	"github.com/zoobzio/serde/internal/access"
	"github.com/zoobzio/serde/walk"
)

// Format names this package in signals.
const Format = "avro"

// Serde serializes and deserializes Avro messages, running the schema's
// rules on the way through. Safe for concurrent use.
type Serde struct {
	base    serde.Base
	isKey   bool
	schemas sync.Map // definition -> avro.Schema
}

// Option configures a Serde.
type Option func(*Serde)

// AsKey makes the Serde handle message keys instead of values.
func AsKey() Option {
	return func(s *Serde) {
		s.isKey = true
	}
}

// New creates an Avro Serde resolving schemas from store.
func New(store serde.SchemaStore, pipeline *serde.Pipeline, opts ...Option) *Serde {
	s := &Serde{
		base: serde.Base{
			Format:   Format,
			Store:    store,
			Pipeline: pipeline,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Parse returns the parsed Avro schema for schema, cached by definition.
func (s *Serde) Parse(schema *serde.Schema) (avro.Schema, error) {
	if cached, ok := s.schemas.Load(schema.Definition); ok {
		return cached.(avro.Schema), nil
	}
	parsed, err := avro.Parse(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("parse avro schema %d: %w", schema.ID, err)
	}
	s.schemas.Store(schema.Definition, parsed)
	return parsed, nil
}

// Transformer returns the field transformer for messages of schema.
func (s *Serde) Transformer(schema *serde.Schema) (serde.FieldTransformer, error) {
	parsed, err := s.Parse(schema)
	if err != nil {
		return nil, err
	}
	return Bind(parsed), nil
}

// Bind returns a field transformer walking messages along an Avro schema.
func Bind(schema avro.Schema) serde.FieldTransformer {
	return walk.Bind[avro.Schema](defaultAdapter, schema)
}

// Serialize encodes msg with the latest schema for topic. msg is copied
// before rules run; the caller's value is never modified.
func (s *Serde) Serialize(ctx context.Context, topic string, headers *serde.Headers, msg any) ([]byte, error) {
	return s.base.Serialize(ctx, topic, s.isKey, headers, access.Clone(msg), s.Transformer,
		func(schema *serde.Schema, v any) ([]byte, []int, error) {
			parsed, err := s.Parse(schema)
			if err != nil {
				return nil, nil, err
			}
			payload, err := avro.Marshal(parsed, v)
			return payload, nil, err
		})
}

// Deserialize decodes data into generic values and runs READ rules.
func (s *Serde) Deserialize(ctx context.Context, topic string, headers *serde.Headers, data []byte) (any, error) {
	return s.base.Deserialize(ctx, topic, s.isKey, headers, data, false, s.Transformer,
		func(schema *serde.Schema, _ []int, payload []byte) (any, error) {
			parsed, err := s.Parse(schema)
			if err != nil {
				return nil, err
			}
			var v any
			if err := avro.Unmarshal(parsed, payload, &v); err != nil {
				return nil, err
			}
			return v, nil
		})
}

// DeserializeInto decodes data into out, a pointer to a struct tagged for
// Avro, and runs READ rules on it in place.
func (s *Serde) DeserializeInto(ctx context.Context, topic string, headers *serde.Headers, data []byte, out any) error {
	_, err := s.base.Deserialize(ctx, topic, s.isKey, headers, data, false, s.Transformer,
		func(schema *serde.Schema, _ []int, payload []byte) (any, error) {
			parsed, err := s.Parse(schema)
			if err != nil {
				return nil, err
			}
			if err := avro.Unmarshal(parsed, payload, out); err != nil {
				return nil, err
			}
			return out, nil
		})
	return err
}
