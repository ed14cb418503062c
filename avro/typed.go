package avro

import (
	"context"

	"github.com/zoobzio/serde"
	"github.com/zoobzio/serde/internal/access"
)

// Typed serializes struct messages of type T. T's field accessors are
// built from sentinel metadata when the Typed is created.
type Typed[T any] struct {
	s *Serde
}

// NewTyped creates a Serde for messages of type T.
func NewTyped[T any](store serde.SchemaStore, pipeline *serde.Pipeline, opts ...Option) *Typed[T] {
	access.Register[T](structTag)
	return &Typed[T]{s: New(store, pipeline, opts...)}
}

// Serialize encodes msg with the latest schema for topic.
func (t *Typed[T]) Serialize(ctx context.Context, topic string, headers *serde.Headers, msg *T) ([]byte, error) {
	return t.s.Serialize(ctx, topic, headers, msg)
}

// Deserialize decodes data into a new T and runs READ rules on it.
func (t *Typed[T]) Deserialize(ctx context.Context, topic string, headers *serde.Headers, data []byte) (*T, error) {
	out := new(T)
	if err := t.s.DeserializeInto(ctx, topic, headers, data, out); err != nil {
		return nil, err
	}
	return out, nil
}
