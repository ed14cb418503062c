package serde

import (
	"context"
	"time"
)

// Binder returns the field transformer for messages described by schema.
type Binder func(schema *Schema) (FieldTransformer, error)

// Encoder turns a transformed message into payload bytes for schema.
// indexes is non-nil only for formats that frame message indexes.
type Encoder func(schema *Schema, msg any) (payload []byte, indexes []int, err error)

// Decoder turns payload bytes into a message for schema.
type Decoder func(schema *Schema, indexes []int, payload []byte) (any, error)

// Base holds what every format serializer shares: schema resolution, the
// rule pipeline and wire framing.
type Base struct {
	Format   string
	Store    SchemaStore
	Pipeline *Pipeline
}

// Serialize resolves the latest schema for the topic, runs WRITE rules,
// encodes and frames the message. msg should already be a copy owned by the
// caller; rules may rewrite it in place.
func (b *Base) Serialize(ctx context.Context, topic string, isKey bool, headers *Headers, msg any, bind Binder, encode Encoder) (data []byte, retErr error) {
	start := time.Now()
	schemaID := 0
	emitSerializeStart(ctx, b.Format, topic)
	defer func() {
		emitSerializeComplete(ctx, b.Format, topic, schemaID, len(data), time.Since(start), retErr)
	}()

	subject := SubjectName(topic, isKey)
	schema, err := b.Store.Latest(ctx, subject)
	if err != nil {
		return nil, err
	}
	schemaID = schema.ID

	transformer, err := bind(schema)
	if err != nil {
		return nil, err
	}

	out, err := b.Pipeline.Execute(ctx, Request{
		IsKey:   isKey,
		Subject: subject,
		Topic:   topic,
		Headers: headers,
		Mode:    ModeWrite,
		Target:  schema,
		Message: msg,
	}, transformer)
	if err != nil {
		return nil, err
	}

	payload, indexes, err := encode(schema, out)
	if err != nil {
		return nil, NewCodecError(ErrMarshal, err)
	}
	return Frame(schema.ID, indexes, payload), nil
}

// Deserialize unframes data, decodes it with the writer's schema and runs
// READ rules.
func (b *Base) Deserialize(ctx context.Context, topic string, isKey bool, headers *Headers, data []byte, withIndexes bool, bind Binder, decode Decoder) (msg any, retErr error) {
	start := time.Now()
	schemaID := 0
	emitDeserializeStart(ctx, b.Format, topic, len(data))
	defer func() {
		emitDeserializeComplete(ctx, b.Format, topic, schemaID, time.Since(start), retErr)
	}()

	id, indexes, payload, err := Unframe(data, withIndexes)
	if err != nil {
		return nil, err
	}
	schemaID = id

	schema, err := b.Store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	decoded, err := decode(schema, indexes, payload)
	if err != nil {
		return nil, NewCodecError(ErrUnmarshal, err)
	}

	transformer, err := bind(schema)
	if err != nil {
		return nil, err
	}

	return b.Pipeline.Execute(ctx, Request{
		IsKey:   isKey,
		Subject: SubjectName(topic, isKey),
		Topic:   topic,
		Headers: headers,
		Mode:    ModeRead,
		Target:  schema,
		Message: decoded,
	}, transformer)
}
