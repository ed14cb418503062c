package protobuf

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/zoobzio/serde"
	"github.com/zoobzio/serde/walk"
)

// Format names this package in signals.
const Format = "protobuf"

// ErrMessageNotInSchema indicates a message type is not declared by the
// schema it is serialized with.
var ErrMessageNotInSchema = errors.New("message not declared in schema")

// Serde serializes and deserializes protobuf messages, running the
// schema's rules on the way through. Schema definitions are base64-encoded
// serialized FileDescriptorProtos; see SchemaFor. Safe for concurrent use.
type Serde struct {
	base     serde.Base
	isKey    bool
	resolver protodesc.Resolver
	files    sync.Map // definition -> protoreflect.FileDescriptor
}

// Option configures a Serde.
type Option func(*Serde)

// AsKey makes the Serde handle message keys instead of values.
func AsKey() Option {
	return func(s *Serde) {
		s.isKey = true
	}
}

// WithResolver resolves schema imports with r instead of the global
// registry.
func WithResolver(r protodesc.Resolver) Option {
	return func(s *Serde) {
		s.resolver = r
	}
}

// New creates a protobuf Serde resolving schemas from store.
func New(store serde.SchemaStore, pipeline *serde.Pipeline, opts ...Option) *Serde {
	s := &Serde{
		base: serde.Base{
			Format:   Format,
			Store:    store,
			Pipeline: pipeline,
		},
		resolver: protoregistry.GlobalFiles,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SchemaFor returns an unregistered schema for the file declaring md.
func SchemaFor(md protoreflect.MessageDescriptor) *serde.Schema {
	fdp := protodesc.ToFileDescriptorProto(md.ParentFile())
	raw, _ := proto.MarshalOptions{Deterministic: true}.Marshal(fdp)
	return &serde.Schema{
		Type:       serde.SchemaProtobuf,
		Definition: base64.StdEncoding.EncodeToString(raw),
	}
}

// Parse returns the file descriptor for schema, cached by definition.
func (s *Serde) Parse(schema *serde.Schema) (protoreflect.FileDescriptor, error) {
	if cached, ok := s.files.Load(schema.Definition); ok {
		return cached.(protoreflect.FileDescriptor), nil
	}
	raw, err := base64.StdEncoding.DecodeString(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("schema %d: decode descriptor: %w", schema.ID, err)
	}
	var fdp descriptorpb.FileDescriptorProto
	if err := proto.Unmarshal(raw, &fdp); err != nil {
		return nil, fmt.Errorf("schema %d: unmarshal descriptor: %w", schema.ID, err)
	}
	fd, err := protodesc.NewFile(&fdp, s.resolver)
	if err != nil {
		return nil, fmt.Errorf("schema %d: build descriptor: %w", schema.ID, err)
	}
	actual, _ := s.files.LoadOrStore(schema.Definition, fd)
	return actual.(protoreflect.FileDescriptor), nil
}

// Bind returns a field transformer walking messages of type md.
func Bind(md protoreflect.MessageDescriptor) serde.FieldTransformer {
	return walk.Bind[node](defaultAdapter, messageNode(md))
}

// Serialize encodes msg with the latest schema for topic, framing the
// message indexes of msg's type within the schema file. msg is cloned
// before rules run; the caller's value is never modified.
func (s *Serde) Serialize(ctx context.Context, topic string, headers *serde.Headers, msg proto.Message) ([]byte, error) {
	md := msg.ProtoReflect().Descriptor()
	var indexes []int

	bind := func(schema *serde.Schema) (serde.FieldTransformer, error) {
		file, err := s.Parse(schema)
		if err != nil {
			return nil, err
		}
		if _, err := messageIn(file, md.FullName()); err != nil {
			return nil, err
		}
		indexes = MessageIndexes(md)
		return Bind(md), nil
	}

	return s.base.Serialize(ctx, topic, s.isKey, headers, proto.Clone(msg), bind,
		func(_ *serde.Schema, v any) ([]byte, []int, error) {
			m, ok := v.(proto.Message)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %T is not a protobuf message", serde.ErrSchemaMismatch, v)
			}
			payload, err := proto.Marshal(m)
			return payload, indexes, err
		})
}

// Deserialize decodes data into a dynamic message of the type named by
// the frame's message indexes and runs READ rules.
func (s *Serde) Deserialize(ctx context.Context, topic string, headers *serde.Headers, data []byte) (proto.Message, error) {
	var md protoreflect.MessageDescriptor
	out, err := s.base.Deserialize(ctx, topic, s.isKey, headers, data, true,
		func(*serde.Schema) (serde.FieldTransformer, error) {
			return Bind(md), nil
		},
		func(schema *serde.Schema, indexes []int, payload []byte) (any, error) {
			file, err := s.Parse(schema)
			if err != nil {
				return nil, err
			}
			md, err = messageAt(file, indexes)
			if err != nil {
				return nil, err
			}
			m := dynamicpb.NewMessage(md)
			if err := proto.Unmarshal(payload, m); err != nil {
				return nil, err
			}
			return m, nil
		})
	if err != nil || out == nil {
		return nil, err
	}
	return out.(proto.Message), nil
}

// DeserializeInto decodes data into out and runs READ rules on it in place.
// out's type must be declared by the writer's schema.
func (s *Serde) DeserializeInto(ctx context.Context, topic string, headers *serde.Headers, data []byte, out proto.Message) error {
	md := out.ProtoReflect().Descriptor()
	_, err := s.base.Deserialize(ctx, topic, s.isKey, headers, data, true,
		func(*serde.Schema) (serde.FieldTransformer, error) {
			return Bind(md), nil
		},
		func(schema *serde.Schema, indexes []int, payload []byte) (any, error) {
			file, err := s.Parse(schema)
			if err != nil {
				return nil, err
			}
			framed, err := messageAt(file, indexes)
			if err != nil {
				return nil, err
			}
			if framed.FullName() != md.FullName() {
				return nil, fmt.Errorf("%w: payload is %s, target is %s", serde.ErrSchemaMismatch, framed.FullName(), md.FullName())
			}
			if err := proto.Unmarshal(payload, out); err != nil {
				return nil, err
			}
			return out, nil
		})
	return err
}

// MessageIndexes returns the path of md within its file: the index of the
// top-level message followed by the index at each nesting level.
func MessageIndexes(md protoreflect.MessageDescriptor) []int {
	var path []int
	var d protoreflect.Descriptor = md
	for {
		msg, ok := d.(protoreflect.MessageDescriptor)
		if !ok {
			break
		}
		path = append(path, msg.Index())
		d = msg.Parent()
	}
	slices.Reverse(path)
	return path
}

// messageAt returns the message at a message-index path.
func messageAt(file protoreflect.FileDescriptor, indexes []int) (protoreflect.MessageDescriptor, error) {
	if len(indexes) == 0 {
		indexes = []int{0}
	}
	msgs := file.Messages()
	var md protoreflect.MessageDescriptor
	for _, i := range indexes {
		if i < 0 || i >= msgs.Len() {
			return nil, fmt.Errorf("%w: message index %v out of range", serde.ErrInvalidFrame, indexes)
		}
		md = msgs.Get(i)
		msgs = md.Messages()
	}
	return md, nil
}

// messageIn returns the message named name declared in file.
func messageIn(file protoreflect.FileDescriptor, name protoreflect.FullName) (protoreflect.MessageDescriptor, error) {
	if md := findMessage(file.Messages(), name); md != nil {
		return md, nil
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrMessageNotInSchema, name, file.Path())
}

func findMessage(msgs protoreflect.MessageDescriptors, name protoreflect.FullName) protoreflect.MessageDescriptor {
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		if md.FullName() == name {
			return md
		}
		if nested := findMessage(md.Messages(), name); nested != nil {
			return nested
		}
	}
	return nil
}
