// Package testing provides test utilities for serde.
package testing

import (
	"context"
	"sync/atomic"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/zoobzio/serde"
	"github.com/zoobzio/serde/encryption"
	"github.com/zoobzio/serde/encryption/localkms"
)

// TestSecret is the local KMS secret used by fixtures.
const TestSecret = "serde-test-secret"

// TestTopic is the topic fixtures register schemas under.
const TestTopic = "people"

// RecordingKms wraps a KmsClient and counts its calls.
type RecordingKms struct {
	client   encryption.KmsClient
	encrypts atomic.Int64
	decrypts atomic.Int64
}

// NewRecordingKms returns a recording local KMS client for TestSecret.
func NewRecordingKms(tb testing.TB) *RecordingKms {
	tb.Helper()
	client, err := localkms.New(TestSecret)
	if err != nil {
		tb.Fatalf("localkms.New() error: %v", err)
	}
	return &RecordingKms{client: client}
}

// Encrypt wraps plaintext and counts the call.
func (r *RecordingKms) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	r.encrypts.Add(1)
	return r.client.Encrypt(ctx, plaintext)
}

// Decrypt unwraps ciphertext and counts the call.
func (r *RecordingKms) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	r.decrypts.Add(1)
	return r.client.Decrypt(ctx, ciphertext)
}

// Encrypts returns the number of Encrypt calls.
func (r *RecordingKms) Encrypts() int {
	return int(r.encrypts.Load())
}

// Decrypts returns the number of Decrypt calls.
func (r *RecordingKms) Decrypts() int {
	return int(r.decrypts.Load())
}

// Env bundles what a serializer test needs: a schema store, the executor
// registry, a pipeline and an encryption executor over a recording KMS.
type Env struct {
	Store     *serde.MemoryStore
	Executors *serde.Registry
	Pipeline  *serde.Pipeline
	Kms       *RecordingKms
	Encrypt   *encryption.FieldEncryptionExecutor
}

// NewEnv returns an Env with the ENCRYPT executor registered under the
// local KMS KEK.
func NewEnv(tb testing.TB, opts ...encryption.Option) *Env {
	tb.Helper()
	kms := NewRecordingKms(tb)
	reg := encryption.NewKmsRegistry()
	if err := reg.Register(localkms.KekID, kms); err != nil {
		tb.Fatalf("Register() error: %v", err)
	}
	exec, err := encryption.NewFieldEncryptionExecutor(localkms.KekID, reg, opts...)
	if err != nil {
		tb.Fatalf("NewFieldEncryptionExecutor() error: %v", err)
	}
	executors := serde.NewRegistry(exec)
	return &Env{
		Store:     serde.NewMemoryStore(),
		Executors: executors,
		Pipeline:  serde.NewPipeline(executors),
		Kms:       kms,
		Encrypt:   exec,
	}
}

// Register adds schema as the latest value schema for TestTopic.
func (e *Env) Register(tb testing.TB, schema *serde.Schema) *serde.Schema {
	tb.Helper()
	if _, err := e.Store.Register(serde.SubjectName(TestTopic, false), schema); err != nil {
		tb.Fatalf("Register() error: %v", err)
	}
	return schema
}

// EncryptRule returns a WRITEREAD ENCRYPT rule for tags.
func EncryptRule(tags ...string) serde.Rule {
	return serde.Rule{
		Name: "encryptPII",
		Kind: serde.KindTransform,
		Mode: serde.ModeWriteRead,
		Type: encryption.RuleType,
		Tags: tags,
	}
}

// Rules returns a rule set holding domain rules.
func Rules(rules ...serde.Rule) *serde.RuleSet {
	return &serde.RuleSet{DomainRules: rules}
}

// PersonAvro is an Avro schema for Person with an inline PII tag on ssn.
const PersonAvro = `{
  "type": "record",
  "name": "Person",
  "namespace": "example",
  "fields": [
    {"name": "name", "type": "string"},
    {"name": "ssn", "type": "string", "confluent:tags": ["PII"]},
    {"name": "age", "type": "int"},
    {"name": "notes", "type": ["null", "string"], "default": null},
    {"name": "picture", "type": "bytes"}
  ]
}`

// PersonJSON is a JSON schema for Person with an inline PII tag on ssn.
const PersonJSON = `{
  "type": "object",
  "properties": {
    "name": {"type": "string"},
    "ssn": {"type": "string", "confluent:tags": ["PII"]},
    "age": {"type": "integer"},
    "address": {"$ref": "#/$defs/Address"}
  },
  "$defs": {
    "Address": {
      "type": "object",
      "properties": {
        "street": {"type": "string", "confluent:tags": ["PII"]},
        "city": {"type": "string"}
      }
    }
  }
}`

// Person is a Go message matching PersonAvro and PersonJSON.
type Person struct {
	Name    string  `avro:"name" json:"name"`
	SSN     string  `avro:"ssn" json:"ssn"`
	Age     int     `avro:"age" json:"age"`
	Notes   *string `avro:"notes" json:"-"`
	Picture []byte  `avro:"picture" json:"-"`
}

// Clone implements serde.Cloner[Person].
func (p Person) Clone() Person {
	out := p
	if p.Notes != nil {
		notes := *p.Notes
		out.Notes = &notes
	}
	out.Picture = append([]byte(nil), p.Picture...)
	return out
}

// PersonDescriptor returns a dynamically built descriptor for
// example.Person { string name = 1; string ssn = 2; int32 age = 3;
// repeated string emails = 4; map<string,string> labels = 5; }.
func PersonDescriptor(tb testing.TB) protoreflect.MessageDescriptor {
	tb.Helper()
	label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	repeated := descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	str := descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum()
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("example/person.proto"),
		Package: proto.String("example"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("Person"),
			Field: []*descriptorpb.FieldDescriptorProto{
				{Name: proto.String("name"), Number: proto.Int32(1), Label: label, Type: str, JsonName: proto.String("name")},
				{Name: proto.String("ssn"), Number: proto.Int32(2), Label: label, Type: str, JsonName: proto.String("ssn")},
				{Name: proto.String("age"), Number: proto.Int32(3), Label: label, Type: descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum(), JsonName: proto.String("age")},
				{Name: proto.String("emails"), Number: proto.Int32(4), Label: repeated, Type: str, JsonName: proto.String("emails")},
				{
					Name: proto.String("labels"), Number: proto.Int32(5), Label: repeated,
					Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
					TypeName: proto.String(".example.Person.LabelsEntry"), JsonName: proto.String("labels"),
				},
			},
			NestedType: []*descriptorpb.DescriptorProto{{
				Name: proto.String("LabelsEntry"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: proto.String("key"), Number: proto.Int32(1), Label: label, Type: str, JsonName: proto.String("key")},
					{Name: proto.String("value"), Number: proto.Int32(2), Label: label, Type: str, JsonName: proto.String("value")},
				},
				Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
			}},
		}},
	}
	fd, err := protodesc.NewFile(fdp, nil)
	if err != nil {
		tb.Fatalf("protodesc.NewFile() error: %v", err)
	}
	return fd.Messages().ByName("Person")
}

// NewPerson returns a dynamic example.Person.
func NewPerson(md protoreflect.MessageDescriptor, name, ssn string, emails ...string) *dynamicpb.Message {
	m := dynamicpb.NewMessage(md)
	m.Set(md.Fields().ByName("name"), protoreflect.ValueOfString(name))
	m.Set(md.Fields().ByName("ssn"), protoreflect.ValueOfString(ssn))
	m.Set(md.Fields().ByName("age"), protoreflect.ValueOfInt32(30))
	list := m.Mutable(md.Fields().ByName("emails")).List()
	for _, e := range emails {
		list.Append(protoreflect.ValueOfString(e))
	}
	return m
}
