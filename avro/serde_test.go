package avro_test

import (
	"context"
	"errors"
	"testing"

	"github.com/zoobzio/serde"
	"github.com/zoobzio/serde/avro"
	serdetest "github.com/zoobzio/serde/testing"
)

func newSerde(t *testing.T, env *serdetest.Env, metadata *serde.Metadata, definition string) *avro.Serde {
	t.Helper()
	env.Register(t, &serde.Schema{
		Type:       serde.SchemaAvro,
		Definition: definition,
		RuleSet:    serdetest.Rules(serdetest.EncryptRule("PII")),
		Metadata:   metadata,
	})
	return avro.New(env.Store, env.Pipeline)
}

func alice() *serdetest.Person {
	notes := "prefers email"
	return &serdetest.Person{Name: "alice", SSN: "123-45-6789", Age: 30, Notes: &notes, Picture: []byte("png")}
}

func TestSerde_StructRoundTrip(t *testing.T) {
	env := serdetest.NewEnv(t)
	s := newSerde(t, env, nil, serdetest.PersonAvro)
	ctx := context.Background()
	headers := serde.NewHeaders()
	in := alice()

	data, err := s.Serialize(ctx, serdetest.TestTopic, headers, in)
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	if in.SSN != "123-45-6789" {
		t.Errorf("Serialize() modified the caller's message: %q", in.SSN)
	}
	if data[0] != serde.MagicByte {
		t.Errorf("payload should be framed, got %v", data[:5])
	}
	if _, ok := headers.Last("encrypt-value"); !ok {
		t.Fatal("Serialize() should attach encryption metadata")
	}

	var out serdetest.Person
	if err := s.DeserializeInto(ctx, serdetest.TestTopic, headers, data, &out); err != nil {
		t.Fatalf("DeserializeInto() error: %v", err)
	}
	if out.Name != "alice" || out.SSN != "123-45-6789" || out.Age != 30 {
		t.Errorf("DeserializeInto() = %+v", out)
	}
	if out.Notes == nil || *out.Notes != "prefers email" || string(out.Picture) != "png" {
		t.Errorf("optional fields lost: %+v", out)
	}
	if env.Kms.Encrypts() != 1 || env.Kms.Decrypts() != 1 {
		t.Errorf("kms calls = %d/%d, want 1/1", env.Kms.Encrypts(), env.Kms.Decrypts())
	}
}

func TestSerde_GenericDeserialize(t *testing.T) {
	env := serdetest.NewEnv(t)
	s := newSerde(t, env, nil, serdetest.PersonAvro)
	ctx := context.Background()
	headers := serde.NewHeaders()

	data, err := s.Serialize(ctx, serdetest.TestTopic, headers, alice())
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	got, err := s.Deserialize(ctx, serdetest.TestTopic, headers, data)
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	rec, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("Deserialize() = %T, want map[string]any", got)
	}
	if rec["ssn"] != "123-45-6789" || rec["name"] != "alice" {
		t.Errorf("Deserialize() = %v", rec)
	}
}

func TestSerde_CiphertextWithoutReader(t *testing.T) {
	env := serdetest.NewEnv(t)
	s := newSerde(t, env, nil, serdetest.PersonAvro)
	ctx := context.Background()
	headers := serde.NewHeaders()

	data, err := s.Serialize(ctx, serdetest.TestTopic, headers, alice())
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}

	plain := avro.New(env.Store, serde.NewPipeline(serde.NewRegistry()))
	var out serdetest.Person
	if err := plain.DeserializeInto(ctx, serdetest.TestTopic, headers, data, &out); err != nil {
		t.Fatalf("DeserializeInto() error: %v", err)
	}
	if out.SSN == "123-45-6789" || out.SSN == "" {
		t.Errorf("without an ENCRYPT executor ssn should stay ciphertext, got %q", out.SSN)
	}
	if out.Name != "alice" {
		t.Errorf("untagged name = %q", out.Name)
	}
}

func TestSerde_MetadataTags(t *testing.T) {
	const untagged = `{
  "type": "record", "name": "Person", "namespace": "example",
  "fields": [
    {"name": "name", "type": "string"},
    {"name": "ssn", "type": "string"},
    {"name": "age", "type": "int"},
    {"name": "notes", "type": ["null", "string"], "default": null},
    {"name": "picture", "type": "bytes"}
  ]
}`
	env := serdetest.NewEnv(t)
	md := &serde.Metadata{Tags: map[string][]string{"example.Person.name": {"PII"}}}
	s := newSerde(t, env, md, untagged)
	ctx := context.Background()
	headers := serde.NewHeaders()

	data, err := s.Serialize(ctx, serdetest.TestTopic, headers, alice())
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}

	plain := avro.New(env.Store, serde.NewPipeline(serde.NewRegistry()))
	var raw serdetest.Person
	_ = plain.DeserializeInto(ctx, serdetest.TestTopic, headers, data, &raw)
	if raw.Name == "alice" || raw.SSN != "123-45-6789" {
		t.Errorf("metadata should tag name only: %+v", raw)
	}

	var out serdetest.Person
	if err := s.DeserializeInto(ctx, serdetest.TestTopic, headers, data, &out); err != nil {
		t.Fatalf("DeserializeInto() error: %v", err)
	}
	if out.Name != "alice" {
		t.Errorf("name = %q after READ", out.Name)
	}
}

func TestSerde_Errors(t *testing.T) {
	env := serdetest.NewEnv(t)
	s := avro.New(env.Store, env.Pipeline)
	ctx := context.Background()

	if _, err := s.Serialize(ctx, "unknown", serde.NewHeaders(), alice()); !errors.Is(err, serde.ErrSchemaNotFound) {
		t.Errorf("expected ErrSchemaNotFound, got %v", err)
	}
	if _, err := s.Deserialize(ctx, serdetest.TestTopic, nil, []byte{1, 2}); !errors.Is(err, serde.ErrInvalidFrame) {
		t.Errorf("expected ErrInvalidFrame, got %v", err)
	}
	if _, err := s.Deserialize(ctx, serdetest.TestTopic, nil, serde.Frame(404, nil, nil)); !errors.Is(err, serde.ErrSchemaNotFound) {
		t.Errorf("expected ErrSchemaNotFound, got %v", err)
	}

	newSerde(t, env, nil, serdetest.PersonAvro)
	if _, err := s.Deserialize(ctx, serdetest.TestTopic, nil, serde.Frame(1, nil, []byte{0xff})); !errors.Is(err, serde.ErrUnmarshal) {
		t.Errorf("expected ErrUnmarshal, got %v", err)
	}
}

const accountAvro = `{
  "type": "record", "name": "Account", "namespace": "example",
  "fields": [
    {"name": "owner", "type": "string"},
    {"name": "home", "type": ["null", {
      "type": "record", "name": "Address",
      "fields": [{"name": "street", "type": "string", "confluent:tags": ["PII"]}]
    }], "default": null}
  ]
}`

type address struct {
	Street string `avro:"street"`
}

type account struct {
	Owner string   `avro:"owner"`
	Home  *address `avro:"home"`
}

func TestSerde_NestedRecordNotModified(t *testing.T) {
	env := serdetest.NewEnv(t)
	s := newSerde(t, env, nil, accountAvro)
	ctx := context.Background()
	headers := serde.NewHeaders()
	in := &account{Owner: "alice", Home: &address{Street: "1 Main St"}}

	data, err := s.Serialize(ctx, serdetest.TestTopic, headers, in)
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	if in.Home.Street != "1 Main St" {
		t.Errorf("Serialize() wrote %q into the caller's nested record", in.Home.Street)
	}

	var out account
	if err := s.DeserializeInto(ctx, serdetest.TestTopic, headers, data, &out); err != nil {
		t.Fatalf("DeserializeInto() error: %v", err)
	}
	if out.Home == nil || out.Home.Street != "1 Main St" {
		t.Errorf("DeserializeInto() = %+v", out)
	}
}

func TestTyped_RoundTrip(t *testing.T) {
	env := serdetest.NewEnv(t)
	newSerde(t, env, nil, serdetest.PersonAvro)
	s := avro.NewTyped[serdetest.Person](env.Store, env.Pipeline)
	ctx := context.Background()
	headers := serde.NewHeaders()

	data, err := s.Serialize(ctx, serdetest.TestTopic, headers, alice())
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	out, err := s.Deserialize(ctx, serdetest.TestTopic, headers, data)
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if out.SSN != "123-45-6789" || out.Name != "alice" || out.Notes == nil {
		t.Errorf("Deserialize() = %+v", out)
	}
}
