// Package serde provides rule-driven field transformation for schema-aware
// serializers.
//
// A schema carries a RuleSet: ordered domain rules applied when messages are
// written or read, and migration rules applied when a message is upgraded or
// downgraded between schema versions. Each rule names an executor type and
// the field tags it targets. The Pipeline selects the rules that apply to a
// mode and hands the message to the executor registered for each rule.
//
// # Modes
//
//   - WRITE: serializing a message
//   - READ: deserializing a message
//   - WRITEREAD: rule fires for both WRITE and READ
//   - UPGRADE / DOWNGRADE: migrating between schema versions
//   - UPDOWN: rule fires for both UPGRADE and DOWNGRADE
//
// # Field Executors
//
// Field executors transform individual leaf values. The walker for the
// schema format (see the avro, jsonschema and protobuf packages) descends the
// schema tree and calls the executor's FieldTransform for every leaf whose
// tags intersect the rule's tags:
//
//	rule := serde.Rule{
//	    Name: "encryptPII",
//	    Kind: serde.KindTransform,
//	    Mode: serde.ModeWriteRead,
//	    Type: "ENCRYPT",
//	    Tags: []string{"PII"},
//	}
//
// Field tags come from two places: the schema Metadata, keyed by the field's
// fully qualified name, and inline tags declared on the field itself.
//
// # Wire Framing
//
// Serializers prefix payloads with a magic byte and the schema id. See Frame
// and Unframe.
//
// # Executors
//
// Executors are registered on a Registry:
//
//	executors := serde.NewRegistry()
//	executors.Register(encryptionExecutor)
//
// A rule whose executor type is not registered stops the pipeline. The
// message is returned as transformed so far, without error.
package serde

// Cloner allows message types to provide deep copy logic.
//
// Serializers clone messages before running rules so that a failed transform
// never leaves the caller's value partially rewritten. The Clone method must
// return a deep copy where modifications to the clone do not affect the
// original value.
//
//	func (u User) Clone() User { return u }
type Cloner[T any] interface {
	Clone() T
}

// Codec provides content-type aware marshaling.
type Codec interface {
	// ContentType returns the MIME type for this codec (e.g., "application/json").
	ContentType() string

	// Marshal encodes v into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into v.
	Unmarshal(data []byte, v any) error
}
