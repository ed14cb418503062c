package serde

// RuleMode identifies when a rule fires.
// Use these constants in rule definitions: `mode: WRITEREAD`
type RuleMode string

const (
	// ModeUpgrade applies a migration rule when reading an older schema version.
	ModeUpgrade RuleMode = "UPGRADE"

	// ModeDowngrade applies a migration rule when reading a newer schema version.
	ModeDowngrade RuleMode = "DOWNGRADE"

	// ModeUpDown fires for both ModeUpgrade and ModeDowngrade.
	ModeUpDown RuleMode = "UPDOWN"

	// ModeWrite applies a domain rule during serialization.
	ModeWrite RuleMode = "WRITE"

	// ModeRead applies a domain rule during deserialization.
	ModeRead RuleMode = "READ"

	// ModeWriteRead fires for both ModeWrite and ModeRead.
	ModeWriteRead RuleMode = "WRITEREAD"
)

// Applies reports whether a rule declared with mode m fires when the
// pipeline runs in mode.
func (m RuleMode) Applies(mode RuleMode) bool {
	switch m {
	case ModeWriteRead:
		return mode == ModeWrite || mode == ModeRead
	case ModeUpDown:
		return mode == ModeUpgrade || mode == ModeDowngrade
	default:
		return m == mode
	}
}

// RuleKind distinguishes rules that rewrite a message from rules that only
// check it.
type RuleKind string

const (
	// KindTransform rules return a rewritten message.
	KindTransform RuleKind = "TRANSFORM"

	// KindCondition rules check a message.
	KindCondition RuleKind = "CONDITION"
)

// SchemaType identifies the schema language a Schema is written in.
type SchemaType string

const (
	SchemaAvro     SchemaType = "AVRO"
	SchemaJSON     SchemaType = "JSON"
	SchemaProtobuf SchemaType = "PROTOBUF"
)

// validRuleModes contains all valid rule modes for rule validation.
var validRuleModes = map[RuleMode]bool{
	ModeUpgrade:   true,
	ModeDowngrade: true,
	ModeUpDown:    true,
	ModeWrite:     true,
	ModeRead:      true,
	ModeWriteRead: true,
}

// validRuleKinds contains all valid rule kinds for rule validation.
var validRuleKinds = map[RuleKind]bool{
	KindTransform: true,
	KindCondition: true,
}

// validSchemaTypes contains all valid schema types.
var validSchemaTypes = map[SchemaType]bool{
	SchemaAvro:     true,
	SchemaJSON:     true,
	SchemaProtobuf: true,
}

// IsValidRuleMode returns true if the mode is a known rule mode.
func IsValidRuleMode(m RuleMode) bool {
	return validRuleModes[m]
}

// IsValidRuleKind returns true if the kind is a known rule kind.
func IsValidRuleKind(k RuleKind) bool {
	return validRuleKinds[k]
}

// IsValidSchemaType returns true if the type is a known schema type.
func IsValidSchemaType(t SchemaType) bool {
	return validSchemaTypes[t]
}

// Type is the unified field type every schema format is projected onto
// before values reach a field transform.
type Type int

const (
	TypeRecord Type = iota
	TypeEnum
	TypeArray
	TypeMap
	TypeCombined
	TypeFixed
	TypeString
	TypeBytes
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeBoolean
	TypeNull
)

var typeNames = [...]string{
	TypeRecord:   "RECORD",
	TypeEnum:     "ENUM",
	TypeArray:    "ARRAY",
	TypeMap:      "MAP",
	TypeCombined: "COMBINED",
	TypeFixed:    "FIXED",
	TypeString:   "STRING",
	TypeBytes:    "BYTES",
	TypeInt:      "INT",
	TypeLong:     "LONG",
	TypeFloat:    "FLOAT",
	TypeDouble:   "DOUBLE",
	TypeBoolean:  "BOOLEAN",
	TypeNull:     "NULL",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "UNKNOWN"
	}
	return typeNames[t]
}
