package serde

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrValidationFailed indicates a rule transform produced no message.
	ErrValidationFailed = errors.New("validation failed")

	// ErrRuleFailed indicates a rule executor returned an error.
	ErrRuleFailed = errors.New("rule failed")

	// ErrUnsupportedMode indicates an executor was invoked in a mode it cannot handle.
	ErrUnsupportedMode = errors.New("unsupported rule mode")

	// ErrUnresolvedUnion indicates no union alternative matched the runtime value.
	ErrUnresolvedUnion = errors.New("unresolved union")

	// ErrSchemaMismatch indicates the message shape does not match the schema node.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrUnknownKek indicates a KEK id has no registered key management client.
	ErrUnknownKek = errors.New("unknown kek")

	// ErrInvalidCiphertext indicates encryption metadata or ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")

	// ErrNoFieldTransformer indicates a field executor ran without a schema walker bound.
	ErrNoFieldTransformer = errors.New("no field transformer bound")

	// ErrUnbalancedFields indicates the field stack was not empty after a walk.
	ErrUnbalancedFields = errors.New("unbalanced field stack")

	// ErrSchemaNotFound indicates the schema store has no schema for a subject or id.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrInvalidFrame indicates a payload does not carry the expected framing.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrInvalidRule indicates a rule definition has an invalid mode, kind or type.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrUnmarshal indicates the codec failed to unmarshal input data.
	ErrUnmarshal = errors.New("unmarshal failed")

	// ErrMarshal indicates the codec failed to marshal output data.
	ErrMarshal = errors.New("marshal failed")
)

// RuleError represents a failure while executing a single rule.
// It wraps a sentinel error with the rule that failed.
type RuleError struct {
	Err   error  // Underlying sentinel error (ErrValidationFailed, etc.)
	Rule  string // Rule name
	Type  string // Executor type
	Cause error  // Original error from the executor
}

func (e *RuleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("rule %q (%s): %v", e.Rule, e.Type, e.Cause)
	}
	return fmt.Sprintf("rule %q (%s): %s", e.Rule, e.Type, e.Err.Error())
}

func (e *RuleError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// FieldError represents an error during field transformation.
// It wraps a sentinel error with context about which field and operation failed.
type FieldError struct {
	Err       error  // Underlying sentinel error (ErrSchemaMismatch, etc.)
	Field     string // Fully qualified field name
	Operation string // Operation that failed (encrypt, decrypt, get, set, ...)
	Cause     error  // Original error from the underlying operation
}

func (e *FieldError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s field %s: %v", e.Operation, e.Field, e.Cause)
	}
	return fmt.Sprintf("%s field %s: %s", e.Operation, e.Field, e.Err.Error())
}

func (e *FieldError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// CodecError represents a marshal/unmarshal error.
type CodecError struct {
	Err   error // Underlying sentinel error (ErrMarshal, ErrUnmarshal)
	Cause error // Original error from the codec
}

func (e *CodecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Err.Error(), e.Cause)
	}
	return e.Err.Error()
}

func (e *CodecError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// NewFieldError creates a FieldError for field transformation failures.
func NewFieldError(sentinel error, operation, field string, cause error) error {
	return &FieldError{
		Err:       sentinel,
		Field:     field,
		Operation: operation,
		Cause:     cause,
	}
}

// NewCodecError creates a CodecError for marshal/unmarshal failures.
func NewCodecError(sentinel error, cause error) error {
	return &CodecError{
		Err:   sentinel,
		Cause: cause,
	}
}

// newRuleError creates a RuleError for a failing rule.
func newRuleError(sentinel error, rule Rule, cause error) error {
	return &RuleError{
		Err:   sentinel,
		Rule:  rule.Name,
		Type:  rule.Type,
		Cause: cause,
	}
}
