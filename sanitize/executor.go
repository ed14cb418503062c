// Package sanitize provides one-way field executors: HASH, MASK and REDACT.
//
// Each rewrites tagged string leaves when a message is written. None can be
// undone, so on READ they leave fields as they are. Register them next to
// the encryption executor:
//
//	executors := serde.NewRegistry(
//	    sanitize.NewHashExecutor(),
//	    sanitize.NewMaskExecutor(),
//	    sanitize.NewRedactExecutor(),
//	)
//
// Rule parameters pick the variant:
//
//	hash.algorithm  sha256 (default), sha512, argon2, bcrypt
//	mask.type       ssn, email, phone, card, ip, uuid, iban, name
//	redact.value    replacement text, default "***"
package sanitize

import (
	"context"
	"errors"
	"fmt"

	"github.com/zoobzio/serde"
	"github.com/zoobzio/serde/metrics"
)

// Rule types.
const (
	RuleTypeHash   = "HASH"
	RuleTypeMask   = "MASK"
	RuleTypeRedact = "REDACT"
)

// Rule parameters.
const (
	ParamHashAlgorithm = "hash.algorithm"
	ParamMaskType      = "mask.type"
	ParamRedactValue   = "redact.value"
)

// DefaultRedactValue replaces redacted fields when the rule sets no value.
const DefaultRedactValue = "***"

var (
	// ErrUnknownAlgorithm indicates a hash.algorithm parameter names no hasher.
	ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

	// ErrUnknownMaskType indicates a mask.type parameter names no masker.
	ErrUnknownMaskType = errors.New("unknown mask type")

	// ErrMissingMaskType indicates a MASK rule without a mask.type parameter.
	ErrMissingMaskType = errors.New("mask rule has no mask.type")
)

// HashExecutor replaces tagged strings with their hash.
type HashExecutor struct {
	hashers map[HashAlgorithm]Hasher
	metrics *metrics.Registry
}

// NewHashExecutor creates a HASH executor.
func NewHashExecutor(opts ...Option) *HashExecutor {
	o := newOptions(opts)
	emitExecutorCreated(context.Background(), RuleTypeHash)
	return &HashExecutor{hashers: hashers(o), metrics: o.metrics}
}

// Type returns "HASH".
func (e *HashExecutor) Type() string {
	return RuleTypeHash
}

// Transform hashes every tagged field of msg.
func (e *HashExecutor) Transform(ctx context.Context, rc *serde.RuleContext, msg any) (any, error) {
	return serde.TransformFields(ctx, e, rc, msg)
}

// NewTransform resolves the rule's hash.algorithm, sha256 when unset.
func (e *HashExecutor) NewTransform(rc *serde.RuleContext) (serde.FieldTransform, error) {
	algo := HashAlgorithm(rc.Rule.Param(ParamHashAlgorithm, string(HashSHA256)))
	h, ok := e.hashers[algo]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
	}
	return onWrite(rc, RuleTypeHash, e.metrics, "hash", func(s string) (string, error) {
		return h.Hash([]byte(s))
	})
}

// MaskExecutor replaces tagged strings with a masked form.
type MaskExecutor struct {
	metrics *metrics.Registry
}

// NewMaskExecutor creates a MASK executor.
func NewMaskExecutor(opts ...Option) *MaskExecutor {
	o := newOptions(opts)
	emitExecutorCreated(context.Background(), RuleTypeMask)
	return &MaskExecutor{metrics: o.metrics}
}

// Type returns "MASK".
func (e *MaskExecutor) Type() string {
	return RuleTypeMask
}

// Transform masks every tagged field of msg.
func (e *MaskExecutor) Transform(ctx context.Context, rc *serde.RuleContext, msg any) (any, error) {
	return serde.TransformFields(ctx, e, rc, msg)
}

// NewTransform resolves the rule's mask.type, which is required.
func (e *MaskExecutor) NewTransform(rc *serde.RuleContext) (serde.FieldTransform, error) {
	t := rc.Rule.Param(ParamMaskType, "")
	if t == "" {
		return nil, fmt.Errorf("%w: rule %q", ErrMissingMaskType, rc.Rule.Name)
	}
	mask, err := MaskerFor(MaskType(t))
	if err != nil {
		return nil, err
	}
	return onWrite(rc, RuleTypeMask, e.metrics, "mask", func(s string) (string, error) {
		return mask(s), nil
	})
}

// RedactExecutor replaces tagged strings with a fixed value.
type RedactExecutor struct {
	metrics *metrics.Registry
}

// NewRedactExecutor creates a REDACT executor.
func NewRedactExecutor(opts ...Option) *RedactExecutor {
	o := newOptions(opts)
	emitExecutorCreated(context.Background(), RuleTypeRedact)
	return &RedactExecutor{metrics: o.metrics}
}

// Type returns "REDACT".
func (e *RedactExecutor) Type() string {
	return RuleTypeRedact
}

// Transform redacts every tagged field of msg.
func (e *RedactExecutor) Transform(ctx context.Context, rc *serde.RuleContext, msg any) (any, error) {
	return serde.TransformFields(ctx, e, rc, msg)
}

// NewTransform resolves the rule's redact.value.
func (e *RedactExecutor) NewTransform(rc *serde.RuleContext) (serde.FieldTransform, error) {
	replacement := rc.Rule.Param(ParamRedactValue, DefaultRedactValue)
	return onWrite(rc, RuleTypeRedact, e.metrics, "redact", func(string) (string, error) {
		return replacement, nil
	})
}

// onWrite returns fn as a field transform on WRITE and the identity on READ.
// Only string leaves are rewritten.
func onWrite(rc *serde.RuleContext, ruleType string, m *metrics.Registry, op string, fn func(string) (string, error)) (serde.FieldTransform, error) {
	switch rc.Mode {
	case serde.ModeRead:
		return keep, nil
	case serde.ModeWrite:
	default:
		return nil, fmt.Errorf("%w: %s cannot run in %s", serde.ErrUnsupportedMode, ruleType, rc.Mode)
	}

	return func(_ context.Context, _ *serde.RuleContext, field *serde.FieldContext, value any) (any, error) {
		s, ok := value.(string)
		if !ok {
			return value, nil
		}
		out, err := fn(s)
		if err != nil {
			return nil, serde.NewFieldError(serde.ErrRuleFailed, op, field.FullName, err)
		}
		m.RecordField(ruleType, op)
		return out, nil
	}, nil
}

func keep(_ context.Context, _ *serde.RuleContext, _ *serde.FieldContext, value any) (any, error) {
	return value, nil
}
