package serde

import (
	"errors"
	"testing"
)

func TestRuleError_Is(t *testing.T) {
	cause := errors.New("kms down")
	err := newRuleError(ErrRuleFailed, Rule{Name: "encryptPII", Type: "ENCRYPT"}, cause)

	if !errors.Is(err, ErrRuleFailed) {
		t.Error("RuleError should unwrap to ErrRuleFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("RuleError should unwrap to its cause")
	}
	if errors.Is(err, ErrValidationFailed) {
		t.Error("RuleError should not match ErrValidationFailed")
	}
}

func TestRuleError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "with cause",
			err:  newRuleError(ErrRuleFailed, Rule{Name: "r", Type: "ENCRYPT"}, errors.New("boom")),
			want: `rule "r" (ENCRYPT): boom`,
		},
		{
			name: "sentinel only",
			err:  newRuleError(ErrValidationFailed, Rule{Name: "r", Type: "CEL"}, nil),
			want: `rule "r" (CEL): validation failed`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFieldError_Is(t *testing.T) {
	err := NewFieldError(ErrRuleFailed, "encrypt", "example.Person.ssn", ErrUnknownKek)

	if !errors.Is(err, ErrRuleFailed) {
		t.Error("FieldError should unwrap to ErrRuleFailed")
	}
	if !errors.Is(err, ErrUnknownKek) {
		t.Error("FieldError should unwrap to its cause")
	}

	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "example.Person.ssn" {
		t.Errorf("errors.As() field = %v", fe)
	}
}

func TestFieldError_Message(t *testing.T) {
	err := NewFieldError(ErrInvalidCiphertext, "decrypt", "$.ssn", errors.New("short"))
	want := "decrypt field $.ssn: short"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	err = NewFieldError(ErrSchemaMismatch, "get", "$.ssn", nil)
	want = "get field $.ssn: schema mismatch"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestCodecError(t *testing.T) {
	err := NewCodecError(ErrUnmarshal, errors.New("unexpected EOF"))

	if !errors.Is(err, ErrUnmarshal) {
		t.Error("CodecError should unwrap to ErrUnmarshal")
	}
	if got, want := err.Error(), "unmarshal failed: unexpected EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorNesting(t *testing.T) {
	inner := NewFieldError(ErrRuleFailed, "encrypt", "$.ssn", ErrUnknownKek)
	outer := newRuleError(ErrRuleFailed, Rule{Name: "r", Type: "ENCRYPT"}, inner)

	if !errors.Is(outer, ErrUnknownKek) {
		t.Error("nested errors should unwrap through RuleError and FieldError")
	}
}
