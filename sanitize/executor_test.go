package sanitize_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zoobzio/serde"
	"github.com/zoobzio/serde/jsonschema"
	"github.com/zoobzio/serde/metrics"
	"github.com/zoobzio/serde/sanitize"
)

const contactSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string", "confluent:tags": ["NAME"]},
    "email": {"type": "string", "confluent:tags": ["PII"]},
    "ssn": {"type": "string", "confluent:tags": ["PII"]},
    "age": {"type": "integer", "confluent:tags": ["PII"]}
  }
}`

func contact() map[string]any {
	return map[string]any{
		"name":  "John Smith",
		"email": "john@example.com",
		"ssn":   "123-45-6789",
		"age":   42,
	}
}

func run(t *testing.T, exec serde.RuleExecutor, rule serde.Rule, mode serde.RuleMode, msg map[string]any) (map[string]any, error) {
	t.Helper()
	doc, err := jsonschema.Parse(contactSchema)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	schema := &serde.Schema{
		ID:         1,
		Type:       serde.SchemaJSON,
		Definition: contactSchema,
		RuleSet:    &serde.RuleSet{DomainRules: []serde.Rule{rule}},
	}
	out, err := serde.NewPipeline(serde.NewRegistry(exec)).Execute(context.Background(), serde.Request{
		Subject: "contacts-value",
		Topic:   "contacts",
		Headers: serde.NewHeaders(),
		Mode:    mode,
		Target:  schema,
		Message: msg,
	}, jsonschema.Bind(doc))
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func rule(typ string, params map[string]string, tags ...string) serde.Rule {
	return serde.Rule{
		Name:   strings.ToLower(typ) + "PII",
		Kind:   serde.KindTransform,
		Mode:   serde.ModeWrite,
		Type:   typ,
		Tags:   tags,
		Params: params,
	}
}

func TestHashExecutor_DefaultSHA256(t *testing.T) {
	out, err := run(t, sanitize.NewHashExecutor(), rule(sanitize.RuleTypeHash, nil, "PII"), serde.ModeWrite, contact())
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	email, _ := sanitize.NewSHA256Hasher().Hash([]byte("john@example.com"))
	if out["email"] != email {
		t.Errorf("email = %v, want %s", out["email"], email)
	}
	if out["name"] != "John Smith" {
		t.Errorf("untagged name changed: %v", out["name"])
	}
	if out["age"] != 42 {
		t.Errorf("non-string field changed: %v", out["age"])
	}
}

func TestHashExecutor_Algorithms(t *testing.T) {
	tests := []struct {
		algo   string
		prefix string
		length int
	}{
		{"sha512", "", 128},
		{"bcrypt", "$2", 0},
		{"argon2", "$argon2id$", 0},
	}

	exec := sanitize.NewHashExecutor(
		sanitize.WithBcryptCost(4),
		sanitize.WithArgon2Params(sanitize.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 16, SaltLen: 8}),
	)
	for _, tt := range tests {
		t.Run(tt.algo, func(t *testing.T) {
			r := rule(sanitize.RuleTypeHash, map[string]string{sanitize.ParamHashAlgorithm: tt.algo}, "PII")
			out, err := run(t, exec, r, serde.ModeWrite, contact())
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			ssn := out["ssn"].(string)
			if !strings.HasPrefix(ssn, tt.prefix) {
				t.Errorf("ssn = %q, want prefix %q", ssn, tt.prefix)
			}
			if tt.length > 0 && len(ssn) != tt.length {
				t.Errorf("len(ssn) = %d, want %d", len(ssn), tt.length)
			}
		})
	}
}

func TestHashExecutor_UnknownAlgorithm(t *testing.T) {
	r := rule(sanitize.RuleTypeHash, map[string]string{sanitize.ParamHashAlgorithm: "md5"}, "PII")
	_, err := run(t, sanitize.NewHashExecutor(), r, serde.ModeWrite, contact())
	if !errors.Is(err, sanitize.ErrUnknownAlgorithm) {
		t.Fatalf("error = %v, want ErrUnknownAlgorithm", err)
	}
	if !errors.Is(err, serde.ErrRuleFailed) {
		t.Errorf("error = %v, want wrapped in ErrRuleFailed", err)
	}
}

func TestMaskExecutor(t *testing.T) {
	r := rule(sanitize.RuleTypeMask, map[string]string{sanitize.ParamMaskType: "name"}, "NAME")
	out, err := run(t, sanitize.NewMaskExecutor(), r, serde.ModeWrite, contact())
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if out["name"] != "J*** S****" {
		t.Errorf("name = %v, want J*** S****", out["name"])
	}
	if out["ssn"] != "123-45-6789" {
		t.Errorf("ssn should not be masked by a NAME rule: %v", out["ssn"])
	}
}

func TestMaskExecutor_Params(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		err    error
	}{
		{"missing", nil, sanitize.ErrMissingMaskType},
		{"unknown", map[string]string{sanitize.ParamMaskType: "swift"}, sanitize.ErrUnknownMaskType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, sanitize.NewMaskExecutor(), rule(sanitize.RuleTypeMask, tt.params, "PII"), serde.ModeWrite, contact())
			if !errors.Is(err, tt.err) {
				t.Errorf("error = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestRedactExecutor(t *testing.T) {
	m := metrics.NewRegistry()
	exec := sanitize.NewRedactExecutor(sanitize.WithMetrics(m))

	out, err := run(t, exec, rule(sanitize.RuleTypeRedact, nil, "PII"), serde.ModeWrite, contact())
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if out["email"] != sanitize.DefaultRedactValue || out["ssn"] != sanitize.DefaultRedactValue {
		t.Errorf("redacted = %v", out)
	}
	if n := testutil.ToFloat64(m.FieldsTransformed.WithLabelValues(sanitize.RuleTypeRedact, "redact")); n != 2 {
		t.Errorf("fields transformed = %v, want 2", n)
	}

	r := rule(sanitize.RuleTypeRedact, map[string]string{sanitize.ParamRedactValue: "[removed]"}, "PII")
	out, err = run(t, exec, r, serde.ModeWrite, contact())
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if out["ssn"] != "[removed]" {
		t.Errorf("ssn = %v, want [removed]", out["ssn"])
	}
}

func TestExecutors_ReadLeavesFields(t *testing.T) {
	execs := []serde.RuleExecutor{
		sanitize.NewHashExecutor(),
		sanitize.NewMaskExecutor(),
		sanitize.NewRedactExecutor(),
	}
	for _, exec := range execs {
		t.Run(exec.Type(), func(t *testing.T) {
			r := rule(exec.Type(), map[string]string{sanitize.ParamMaskType: "ssn"}, "PII")
			r.Mode = serde.ModeWriteRead
			out, err := run(t, exec, r, serde.ModeRead, contact())
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			if out["ssn"] != "123-45-6789" {
				t.Errorf("READ changed ssn: %v", out["ssn"])
			}
		})
	}
}

func TestExecutors_UnsupportedMode(t *testing.T) {
	r := rule(sanitize.RuleTypeRedact, nil, "PII")
	r.Kind = serde.KindTransform
	r.Mode = serde.ModeUpDown

	schema := &serde.Schema{ID: 1, Type: serde.SchemaJSON, RuleSet: &serde.RuleSet{MigrationRules: []serde.Rule{r}}}
	doc, err := jsonschema.Parse(contactSchema)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	_, err = serde.NewPipeline(serde.NewRegistry(sanitize.NewRedactExecutor())).Execute(context.Background(), serde.Request{
		Mode:    serde.ModeUpgrade,
		Target:  schema,
		Message: contact(),
	}, jsonschema.Bind(doc))
	if !errors.Is(err, serde.ErrUnsupportedMode) {
		t.Errorf("error = %v, want ErrUnsupportedMode", err)
	}
}
