package cmd

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zoobzio/serde/encryption"
)

const personSchema = `
schemaType: JSON
schema: |
  {
    "type": "object",
    "properties": {
      "name": {"type": "string"},
      "ssn": {"type": "string", "confluent:tags": ["PII"]},
      "email": {"type": "string", "confluent:tags": ["CONTACT"]}
    }
  }
ruleSet:
  domainRules:
    - name: encryptPII
      kind: TRANSFORM
      mode: WRITEREAD
      type: ENCRYPT
      tags: [PII]
    - name: maskContact
      kind: TRANSFORM
      mode: WRITE
      type: MASK
      tags: [CONTACT]
      params:
        mask.type: email
`

func schemaPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "person.yaml")
	if err := os.WriteFile(path, []byte(personSchema), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	root := NewRootCommand()
	want := map[string]bool{"encrypt": false, "decrypt": false, "inspect-metadata": false}
	for _, sub := range root.Commands() {
		name := strings.Fields(sub.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing %s command", name)
		}
	}
}

func TestEncryptDecrypt(t *testing.T) {
	t.Setenv("SERDE_LOCAL_SECRET", "cli-secret")
	schema := schemaPath(t)

	out, err := run(t, `{"name":"alice","ssn":"123-45-6789","email":"alice@example.com"}`,
		"encrypt", "--schema", schema, "--topic", "people")
	if err != nil {
		t.Fatalf("encrypt error: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("encrypt output is not an envelope: %v\n%s", err, out)
	}
	if env.Topic != "people" {
		t.Errorf("Topic = %q, want people", env.Topic)
	}
	header, ok := env.Headers[encryption.HeaderValue]
	if !ok {
		t.Fatalf("envelope headers = %v, want %s", env.Headers, encryption.HeaderValue)
	}
	if bytes.Contains(env.Data, []byte("123-45-6789")) {
		t.Error("ssn should not appear in plaintext on the wire")
	}
	if !bytes.Contains(env.Data, []byte("a***@example.com")) {
		t.Errorf("email should be masked on the wire: %s", env.Data)
	}

	decrypted, err := run(t, out, "decrypt", "--schema", schema)
	if err != nil {
		t.Fatalf("decrypt error: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(decrypted), &doc); err != nil {
		t.Fatalf("decrypt output is not JSON: %v", err)
	}
	if doc["ssn"] != "123-45-6789" || doc["name"] != "alice" {
		t.Errorf("decrypted = %v", doc)
	}
	if doc["email"] != "a***@example.com" {
		t.Errorf("email = %v, masking is one way", doc["email"])
	}

	info, err := run(t, "", "inspect-metadata", base64.StdEncoding.EncodeToString(header))
	if err != nil {
		t.Fatalf("inspect-metadata error: %v", err)
	}
	for _, want := range []string{"kek id:      local-kms://", "dek format:  AES256_GCM"} {
		if !strings.Contains(info, want) {
			t.Errorf("inspect-metadata output missing %q:\n%s", want, info)
		}
	}
}

func TestEncrypt_Errors(t *testing.T) {
	schema := schemaPath(t)

	t.Run("missing schema flag", func(t *testing.T) {
		if _, err := run(t, "{}", "encrypt"); err == nil {
			t.Error("encrypt without --schema should fail")
		}
	})

	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("SERDE_LOCAL_SECRET", "")
		if _, err := run(t, "{}", "encrypt", "--schema", schema); err == nil {
			t.Error("encrypt without a local secret should fail")
		}
	})

	t.Run("bad document", func(t *testing.T) {
		t.Setenv("SERDE_LOCAL_SECRET", "cli-secret")
		if _, err := run(t, "{not json", "encrypt", "--schema", schema); err == nil {
			t.Error("encrypt of invalid JSON should fail")
		}
	})
}

func TestInspectMetadata_Invalid(t *testing.T) {
	tests := []string{"!!!", base64.StdEncoding.EncodeToString([]byte{7})}
	for _, arg := range tests {
		if _, err := run(t, "", "inspect-metadata", arg); err == nil {
			t.Errorf("inspect-metadata(%q) should fail", arg)
		}
	}
}
