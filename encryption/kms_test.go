package encryption

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/zoobzio/serde"
)

type nopKms struct{}

func (nopKms) Encrypt(_ context.Context, b []byte) ([]byte, error) { return b, nil }
func (nopKms) Decrypt(_ context.Context, b []byte) ([]byte, error) { return b, nil }

func TestKekPrefix(t *testing.T) {
	tests := []struct {
		kekID string
		want  string
		ok    bool
	}{
		{"local-kms://", PrefixLocal, true},
		{"aws-kms://arn:aws:kms:us-east-1:1:key/abc", PrefixAWS, true},
		{"hcvault://vault:8200/transit/keys/orders", PrefixVault, true},
		{"gcp-kms://projects/p", PrefixGCP, true},
		{"azure-kms://vault/keys/k", PrefixAzure, true},
		{"file:///etc/key", "", false},
	}
	for _, tt := range tests {
		got, ok := KekPrefix(tt.kekID)
		if got != tt.want || ok != tt.ok {
			t.Errorf("KekPrefix(%q) = %q, %v; want %q, %v", tt.kekID, got, ok, tt.want, tt.ok)
		}
	}
}

func TestKmsRegistry(t *testing.T) {
	r := NewKmsRegistry()

	if err := r.Register("file:///key", nopKms{}); !errors.Is(err, ErrUnsupportedKek) {
		t.Errorf("expected ErrUnsupportedKek, got %v", err)
	}
	if err := r.Register("local-kms://", nopKms{}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	_ = r.Register("aws-kms://arn", nopKms{})

	if _, err := r.Get("local-kms://"); err != nil {
		t.Errorf("Get() error: %v", err)
	}
	if _, err := r.Get("hcvault://v/transit/keys/x"); !errors.Is(err, serde.ErrUnknownKek) {
		t.Errorf("expected ErrUnknownKek, got %v", err)
	}
	if got := r.KekIDs(); !slices.Equal(got, []string{"aws-kms://arn", "local-kms://"}) {
		t.Errorf("KekIDs() = %v", got)
	}
}
