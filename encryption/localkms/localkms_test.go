package localkms

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestClient_RoundTrip(t *testing.T) {
	client, err := New("mysecret")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	dek := bytes.Repeat([]byte{7}, 32)
	wrapped, err := client.Encrypt(context.Background(), dek)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if bytes.Equal(wrapped, dek) {
		t.Error("wrapped dek should differ from raw dek")
	}

	got, err := client.Decrypt(context.Background(), wrapped)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if !bytes.Equal(got, dek) {
		t.Errorf("round-trip failed: got %x, want %x", got, dek)
	}
}

func TestClient_SameSecretInterop(t *testing.T) {
	a, _ := New("shared")
	b, _ := New("shared")

	wrapped, err := a.Encrypt(context.Background(), []byte("dek"))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	got, err := b.Decrypt(context.Background(), wrapped)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if string(got) != "dek" {
		t.Errorf("got %q, want %q", got, "dek")
	}
}

func TestClient_DifferentSecretFails(t *testing.T) {
	a, _ := New("one")
	b, _ := New("two")

	wrapped, _ := a.Encrypt(context.Background(), []byte("dek"))
	if _, err := b.Decrypt(context.Background(), wrapped); err == nil {
		t.Error("expected error unwrapping with a different secret")
	}
}

func TestNew_EmptySecret(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("expected ErrEmptySecret, got %v", err)
	}
}

func TestNewExecutor(t *testing.T) {
	exec, err := NewExecutor("mysecret")
	if err != nil {
		t.Fatalf("NewExecutor() error: %v", err)
	}
	if exec.KekID() != KekID {
		t.Errorf("KekID() = %q, want %q", exec.KekID(), KekID)
	}
	if exec.Type() != "ENCRYPT" {
		t.Errorf("Type() = %q, want ENCRYPT", exec.Type())
	}
}
