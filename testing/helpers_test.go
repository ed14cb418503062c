package testing

import (
	"context"
	"testing"
)

func TestRecordingKms_Counts(t *testing.T) {
	kms := NewRecordingKms(t)

	wrapped, err := kms.Encrypt(context.Background(), []byte("dek"))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	plain, err := kms.Decrypt(context.Background(), wrapped)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}

	if string(plain) != "dek" {
		t.Errorf("round-trip failed: got %q", plain)
	}
	if kms.Encrypts() != 1 || kms.Decrypts() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", kms.Encrypts(), kms.Decrypts())
	}
}

func TestPerson_Clone(t *testing.T) {
	notes := "n"
	original := Person{Name: "Alice", SSN: "123", Notes: &notes, Picture: []byte{1}}
	cloned := original.Clone()

	*cloned.Notes = "changed"
	cloned.Picture[0] = 9

	if *original.Notes != "n" || original.Picture[0] != 1 {
		t.Error("Clone() should not share references")
	}
}

func TestPersonDescriptor(t *testing.T) {
	md := PersonDescriptor(t)
	if md.FullName() != "example.Person" {
		t.Errorf("FullName() = %q, want example.Person", md.FullName())
	}
	if !md.Fields().ByName("labels").IsMap() {
		t.Error("labels should be a map field")
	}

	p := NewPerson(md, "Alice", "123", "a@example.com")
	if p.Get(md.Fields().ByName("emails")).List().Len() != 1 {
		t.Error("NewPerson() should set emails")
	}
}

func TestNewEnv(t *testing.T) {
	env := NewEnv(t)
	if _, ok := env.Executors.Get("ENCRYPT"); !ok {
		t.Error("ENCRYPT executor should be registered")
	}
}
