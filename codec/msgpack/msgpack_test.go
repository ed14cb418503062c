package msgpack

import (
	"testing"
)

func TestContentType(t *testing.T) {
	c := New()
	if c.ContentType() != "application/msgpack" {
		t.Errorf("ContentType() = %q, want %q", c.ContentType(), "application/msgpack")
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	c := New()

	type TestStruct struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	original := TestStruct{Name: "test", Value: 42}

	data, err := c.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var restored TestStruct
	if err := c.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if restored != original {
		t.Errorf("round-trip failed: got %+v, want %+v", restored, original)
	}
}

func TestUnmarshalGeneric(t *testing.T) {
	c := New()

	data, err := c.Marshal(map[string]any{"name": "alice", "address": map[string]any{"city": "paris"}})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var v any
	if err := c.Unmarshal(data, &v); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any, got %T", v)
	}
	addr, ok := m["address"].(map[string]any)
	if !ok || addr["city"] != "paris" {
		t.Errorf("address = %#v", m["address"])
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	c := New()

	var v struct{ Name string }
	if err := c.Unmarshal([]byte{0xc1}, &v); err == nil {
		t.Error("Unmarshal(invalid) should return error")
	}
}
