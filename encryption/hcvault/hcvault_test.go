package hcvault

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseKekID(t *testing.T) {
	tests := []struct {
		name  string
		kekID string
		want  Key
	}{
		{
			name:  "transit path",
			kekID: "hcvault://vault.internal:8200/transit/keys/orders",
			want:  Key{Address: "https://vault.internal:8200", Mount: "transit", Name: "orders"},
		},
		{
			name:  "custom mount",
			kekID: "hcvault://vault.internal/team/crypto/keys/orders",
			want:  Key{Address: "https://vault.internal", Mount: "team/crypto", Name: "orders"},
		},
		{
			name:  "bare name",
			kekID: "hcvault://vault.internal/orders",
			want:  Key{Address: "https://vault.internal", Mount: "transit", Name: "orders"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKekID(tt.kekID, false)
			if err != nil {
				t.Fatalf("ParseKekID() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseKekID() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseKekID_Invalid(t *testing.T) {
	for _, kekID := range []string{"aws-kms://key", "hcvault://", "hcvault://host/"} {
		if _, err := ParseKekID(kekID, false); !errors.Is(err, ErrInvalidKeyURI) {
			t.Errorf("ParseKekID(%q) expected ErrInvalidKeyURI, got %v", kekID, err)
		}
	}
}

func TestNew_MissingToken(t *testing.T) {
	if _, err := New("hcvault://vault/transit/keys/k", Config{}); !errors.Is(err, ErrMissingToken) {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}
}

// transitServer emulates the Transit encrypt and decrypt endpoints with a
// reversible "vault:v1:" prefix.
func transitServer(t *testing.T, paths *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*paths = append(*paths, r.URL.Path)
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data := map[string]string{}
		switch {
		case strings.HasPrefix(r.URL.Path, "/v1/transit/encrypt/"):
			data["ciphertext"] = "vault:v1:" + body["plaintext"]
		case strings.HasPrefix(r.URL.Path, "/v1/transit/decrypt/"):
			data["plaintext"] = strings.TrimPrefix(body["ciphertext"], "vault:v1:")
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
}

func TestClient_RoundTrip(t *testing.T) {
	var paths []string
	srv := transitServer(t, &paths)
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	client, err := New("hcvault://"+host+"/transit/keys/orders", Config{Token: "root", Insecure: true})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	wrapped, err := client.Encrypt(context.Background(), []byte("dek"))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if !strings.HasPrefix(string(wrapped), "vault:v1:") {
		t.Errorf("wrapped = %q, want vault:v1: prefix", wrapped)
	}

	got, err := client.Decrypt(context.Background(), wrapped)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if string(got) != "dek" {
		t.Errorf("got %q, want %q", got, "dek")
	}

	want := []string{"/v1/transit/encrypt/orders", "/v1/transit/decrypt/orders"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestClient_Forbidden(t *testing.T) {
	var paths []string
	srv := transitServer(t, &paths)
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	client, err := New("hcvault://"+host+"/transit/keys/orders", Config{Token: "wrong", Insecure: true})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := client.Encrypt(context.Background(), []byte("dek")); err == nil {
		t.Error("expected error for rejected token")
	}
}
