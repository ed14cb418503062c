// Package hcvault wraps DEKs with HashiCorp Vault Transit keys.
//
// KEK ids take the form "hcvault://<host>[:port]/<mount>/keys/<name>", for
// example "hcvault://vault.internal:8200/transit/keys/orders". The client
// talks to the server over https unless Config.Insecure is set.
package hcvault

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	vault "github.com/hashicorp/vault/api"

	"github.com/zoobzio/serde/encryption"
)

// Errors returned by the Vault client.
var (
	ErrInvalidKeyURI = errors.New("invalid hcvault key uri")
	ErrInvalidReply  = errors.New("invalid vault transit reply")
	ErrMissingToken  = errors.New("vault token is empty")
)

const defaultTransitMount = "transit"

// Config holds connection settings for a Vault server.
type Config struct {
	Token     string
	Namespace string
	// Insecure selects http instead of https for the server address.
	Insecure bool
}

// Key identifies a Transit key.
type Key struct {
	Address string
	Mount   string
	Name    string
}

// ParseKekID splits an hcvault:// KEK id into the server address, the
// Transit mount and the key name.
func ParseKekID(kekID string, insecure bool) (Key, error) {
	rest, ok := strings.CutPrefix(kekID, encryption.PrefixVault)
	if !ok || rest == "" {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKeyURI, kekID)
	}
	scheme := "https"
	if insecure {
		scheme = "http"
	}
	u, err := url.Parse(scheme + "://" + rest)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKeyURI, err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	name := segments[len(segments)-1]
	if u.Host == "" || name == "" {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKeyURI, kekID)
	}
	mount := defaultTransitMount
	if len(segments) >= 3 && segments[len(segments)-2] == "keys" {
		mount = strings.Join(segments[:len(segments)-2], "/")
	}

	return Key{
		Address: u.Scheme + "://" + u.Host,
		Mount:   mount,
		Name:    name,
	}, nil
}

// Client wraps DEKs with one Transit key.
type Client struct {
	logical *vault.Logical
	key     Key
}

// New creates a client for kekID.
func New(kekID string, cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	key, err := ParseKekID(kekID, cfg.Insecure)
	if err != nil {
		return nil, err
	}

	vc := vault.DefaultConfig()
	vc.Address = key.Address
	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	return &Client{logical: client.Logical(), key: key}, nil
}

// Key returns the Transit key the client wraps with.
func (c *Client) Key() Key {
	return c.key
}

// Encrypt wraps plaintext. The returned bytes are Vault's ciphertext
// string, e.g. "vault:v1:...".
func (c *Client) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	secret, err := c.logical.WriteWithContext(ctx, c.path("encrypt"), map[string]any{
		"plaintext": base64.StdEncoding.EncodeToString(plaintext),
	})
	if err != nil {
		return nil, fmt.Errorf("vault transit encrypt: %w", err)
	}
	ciphertext, err := replyField(secret, "ciphertext")
	if err != nil {
		return nil, err
	}
	return []byte(ciphertext), nil
}

// Decrypt unwraps ciphertext.
func (c *Client) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	secret, err := c.logical.WriteWithContext(ctx, c.path("decrypt"), map[string]any{
		"ciphertext": string(ciphertext),
	})
	if err != nil {
		return nil, fmt.Errorf("vault transit decrypt: %w", err)
	}
	encoded, err := replyField(secret, "plaintext")
	if err != nil {
		return nil, err
	}
	plaintext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReply, err)
	}
	return plaintext, nil
}

func (c *Client) path(op string) string {
	return c.key.Mount + "/" + op + "/" + c.key.Name
}

func replyField(secret *vault.Secret, name string) (string, error) {
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: empty response", ErrInvalidReply)
	}
	v, ok := secret.Data[name].(string)
	if !ok {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidReply, name)
	}
	return v, nil
}

// NewExecutor returns a field encryption executor wrapping DEKs with the
// Transit key at keyPath ("<host>/<mount>/keys/<name>").
func NewExecutor(keyPath string, cfg Config, opts ...encryption.Option) (*encryption.FieldEncryptionExecutor, error) {
	kekID := encryption.PrefixVault + keyPath
	client, err := New(kekID, cfg)
	if err != nil {
		return nil, err
	}
	reg := encryption.NewKmsRegistry()
	if err := reg.Register(kekID, client); err != nil {
		return nil, err
	}
	return encryption.NewFieldEncryptionExecutor(kekID, reg, opts...)
}
