// Package localkms provides an in-process key management client keyed by a
// shared secret. It is intended for development and tests.
package localkms

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/zoobzio/serde/encryption"
)

// KekID is the KEK id served by the local client.
const KekID = encryption.PrefixLocal

// ErrEmptySecret indicates the client was created without a secret.
var ErrEmptySecret = errors.New("local kms secret is empty")

// Client wraps DEKs with AES-SIV under a key derived from a secret with
// HKDF-SHA256.
type Client struct {
	cryptor *encryption.Cryptor
	key     []byte
}

// New derives the wrapping key from secret.
func New(secret string) (*Client, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	cryptor, err := encryption.NewCryptor(encryption.AES256SIV)
	if err != nil {
		return nil, err
	}
	key := make([]byte, cryptor.KeySize())
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, nil), key); err != nil {
		return nil, fmt.Errorf("derive local kms key: %w", err)
	}
	return &Client{cryptor: cryptor, key: key}, nil
}

// Encrypt wraps plaintext.
func (c *Client) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	return c.cryptor.Encrypt(c.key, plaintext)
}

// Decrypt unwraps ciphertext.
func (c *Client) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	return c.cryptor.Decrypt(c.key, ciphertext)
}

// Register adds a client for secret to kms under KekID.
func Register(kms *encryption.KmsRegistry, secret string) error {
	client, err := New(secret)
	if err != nil {
		return err
	}
	return kms.Register(KekID, client)
}

// NewExecutor returns a field encryption executor wrapping DEKs with a
// local client for secret.
func NewExecutor(secret string, opts ...encryption.Option) (*encryption.FieldEncryptionExecutor, error) {
	kms := encryption.NewKmsRegistry()
	if err := Register(kms, secret); err != nil {
		return nil, err
	}
	return encryption.NewFieldEncryptionExecutor(KekID, kms, opts...)
}
