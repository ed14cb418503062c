package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/tink-crypto/tink-go/v2/daead/subtle"
)

// Cryptor errors.
var (
	ErrInvalidKeySize   = errors.New("invalid key size")
	ErrCiphertextShort  = errors.New("ciphertext too short")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrUnknownDekFormat = errors.New("unknown dek format")
)

// DekFormat names a DEK algorithm. It is carried in encryption metadata.
type DekFormat string

const (
	// AES128GCM is randomized AES-128-GCM.
	AES128GCM DekFormat = "AES128_GCM"

	// AES256GCM is randomized AES-256-GCM.
	AES256GCM DekFormat = "AES256_GCM"

	// AES256SIV is deterministic AES-SIV with a 512-bit key.
	AES256SIV DekFormat = "AES256_SIV"
)

// dekFormatSizes maps every valid format to its raw key size.
var dekFormatSizes = map[DekFormat]int{
	AES128GCM: 16,
	AES256GCM: 32,
	AES256SIV: subtle.AESSIVKeySize,
}

// IsValidDekFormat returns true if the format is a known DEK format.
func IsValidDekFormat(f DekFormat) bool {
	_, ok := dekFormatSizes[f]
	return ok
}

// Cryptor encrypts raw bytes under a raw DEK for one DekFormat.
// Cryptors are stateless and safe for concurrent use.
type Cryptor struct {
	format  DekFormat
	keySize int
}

// NewCryptor returns the cryptor for format.
func NewCryptor(format DekFormat) (*Cryptor, error) {
	size, ok := dekFormatSizes[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDekFormat, format)
	}
	return &Cryptor{format: format, keySize: size}, nil
}

// Format returns the cryptor's DEK format.
func (c *Cryptor) Format() DekFormat {
	return c.format
}

// KeySize returns the raw DEK size in bytes.
func (c *Cryptor) KeySize() int {
	return c.keySize
}

// Deterministic reports whether equal plaintexts encrypt to equal
// ciphertexts under the same DEK.
func (c *Cryptor) Deterministic() bool {
	return c.format == AES256SIV
}

// NewDek generates a random raw DEK.
func (c *Cryptor) NewDek() ([]byte, error) {
	dek := make([]byte, c.keySize)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return nil, fmt.Errorf("generate dek: %w", err)
	}
	return dek, nil
}

// Encrypt encrypts plaintext under dek.
func (c *Cryptor) Encrypt(dek, plaintext []byte) ([]byte, error) {
	if len(dek) != c.keySize {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidKeySize, c.format, c.keySize, len(dek))
	}
	if c.Deterministic() {
		siv, err := subtle.NewAESSIV(dek)
		if err != nil {
			return nil, err
		}
		return siv.EncryptDeterministically(plaintext, nil)
	}

	gcm, err := newGCM(dek)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	// Prepend nonce to ciphertext
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext under dek.
func (c *Cryptor) Decrypt(dek, ciphertext []byte) ([]byte, error) {
	if len(dek) != c.keySize {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidKeySize, c.format, c.keySize, len(dek))
	}
	if c.Deterministic() {
		siv, err := subtle.NewAESSIV(dek)
		if err != nil {
			return nil, err
		}
		plaintext, err := siv.DecryptDeterministically(ciphertext, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
		}
		return plaintext, nil
	}

	gcm, err := newGCM(dek)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrCiphertextShort
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
