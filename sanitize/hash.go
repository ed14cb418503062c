package sanitize

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// HashAlgorithm names a hashing scheme selectable through ParamHashAlgorithm.
type HashAlgorithm string

// Supported hash algorithms.
const (
	HashSHA256 HashAlgorithm = "sha256"
	HashSHA512 HashAlgorithm = "sha512"
	HashArgon2 HashAlgorithm = "argon2"
	HashBcrypt HashAlgorithm = "bcrypt"
)

// Hasher hashes a field value one way.
//
// sha256 and sha512 are deterministic and return lowercase hex, usable as
// join keys. argon2 and bcrypt salt every call and return a self-describing
// encoded hash.
type Hasher interface {
	Hash(plaintext []byte) (string, error)
}

// Argon2Params configures Argon2id hashing.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// DefaultArgon2Params returns the OWASP baseline for Argon2id.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
		KeyLen:  32,
		SaltLen: 16,
	}
}

type argon2Hasher struct {
	params Argon2Params
}

// NewArgon2Hasher returns an Argon2id hasher. Output is the PHC string
// form: $argon2id$v=19$m=...,t=...,p=...$salt$hash.
func NewArgon2Hasher(params Argon2Params) Hasher {
	return argon2Hasher{params: params}
}

func (h argon2Hasher) Hash(plaintext []byte) (string, error) {
	p := h.params
	salt := make([]byte, p.SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("argon2 salt: %w", err)
	}
	sum := argon2.IDKey(plaintext, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	enc := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		enc.EncodeToString(salt), enc.EncodeToString(sum)), nil
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a bcrypt hasher. cost is clamped to bcrypt's
// valid range.
func NewBcryptHasher(cost int) Hasher {
	cost = max(bcrypt.MinCost, min(cost, bcrypt.MaxCost))
	return bcryptHasher{cost: cost}
}

func (h bcryptHasher) Hash(plaintext []byte) (string, error) {
	out, err := bcrypt.GenerateFromPassword(plaintext, h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(out), nil
}

type digestHasher func([]byte) []byte

func (h digestHasher) Hash(plaintext []byte) (string, error) {
	return hex.EncodeToString(h(plaintext)), nil
}

// NewSHA256Hasher returns a hasher producing 64 hex characters.
func NewSHA256Hasher() Hasher {
	return digestHasher(func(b []byte) []byte {
		sum := sha256.Sum256(b)
		return sum[:]
	})
}

// NewSHA512Hasher returns a hasher producing 128 hex characters.
func NewSHA512Hasher() Hasher {
	return digestHasher(func(b []byte) []byte {
		sum := sha512.Sum512(b)
		return sum[:]
	})
}

// hashers builds the algorithm table for one executor.
func hashers(o options) map[HashAlgorithm]Hasher {
	return map[HashAlgorithm]Hasher{
		HashSHA256: NewSHA256Hasher(),
		HashSHA512: NewSHA512Hasher(),
		HashArgon2: NewArgon2Hasher(o.argon2),
		HashBcrypt: NewBcryptHasher(o.bcryptCost),
	}
}
