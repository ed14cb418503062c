package encryption

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zoobzio/serde"
)

// KEK id prefixes selecting a key management backend.
const (
	PrefixLocal = "local-kms://"
	PrefixAWS   = "aws-kms://"
	PrefixAzure = "azure-kms://"
	PrefixGCP   = "gcp-kms://"
	PrefixVault = "hcvault://"
)

// ErrUnsupportedKek indicates a KEK id has no known backend prefix.
var ErrUnsupportedKek = errors.New("unsupported kek prefix")

var kekPrefixes = []string{PrefixLocal, PrefixAWS, PrefixAzure, PrefixGCP, PrefixVault}

// KmsClient wraps and unwraps DEKs with a KEK held by a key management
// service.
type KmsClient interface {
	// Encrypt wraps plaintext with the KEK.
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)

	// Decrypt unwraps ciphertext produced by Encrypt.
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// KekPrefix returns the backend prefix of kekID.
func KekPrefix(kekID string) (string, bool) {
	for _, p := range kekPrefixes {
		if strings.HasPrefix(kekID, p) {
			return p, true
		}
	}
	return "", false
}

// KmsRegistry maps KEK ids to clients. It is owned by the executors built
// on it and safe for concurrent use.
type KmsRegistry struct {
	mu      sync.RWMutex
	clients map[string]KmsClient
}

// NewKmsRegistry creates an empty registry.
func NewKmsRegistry() *KmsRegistry {
	return &KmsRegistry{clients: make(map[string]KmsClient)}
}

// Register adds or replaces the client for kekID. kekID must carry a known
// backend prefix.
func (r *KmsRegistry) Register(kekID string, client KmsClient) error {
	if _, ok := KekPrefix(kekID); !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedKek, kekID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[kekID] = client
	return nil
}

// Get returns the client for kekID, or serde.ErrUnknownKek.
func (r *KmsRegistry) Get(kekID string) (KmsClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[kekID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", serde.ErrUnknownKek, kekID)
	}
	return client, nil
}

// KekIDs returns the registered KEK ids, sorted.
func (r *KmsRegistry) KekIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
