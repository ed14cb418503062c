package encryption

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/zoobzio/serde"
	"github.com/zoobzio/serde/metrics"
)

// Cache defaults.
const (
	DefaultCacheSize   = 1000
	DefaultCacheExpiry = 300 * time.Second
)

// Metric directions.
const (
	directionEncrypt = "encrypt"
	directionDecrypt = "decrypt"
)

// DekCache holds DEKs shared across messages.
//
// The encrypt cache is keyed by KEK id and DEK format and expires entries,
// so each KEK keeps one active DEK per format until it ages out or is
// evicted. The decrypt cache is keyed by the wrapped DEK bytes and is
// bounded by size only. Concurrent misses for the same key share a single
// key management call.
type DekCache struct {
	encrypt *expirable.LRU[string, serde.Dek]
	decrypt *lru.Cache[string, serde.Dek]
	flight  singleflight.Group
	metrics *metrics.Registry
}

// NewDekCache creates caches holding at most size entries each. Encrypt
// entries expire after expiry.
func NewDekCache(size int, expiry time.Duration, m *metrics.Registry) (*DekCache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("dek cache size must be positive, got %d", size)
	}
	if expiry <= 0 {
		return nil, fmt.Errorf("dek cache expiry must be positive, got %s", expiry)
	}
	decrypt, err := lru.New[string, serde.Dek](size)
	if err != nil {
		return nil, err
	}
	return &DekCache{
		encrypt: expirable.NewLRU[string, serde.Dek](size, nil, expiry),
		decrypt: decrypt,
		metrics: m,
	}, nil
}

// ForEncrypt returns the active DEK for kekID and format, calling create on
// a miss.
func (c *DekCache) ForEncrypt(kekID string, format DekFormat, create func() (serde.Dek, error)) (serde.Dek, error) {
	key := kekID + "\x00" + string(format)
	if dek, ok := c.encrypt.Get(key); ok {
		c.metrics.RecordDekLookup(directionEncrypt, metrics.CacheHit)
		return dek, nil
	}
	c.metrics.RecordDekLookup(directionEncrypt, metrics.CacheMiss)

	v, err, _ := c.flight.Do("e\x00"+key, func() (any, error) {
		if dek, ok := c.encrypt.Get(key); ok {
			return dek, nil
		}
		dek, err := create()
		if err != nil {
			return nil, err
		}
		c.encrypt.Add(key, dek)
		return dek, nil
	})
	if err != nil {
		return serde.Dek{}, err
	}
	return v.(serde.Dek), nil
}

// PeekEncrypt returns the active DEK for kekID and format without creating
// one or touching its recency.
func (c *DekCache) PeekEncrypt(kekID string, format DekFormat) (serde.Dek, bool) {
	return c.encrypt.Peek(kekID + "\x00" + string(format))
}

// ForDecrypt returns the raw DEK for wrapped, calling unwrap on a miss.
func (c *DekCache) ForDecrypt(wrapped []byte, unwrap func() ([]byte, error)) (serde.Dek, error) {
	key := string(wrapped)
	if dek, ok := c.decrypt.Get(key); ok {
		c.metrics.RecordDekLookup(directionDecrypt, metrics.CacheHit)
		return dek, nil
	}
	c.metrics.RecordDekLookup(directionDecrypt, metrics.CacheMiss)

	v, err, _ := c.flight.Do("d\x00"+key, func() (any, error) {
		if dek, ok := c.decrypt.Get(key); ok {
			return dek, nil
		}
		raw, err := unwrap()
		if err != nil {
			return nil, err
		}
		dek := serde.Dek{Raw: raw, Wrapped: []byte(key)}
		c.decrypt.Add(key, dek)
		return dek, nil
	})
	if err != nil {
		return serde.Dek{}, err
	}
	return v.(serde.Dek), nil
}

// Len returns the number of cached encrypt and decrypt entries.
func (c *DekCache) Len() (encrypt, decrypt int) {
	return c.encrypt.Len(), c.decrypt.Len()
}

// Purge empties both caches.
func (c *DekCache) Purge() {
	c.encrypt.Purge()
	c.decrypt.Purge()
}
