package encryption

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zoobzio/serde"
	"github.com/zoobzio/serde/metrics"
)

func newTestCache(t *testing.T, m *metrics.Registry) *DekCache {
	t.Helper()
	c, err := NewDekCache(16, time.Minute, m)
	if err != nil {
		t.Fatalf("NewDekCache() error: %v", err)
	}
	return c
}

func TestNewDekCache_Invalid(t *testing.T) {
	if _, err := NewDekCache(0, time.Minute, nil); err == nil {
		t.Error("zero size should be rejected")
	}
	if _, err := NewDekCache(1, 0, nil); err == nil {
		t.Error("zero expiry should be rejected")
	}
}

func TestDekCache_ForEncryptSharesCreate(t *testing.T) {
	m := metrics.NewRegistry()
	c := newTestCache(t, m)
	var calls atomic.Int32
	create := func() (serde.Dek, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return serde.Dek{Raw: []byte("raw"), Wrapped: []byte("wrapped")}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.ForEncrypt("local-kms://", AES256GCM, create); err != nil {
				t.Errorf("ForEncrypt() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("create called %d times, want 1", calls.Load())
	}
	if _, err := c.ForEncrypt("local-kms://", AES256GCM, create); err != nil || calls.Load() != 1 {
		t.Errorf("cached lookup should not create: %v, %d calls", err, calls.Load())
	}
	if n := testutil.ToFloat64(m.DekCacheLookups.WithLabelValues(directionEncrypt, metrics.CacheHit)); n < 1 {
		t.Errorf("hit count = %v, want at least 1", n)
	}
}

func TestDekCache_ForEncryptKeyedByKekAndFormat(t *testing.T) {
	c := newTestCache(t, nil)
	var calls int
	create := func() (serde.Dek, error) {
		calls++
		return serde.Dek{Raw: []byte{byte(calls)}}, nil
	}

	a, _ := c.ForEncrypt("local-kms://", AES256GCM, create)
	b, _ := c.ForEncrypt("hcvault://vault/transit/keys/a", AES256GCM, create)
	d, _ := c.ForEncrypt("local-kms://", AES256SIV, create)

	if calls != 3 || a.Raw[0] == b.Raw[0] || a.Raw[0] == d.Raw[0] {
		t.Errorf("each kek and format should get its own DEK, %d creates", calls)
	}
	if enc, _ := c.Len(); enc != 3 {
		t.Errorf("encrypt entries = %d, want 3", enc)
	}
}

func TestDekCache_ErrorsNotCached(t *testing.T) {
	c := newTestCache(t, nil)
	boom := errors.New("kms down")
	var calls int

	for i := 0; i < 2; i++ {
		_, err := c.ForDecrypt([]byte("wrapped"), func() ([]byte, error) {
			calls++
			return nil, boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("ForDecrypt() error = %v, want boom", err)
		}
	}
	if calls != 2 {
		t.Errorf("unwrap called %d times, want 2", calls)
	}
}

func TestDekCache_ForDecrypt(t *testing.T) {
	c := newTestCache(t, nil)
	var calls int
	unwrap := func() ([]byte, error) {
		calls++
		return []byte("raw"), nil
	}

	dek, err := c.ForDecrypt([]byte("wrapped"), unwrap)
	if err != nil {
		t.Fatalf("ForDecrypt() error: %v", err)
	}
	if string(dek.Raw) != "raw" || string(dek.Wrapped) != "wrapped" {
		t.Errorf("ForDecrypt() = %+v", dek)
	}
	_, _ = c.ForDecrypt([]byte("wrapped"), unwrap)
	if calls != 1 {
		t.Errorf("unwrap called %d times, want 1", calls)
	}

	c.Purge()
	if enc, dec := c.Len(); enc != 0 || dec != 0 {
		t.Errorf("Len() after Purge() = %d, %d", enc, dec)
	}
}

func TestDekCache_PeekEncrypt(t *testing.T) {
	c := newTestCache(t, nil)
	if _, ok := c.PeekEncrypt("local-kms://", AES256GCM); ok {
		t.Fatal("empty cache should miss")
	}

	want := serde.Dek{Raw: []byte("raw"), Wrapped: []byte("wrapped")}
	if _, err := c.ForEncrypt("local-kms://", AES256GCM, func() (serde.Dek, error) { return want, nil }); err != nil {
		t.Fatalf("ForEncrypt() error: %v", err)
	}
	got, ok := c.PeekEncrypt("local-kms://", AES256GCM)
	if !ok || string(got.Wrapped) != "wrapped" {
		t.Errorf("PeekEncrypt() = %+v, %v", got, ok)
	}
	if _, ok := c.PeekEncrypt("local-kms://", AES256SIV); ok {
		t.Error("other format should miss")
	}
}
