package encryption

import (
	"time"

	"github.com/zoobzio/serde/metrics"
)

// Option configures a FieldEncryptionExecutor.
type Option func(*options)

type options struct {
	keyDeterministic   bool
	valueDeterministic bool
	keyDekFormat       DekFormat
	valueDekFormat     DekFormat
	cacheSize          int
	cacheExpiry        time.Duration
	metrics            *metrics.Registry
}

func defaultOptions() options {
	return options{
		keyDeterministic:   true,
		valueDeterministic: false,
		cacheSize:          DefaultCacheSize,
		cacheExpiry:        DefaultCacheExpiry,
	}
}

// keyFormat returns the DEK format for message keys.
func (o options) keyFormat() DekFormat {
	return pickFormat(o.keyDekFormat, o.keyDeterministic)
}

// valueFormat returns the DEK format for message values.
func (o options) valueFormat() DekFormat {
	return pickFormat(o.valueDekFormat, o.valueDeterministic)
}

func pickFormat(explicit DekFormat, deterministic bool) DekFormat {
	if explicit != "" {
		return explicit
	}
	if deterministic {
		return AES256SIV
	}
	return AES256GCM
}

// WithKeyDeterministic selects deterministic (AES-SIV) or randomized
// (AES-GCM) encryption for message keys. Default is deterministic.
func WithKeyDeterministic(deterministic bool) Option {
	return func(o *options) {
		o.keyDeterministic = deterministic
	}
}

// WithValueDeterministic selects deterministic (AES-SIV) or randomized
// (AES-GCM) encryption for message values. Default is randomized.
func WithValueDeterministic(deterministic bool) Option {
	return func(o *options) {
		o.valueDeterministic = deterministic
	}
}

// WithKeyDekFormat sets the DEK format for message keys explicitly.
func WithKeyDekFormat(f DekFormat) Option {
	return func(o *options) {
		o.keyDekFormat = f
	}
}

// WithValueDekFormat sets the DEK format for message values explicitly.
func WithValueDekFormat(f DekFormat) Option {
	return func(o *options) {
		o.valueDekFormat = f
	}
}

// WithCacheSize bounds each DEK cache to size entries. Default 1000.
func WithCacheSize(size int) Option {
	return func(o *options) {
		o.cacheSize = size
	}
}

// WithCacheExpiry sets how long encrypt DEKs stay active. Default 300s.
func WithCacheExpiry(d time.Duration) Option {
	return func(o *options) {
		o.cacheExpiry = d
	}
}

// WithMetrics records field, KMS and cache metrics in m.
func WithMetrics(m *metrics.Registry) Option {
	return func(o *options) {
		o.metrics = m
	}
}
