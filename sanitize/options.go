package sanitize

import (
	"context"

	"github.com/zoobzio/capitan"
	"golang.org/x/crypto/bcrypt"

	"github.com/zoobzio/serde/metrics"
)

// Option configures a sanitize executor.
type Option func(*options)

type options struct {
	argon2     Argon2Params
	bcryptCost int
	metrics    *metrics.Registry
}

func newOptions(opts []Option) options {
	o := options{
		argon2:     DefaultArgon2Params(),
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithArgon2Params sets the parameters used by hash.algorithm=argon2.
func WithArgon2Params(p Argon2Params) Option {
	return func(o *options) {
		o.argon2 = p
	}
}

// WithBcryptCost sets the cost used by hash.algorithm=bcrypt.
func WithBcryptCost(cost int) Option {
	return func(o *options) {
		o.bcryptCost = cost
	}
}

// WithMetrics counts rewritten fields in m.
func WithMetrics(m *metrics.Registry) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// SignalExecutorCreated is emitted when a sanitize executor is built.
var SignalExecutorCreated = capitan.NewSignal("serde.sanitize.executor.created", "Sanitize executor instantiated")

// KeyRuleType carries the executor's rule type.
var KeyRuleType = capitan.NewStringKey("rule_type")

func emitExecutorCreated(ctx context.Context, ruleType string) {
	capitan.Emit(ctx, SignalExecutorCreated, KeyRuleType.Field(ruleType))
}
