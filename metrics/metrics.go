// Package metrics exposes Prometheus counters for rule execution, field
// transforms, key management calls and DEK cache lookups.
//
// All Record methods are safe to call on a nil *Registry, so components take
// an optional registry without guarding every call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Rule outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeMissing = "executor_missing"
)

// Cache lookup results.
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheMessage = "message"
)

// Registry holds the serde metrics.
type Registry struct {
	registry *prometheus.Registry

	RulesExecuted     *prometheus.CounterVec
	FieldsTransformed *prometheus.CounterVec
	KmsCalls          *prometheus.CounterVec
	KmsDuration       *prometheus.HistogramVec
	DekCacheLookups   *prometheus.CounterVec
}

// NewRegistry creates a registry with every metric registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		RulesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "serde_rules_executed_total",
				Help: "Rules executed by type, mode and outcome",
			},
			[]string{"type", "mode", "outcome"},
		),
		FieldsTransformed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "serde_fields_transformed_total",
				Help: "Leaf fields rewritten by rule type and operation",
			},
			[]string{"type", "operation"},
		),
		KmsCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "serde_kms_calls_total",
				Help: "Key management calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		KmsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "serde_kms_call_duration_seconds",
				Help:    "Key management call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		DekCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "serde_dek_cache_lookups_total",
				Help: "DEK lookups by direction and result",
			},
			[]string{"direction", "result"},
		),
	}

	r.registry.MustRegister(
		r.RulesExecuted,
		r.FieldsTransformed,
		r.KmsCalls,
		r.KmsDuration,
		r.DekCacheLookups,
	)
	return r
}

// Gatherer returns the underlying Prometheus gatherer for exposition.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordRule counts one rule execution.
func (r *Registry) RecordRule(ruleType, mode, outcome string) {
	if r == nil {
		return
	}
	r.RulesExecuted.WithLabelValues(ruleType, mode, outcome).Inc()
}

// RecordField counts one rewritten leaf.
func (r *Registry) RecordField(ruleType, operation string) {
	if r == nil {
		return
	}
	r.FieldsTransformed.WithLabelValues(ruleType, operation).Inc()
}

// RecordKmsCall counts one key management call and its latency.
func (r *Registry) RecordKmsCall(operation string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	r.KmsCalls.WithLabelValues(operation, outcome).Inc()
	r.KmsDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDekLookup counts one DEK lookup.
func (r *Registry) RecordDekLookup(direction, result string) {
	if r == nil {
		return
	}
	r.DekCacheLookups.WithLabelValues(direction, result).Inc()
}
