package serde

import (
	"context"
	"sort"
	"sync"
)

// RuleExecutor runs one rule type against a message.
type RuleExecutor interface {
	// Type returns the rule type this executor handles (e.g. "ENCRYPT").
	Type() string

	// Transform returns the rewritten message. Returning nil is a
	// validation failure.
	Transform(ctx context.Context, rc *RuleContext, msg any) (any, error)
}

// FieldExecutor is a RuleExecutor that works one leaf at a time.
// Its Transform is normally rc.TransformFields(ctx, transform, msg).
type FieldExecutor interface {
	RuleExecutor

	// NewTransform returns the per-field transform for one rule application.
	NewTransform(rc *RuleContext) (FieldTransform, error)
}

// TransformFields is the Transform implementation shared by field executors.
func TransformFields(ctx context.Context, exec FieldExecutor, rc *RuleContext, msg any) (any, error) {
	transform, err := exec.NewTransform(rc)
	if err != nil {
		return nil, err
	}
	return rc.TransformFields(ctx, transform, msg)
}

// Registry maps rule types to executors. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]RuleExecutor
}

// NewRegistry creates a registry holding executors.
func NewRegistry(executors ...RuleExecutor) *Registry {
	r := &Registry{executors: make(map[string]RuleExecutor)}
	for _, e := range executors {
		r.executors[e.Type()] = e
	}
	return r
}

// Register adds or replaces the executor for its type.
// Returns the registry for chaining.
func (r *Registry) Register(exec RuleExecutor) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[exec.Type()] = exec
	return r
}

// Get returns the executor registered for ruleType.
func (r *Registry) Get(ruleType string) (RuleExecutor, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[ruleType]
	return exec, ok
}

// Types returns the registered rule types, sorted. The pipeline reports
// them when a rule names a type with no executor.
func (r *Registry) Types() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Reset removes every executor.
// This is primarily useful for test isolation.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors = make(map[string]RuleExecutor)
}
