package serde

import (
	"context"
	"errors"
	"time"

	"github.com/zoobzio/serde/metrics"
)

// Request describes one message transformation.
type Request struct {
	IsKey   bool
	Subject string
	Topic   string
	Headers *Headers
	Mode    RuleMode
	Source  *Schema
	Target  *Schema
	Message any
}

// Pipeline selects the rules of a schema that apply to a mode and runs
// them in declaration order.
//
// A Pipeline holds no per-message state and is safe for concurrent use
// provided schemas are not mutated and executors are reentrant.
type Pipeline struct {
	executors *Registry
	metrics   *metrics.Registry
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithMetrics records rule outcomes in m.
func WithMetrics(m *metrics.Registry) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// NewPipeline creates a pipeline over executors.
func NewPipeline(executors *Registry, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{executors: executors}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Executors returns the pipeline's executor registry.
func (p *Pipeline) Executors() *Registry {
	return p.executors
}

// Execute applies the rules selected for req.Mode to req.Message.
//
// UPGRADE runs the target's migration rules, DOWNGRADE the source's
// migration rules, and every other mode the target's domain rules.
// transformer binds field executors to the walker for the message's schema
// format and may be nil when only message-level executors are used.
//
// When a rule's type has no registered executor the pipeline stops and
// returns the message as transformed so far, without error.
func (p *Pipeline) Execute(ctx context.Context, req Request, transformer FieldTransformer) (any, error) {
	msg := req.Message
	if msg == nil || req.Target == nil {
		return msg, nil
	}

	var rules []Rule
	switch req.Mode {
	case ModeUpgrade:
		rules = req.Target.migrationRules()
	case ModeDowngrade:
		rules = req.Source.migrationRules()
	default:
		rules = req.Target.domainRules()
	}

	for _, rule := range rules {
		if rule.Disabled || !rule.Mode.Applies(req.Mode) {
			continue
		}

		exec, ok := p.executors.Get(rule.Type)
		if !ok {
			emitExecutorMissing(ctx, rule, req.Mode, p.executors.Types())
			p.metrics.RecordRule(rule.Type, string(req.Mode), metrics.OutcomeMissing)
			return msg, nil
		}

		out, err := p.apply(ctx, exec, NewRuleContext(req, rule, transformer), msg)
		if err != nil {
			return nil, err
		}
		msg = out
	}
	return msg, nil
}

// apply runs a single rule.
func (p *Pipeline) apply(ctx context.Context, exec RuleExecutor, rc *RuleContext, msg any) (out any, retErr error) {
	start := time.Now()
	emitRuleStart(ctx, rc)
	defer func() {
		emitRuleComplete(ctx, rc, time.Since(start), retErr)
		outcome := metrics.OutcomeSuccess
		if retErr != nil {
			outcome = metrics.OutcomeError
		}
		p.metrics.RecordRule(rc.Rule.Type, string(rc.Mode), outcome)
	}()

	out, err := exec.Transform(ctx, rc, msg)
	if err != nil {
		var ruleErr *RuleError
		if errors.As(err, &ruleErr) {
			return nil, err
		}
		return nil, newRuleError(ErrRuleFailed, rc.Rule, err)
	}
	if out == nil {
		return nil, newRuleError(ErrValidationFailed, rc.Rule, nil)
	}
	if rc.Depth() != 0 {
		return nil, newRuleError(ErrUnbalancedFields, rc.Rule, nil)
	}
	return out, nil
}
