package serde

import (
	"context"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for pipeline and serializer events.
var (
	SignalRuleStart         = capitan.NewSignal("serde.rule.start", "Rule execution beginning")
	SignalRuleComplete      = capitan.NewSignal("serde.rule.complete", "Rule execution finished")
	SignalExecutorMissing   = capitan.NewSignal("serde.rule.executor_missing", "No executor registered for rule type, pipeline stopped")
	SignalSerializeStart    = capitan.NewSignal("serde.serialize.start", "Serialize operation beginning")
	SignalSerializeComplete = capitan.NewSignal("serde.serialize.complete", "Serialize operation finished")
	SignalDeserializeStart  = capitan.NewSignal("serde.deserialize.start", "Deserialize operation beginning")
	SignalDeserializeDone   = capitan.NewSignal("serde.deserialize.complete", "Deserialize operation finished")
)

// Keys for typed event data.
var (
	KeyRuleName   = capitan.NewStringKey("rule_name")
	KeyRuleType   = capitan.NewStringKey("rule_type")
	KeyMode       = capitan.NewStringKey("mode")
	KeySubject    = capitan.NewStringKey("subject")
	KeyTopic      = capitan.NewStringKey("topic")
	KeyFormat     = capitan.NewStringKey("format")
	KeyContextID  = capitan.NewStringKey("context_id")
	KeyRegistered = capitan.NewStringKey("registered_types")
	KeySchemaID   = capitan.NewIntKey("schema_id")
	KeySize       = capitan.NewIntKey("size")
	KeyDuration   = capitan.NewDurationKey("duration")
	KeyError      = capitan.NewErrorKey("error")
)

// emitRuleStart emits an event when a rule begins.
func emitRuleStart(ctx context.Context, rc *RuleContext) {
	capitan.Emit(ctx, SignalRuleStart,
		KeyRuleName.Field(rc.Rule.Name),
		KeyRuleType.Field(rc.Rule.Type),
		KeyMode.Field(string(rc.Mode)),
		KeySubject.Field(rc.Subject),
		KeyContextID.Field(rc.ID),
	)
}

// emitRuleComplete emits an event when a rule finishes.
func emitRuleComplete(ctx context.Context, rc *RuleContext, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyRuleName.Field(rc.Rule.Name),
		KeyRuleType.Field(rc.Rule.Type),
		KeyMode.Field(string(rc.Mode)),
		KeySubject.Field(rc.Subject),
		KeyContextID.Field(rc.ID),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalRuleComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalRuleComplete, fields...)
	}
}

// emitExecutorMissing emits an event when the pipeline stops on an
// unregistered rule type.
func emitExecutorMissing(ctx context.Context, rule Rule, mode RuleMode, registered []string) {
	capitan.Emit(ctx, SignalExecutorMissing,
		KeyRuleName.Field(rule.Name),
		KeyRuleType.Field(rule.Type),
		KeyMode.Field(string(mode)),
		KeyRegistered.Field(strings.Join(registered, ",")),
	)
}

// emitSerializeStart emits an event when serialize begins.
func emitSerializeStart(ctx context.Context, format, topic string) {
	capitan.Emit(ctx, SignalSerializeStart,
		KeyFormat.Field(format),
		KeyTopic.Field(topic),
	)
}

// emitSerializeComplete emits an event when serialize finishes.
func emitSerializeComplete(ctx context.Context, format, topic string, schemaID, size int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyFormat.Field(format),
		KeyTopic.Field(topic),
		KeySchemaID.Field(schemaID),
		KeySize.Field(size),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalSerializeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalSerializeComplete, fields...)
	}
}

// emitDeserializeStart emits an event when deserialize begins.
func emitDeserializeStart(ctx context.Context, format, topic string, size int) {
	capitan.Emit(ctx, SignalDeserializeStart,
		KeyFormat.Field(format),
		KeyTopic.Field(topic),
		KeySize.Field(size),
	)
}

// emitDeserializeComplete emits an event when deserialize finishes.
func emitDeserializeComplete(ctx context.Context, format, topic string, schemaID int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyFormat.Field(format),
		KeyTopic.Field(topic),
		KeySchemaID.Field(schemaID),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDeserializeDone, fields...)
	} else {
		capitan.Emit(ctx, SignalDeserializeDone, fields...)
	}
}
