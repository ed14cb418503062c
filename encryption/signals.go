package encryption

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for encryption events.
var (
	SignalExecutorCreated = capitan.NewSignal("serde.encryption.executor.created", "Field encryption executor instantiated")
	SignalDekCreated      = capitan.NewSignal("serde.encryption.dek.created", "New DEK generated and wrapped")
	SignalDekUnwrapped    = capitan.NewSignal("serde.encryption.dek.unwrapped", "Wrapped DEK recovered from key management")
	SignalMetadataMissing = capitan.NewSignal("serde.encryption.metadata.missing", "No encryption header, field left as plaintext")
)

// Keys for typed event data.
var (
	KeyKekID     = capitan.NewStringKey("kek_id")
	KeyDekFormat = capitan.NewStringKey("dek_format")
	KeyHeader    = capitan.NewStringKey("header")
	KeyField     = capitan.NewStringKey("field")
	KeyDuration  = capitan.NewDurationKey("duration")
	KeyError     = capitan.NewErrorKey("error")
)

// emitExecutorCreated emits an event when an executor is created.
func emitExecutorCreated(ctx context.Context, kekID string, keyFormat, valueFormat DekFormat) {
	capitan.Emit(ctx, SignalExecutorCreated,
		KeyKekID.Field(kekID),
		KeyDekFormat.Field(string(keyFormat)+","+string(valueFormat)),
	)
}

// emitDekCreated emits an event when a DEK is generated and wrapped.
func emitDekCreated(ctx context.Context, kekID string, format DekFormat, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyKekID.Field(kekID),
		KeyDekFormat.Field(string(format)),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDekCreated, fields...)
	} else {
		capitan.Emit(ctx, SignalDekCreated, fields...)
	}
}

// emitDekUnwrapped emits an event when a wrapped DEK is recovered.
func emitDekUnwrapped(ctx context.Context, kekID string, format DekFormat, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyKekID.Field(kekID),
		KeyDekFormat.Field(string(format)),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDekUnwrapped, fields...)
	} else {
		capitan.Emit(ctx, SignalDekUnwrapped, fields...)
	}
}

// emitMetadataMissing emits an event when a read finds no encryption header.
func emitMetadataMissing(ctx context.Context, header, field string) {
	capitan.Emit(ctx, SignalMetadataMissing,
		KeyHeader.Field(header),
		KeyField.Field(field),
	)
}
