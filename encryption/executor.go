// Package encryption implements field-level envelope encryption as a serde
// rule executor.
//
// Each annotated string or bytes field is encrypted with a data encryption
// key (DEK). The DEK is wrapped by a key encryption key (KEK) held in a key
// management service and the wrapped form travels in a message header, so
// a reader holding access to the KEK can recover it:
//
//	kms := encryption.NewKmsRegistry()
//	kms.Register("local-kms://", client)
//	exec, _ := encryption.NewFieldEncryptionExecutor("local-kms://", kms)
//	executors := serde.NewRegistry(exec)
//
// Keys use deterministic AES-SIV by default so equal keys encrypt equally;
// values use randomized AES-GCM.
package encryption

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/zoobzio/serde"
	"github.com/zoobzio/serde/metrics"
)

// RuleType is the rule type handled by FieldEncryptionExecutor.
const RuleType = "ENCRYPT"

// HeaderPrefix prefixes the encryption metadata header names.
const HeaderPrefix = "encrypt"

// Header names carrying encryption metadata.
const (
	HeaderKey   = HeaderPrefix + "-key"
	HeaderValue = HeaderPrefix + "-value"
)

// ErrNoHeaders indicates a message has no headers to carry encryption metadata.
var ErrNoHeaders = errors.New("no headers for encryption metadata")

// ErrKekConflict indicates a rule would encrypt a message side under a
// different KEK or DEK format than the metadata header already attached.
var ErrKekConflict = errors.New("kek conflicts with message encryption metadata")

// ParamKekID is the rule parameter overriding the executor's KEK.
const ParamKekID = "encrypt.kek.id"

// Field operations, used in errors and metrics.
const (
	opEncrypt = "encrypt"
	opDecrypt = "decrypt"
)

// FieldEncryptionExecutor encrypts tagged fields on WRITE and decrypts
// them on READ. Safe for concurrent use.
type FieldEncryptionExecutor struct {
	kekID      string
	kms        *KmsRegistry
	cache      *DekCache
	keyCryptor *Cryptor
	valCryptor *Cryptor
	metrics    *metrics.Registry
}

// NewFieldEncryptionExecutor creates an executor wrapping DEKs with kekID.
// kekID must be registered in kms by the time the executor first encrypts.
func NewFieldEncryptionExecutor(kekID string, kms *KmsRegistry, opts ...Option) (*FieldEncryptionExecutor, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	keyCryptor, err := NewCryptor(cfg.keyFormat())
	if err != nil {
		return nil, err
	}
	valCryptor, err := NewCryptor(cfg.valueFormat())
	if err != nil {
		return nil, err
	}
	cache, err := NewDekCache(cfg.cacheSize, cfg.cacheExpiry, cfg.metrics)
	if err != nil {
		return nil, err
	}

	e := &FieldEncryptionExecutor{
		kekID:      kekID,
		kms:        kms,
		cache:      cache,
		keyCryptor: keyCryptor,
		valCryptor: valCryptor,
		metrics:    cfg.metrics,
	}
	emitExecutorCreated(context.Background(), kekID, keyCryptor.Format(), valCryptor.Format())
	return e, nil
}

// Type returns "ENCRYPT".
func (e *FieldEncryptionExecutor) Type() string {
	return RuleType
}

// KekID returns the executor's default KEK id.
func (e *FieldEncryptionExecutor) KekID() string {
	return e.kekID
}

// Cache returns the executor's DEK cache.
func (e *FieldEncryptionExecutor) Cache() *DekCache {
	return e.cache
}

// Transform encrypts or decrypts every tagged field of msg.
func (e *FieldEncryptionExecutor) Transform(ctx context.Context, rc *serde.RuleContext, msg any) (any, error) {
	return serde.TransformFields(ctx, e, rc, msg)
}

// NewTransform returns the per-field transform for rc's mode.
func (e *FieldEncryptionExecutor) NewTransform(rc *serde.RuleContext) (serde.FieldTransform, error) {
	switch rc.Mode {
	case serde.ModeWrite:
		return e.encryptField, nil
	case serde.ModeRead:
		return e.decryptField, nil
	default:
		return nil, fmt.Errorf("%w: %s cannot run in %s", serde.ErrUnsupportedMode, RuleType, rc.Mode)
	}
}

// cryptorFor returns the cryptor for the message side.
func (e *FieldEncryptionExecutor) cryptorFor(isKey bool) *Cryptor {
	if isKey {
		return e.keyCryptor
	}
	return e.valCryptor
}

// headerName returns the metadata header for the message side.
func headerName(isKey bool) string {
	if isKey {
		return HeaderKey
	}
	return HeaderValue
}

func (e *FieldEncryptionExecutor) encryptField(ctx context.Context, rc *serde.RuleContext, field *serde.FieldContext, value any) (any, error) {
	plaintext, ok := toBytes(field.Type, value)
	if !ok {
		return value, nil
	}

	if rc.Headers == nil {
		return nil, serde.NewFieldError(serde.ErrRuleFailed, opEncrypt, field.FullName, ErrNoHeaders)
	}

	kekID := rc.Rule.Param(ParamKekID, e.kekID)
	cryptor := e.cryptorFor(rc.IsKey)

	dek, err := e.dekForEncrypt(ctx, rc, kekID, cryptor)
	if err != nil {
		return nil, serde.NewFieldError(serde.ErrRuleFailed, opEncrypt, field.FullName, err)
	}

	ciphertext, err := cryptor.Encrypt(dek.Raw, plaintext)
	if err != nil {
		return nil, serde.NewFieldError(serde.ErrRuleFailed, opEncrypt, field.FullName, err)
	}
	e.metrics.RecordField(RuleType, opEncrypt)

	encoded := base64.StdEncoding.EncodeToString(ciphertext)
	if field.Type == serde.TypeBytes {
		return []byte(encoded), nil
	}
	return encoded, nil
}

func (e *FieldEncryptionExecutor) decryptField(ctx context.Context, rc *serde.RuleContext, field *serde.FieldContext, value any) (any, error) {
	name := headerName(rc.IsKey)
	header, ok := rc.Headers.Last(name)
	if !ok {
		emitMetadataMissing(ctx, name, field.FullName)
		return value, nil
	}

	encoded, ok := toBytes(field.Type, value)
	if !ok {
		return value, nil
	}

	md, err := DecodeMetadata(header)
	if err != nil {
		return nil, serde.NewFieldError(serde.ErrInvalidCiphertext, opDecrypt, field.FullName, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, serde.NewFieldError(serde.ErrInvalidCiphertext, opDecrypt, field.FullName, err)
	}
	cryptor, err := NewCryptor(md.DekFormat)
	if err != nil {
		return nil, serde.NewFieldError(serde.ErrInvalidCiphertext, opDecrypt, field.FullName, err)
	}

	dek, err := e.dekForDecrypt(ctx, rc, md)
	if err != nil {
		return nil, serde.NewFieldError(serde.ErrRuleFailed, opDecrypt, field.FullName, err)
	}

	plaintext, err := cryptor.Decrypt(dek.Raw, ciphertext)
	if err != nil {
		return nil, serde.NewFieldError(serde.ErrRuleFailed, opDecrypt, field.FullName, err)
	}
	e.metrics.RecordField(RuleType, opDecrypt)

	out, ok := fromBytes(field.Type, plaintext)
	if !ok {
		return value, nil
	}
	return out, nil
}

// dekForEncrypt returns the DEK this message side encrypts with, attaching
// the metadata header the first time the message uses it. Later rules on
// the same side reuse the header's DEK; each side carries one header.
func (e *FieldEncryptionExecutor) dekForEncrypt(ctx context.Context, rc *serde.RuleContext, kekID string, cryptor *Cryptor) (serde.Dek, error) {
	scratchKey := kekID + "\x00" + string(cryptor.Format())
	if dek, ok := rc.DekForFormat(scratchKey); ok {
		e.metrics.RecordDekLookup(directionEncrypt, metrics.CacheMessage)
		return dek, nil
	}

	if header, ok := rc.Headers.Last(headerName(rc.IsKey)); ok {
		dek, err := e.dekFromHeader(ctx, rc, header, kekID, cryptor.Format())
		if err != nil {
			return serde.Dek{}, err
		}
		rc.StoreDekForFormat(scratchKey, dek)
		return dek, nil
	}

	dek, err := e.cache.ForEncrypt(kekID, cryptor.Format(), func() (serde.Dek, error) {
		return e.createDek(ctx, kekID, cryptor)
	})
	if err != nil {
		return serde.Dek{}, err
	}

	rc.StoreDekForFormat(scratchKey, dek)
	rc.Headers.Add(headerName(rc.IsKey), EncodeMetadata(Metadata{
		Version:    MetadataVersion,
		KekID:      kekID,
		DekFormat:  cryptor.Format(),
		WrappedDek: dek.Wrapped,
	}))
	return dek, nil
}

// dekFromHeader returns the DEK named by metadata an earlier rule attached
// to this message side. The rule must use the same KEK and format.
func (e *FieldEncryptionExecutor) dekFromHeader(ctx context.Context, rc *serde.RuleContext, header []byte, kekID string, format DekFormat) (serde.Dek, error) {
	md, err := DecodeMetadata(header)
	if err != nil {
		return serde.Dek{}, err
	}
	if md.KekID != kekID || md.DekFormat != format {
		return serde.Dek{}, fmt.Errorf("%w: side uses %s (%s), rule uses %s (%s)",
			ErrKekConflict, md.KekID, md.DekFormat, kekID, format)
	}
	if dek, ok := e.cache.PeekEncrypt(kekID, format); ok && bytes.Equal(dek.Wrapped, md.WrappedDek) {
		e.metrics.RecordDekLookup(directionEncrypt, metrics.CacheMessage)
		return dek, nil
	}
	return e.dekForDecrypt(ctx, rc, md)
}

// dekForDecrypt recovers the raw DEK named by md.
func (e *FieldEncryptionExecutor) dekForDecrypt(ctx context.Context, rc *serde.RuleContext, md Metadata) (serde.Dek, error) {
	if dek, ok := rc.DekForWrapped(md.WrappedDek); ok {
		e.metrics.RecordDekLookup(directionDecrypt, metrics.CacheMessage)
		return dek, nil
	}

	dek, err := e.cache.ForDecrypt(md.WrappedDek, func() ([]byte, error) {
		return e.unwrapDek(ctx, md)
	})
	if err != nil {
		return serde.Dek{}, err
	}
	rc.StoreDekForWrapped(dek)
	return dek, nil
}

func (e *FieldEncryptionExecutor) createDek(ctx context.Context, kekID string, cryptor *Cryptor) (dek serde.Dek, retErr error) {
	start := time.Now()
	defer func() {
		emitDekCreated(ctx, kekID, cryptor.Format(), time.Since(start), retErr)
	}()

	client, err := e.kms.Get(kekID)
	if err != nil {
		return serde.Dek{}, err
	}
	raw, err := cryptor.NewDek()
	if err != nil {
		return serde.Dek{}, err
	}

	callStart := time.Now()
	wrapped, err := client.Encrypt(ctx, raw)
	e.metrics.RecordKmsCall(opEncrypt, time.Since(callStart), err)
	if err != nil {
		return serde.Dek{}, fmt.Errorf("wrap dek with %s: %w", kekID, err)
	}
	return serde.Dek{Raw: raw, Wrapped: wrapped}, nil
}

func (e *FieldEncryptionExecutor) unwrapDek(ctx context.Context, md Metadata) (raw []byte, retErr error) {
	start := time.Now()
	defer func() {
		emitDekUnwrapped(ctx, md.KekID, md.DekFormat, time.Since(start), retErr)
	}()

	client, err := e.kms.Get(md.KekID)
	if err != nil {
		return nil, err
	}

	callStart := time.Now()
	raw, err = client.Decrypt(ctx, md.WrappedDek)
	e.metrics.RecordKmsCall(opDecrypt, time.Since(callStart), err)
	if err != nil {
		return nil, fmt.Errorf("unwrap dek with %s: %w", md.KekID, err)
	}
	return raw, nil
}

// toBytes converts a leaf value to the bytes the cryptor works on.
// Only strings and bytes are transformable.
func toBytes(t serde.Type, value any) ([]byte, bool) {
	switch t {
	case serde.TypeBytes:
		b, ok := value.([]byte)
		return b, ok
	case serde.TypeString:
		s, ok := value.(string)
		return []byte(s), ok
	}
	return nil, false
}

// fromBytes converts decrypted bytes back to the field's type.
func fromBytes(t serde.Type, b []byte) (any, bool) {
	switch t {
	case serde.TypeBytes:
		return b, true
	case serde.TypeString:
		return string(b), true
	}
	return nil, false
}
