// Package awskms wraps DEKs with AWS KMS keys.
//
// KEK ids take the form "aws-kms://<key arn>", for example
// "aws-kms://arn:aws:kms:us-west-2:111122223333:key/1234abcd".
package awskms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/zoobzio/serde/encryption"
)

// ErrInvalidKeyURI indicates a KEK id is not an AWS KMS key URI.
var ErrInvalidKeyURI = errors.New("invalid aws kms key uri")

// API is the subset of the AWS KMS client used for wrapping.
type API interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Credentials are static AWS credentials. When empty the default
// credential chain is used.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Client wraps DEKs with one AWS KMS key.
type Client struct {
	api   API
	keyID string
}

// NewWithAPI creates a client for kekID over an existing KMS API.
func NewWithAPI(kekID string, api API) (*Client, error) {
	keyID, err := KeyID(kekID)
	if err != nil {
		return nil, err
	}
	return &Client{api: api, keyID: keyID}, nil
}

// New creates a client for kekID, loading AWS configuration for the key's
// region.
func New(ctx context.Context, kekID string, creds Credentials) (*Client, error) {
	keyID, err := KeyID(kekID)
	if err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if region := Region(keyID); region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if creds.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Client{api: kms.NewFromConfig(cfg), keyID: keyID}, nil
}

// KeyID strips the aws-kms:// prefix from kekID.
func KeyID(kekID string) (string, error) {
	keyID, ok := strings.CutPrefix(kekID, encryption.PrefixAWS)
	if !ok || keyID == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKeyURI, kekID)
	}
	return keyID, nil
}

// Region returns the region of a key ARN, or "" for bare key ids.
func Region(keyID string) string {
	parts := strings.Split(keyID, ":")
	if len(parts) < 6 || parts[0] != "arn" {
		return ""
	}
	return parts[3]
}

// Encrypt wraps plaintext.
func (c *Client) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	out, err := c.api.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(c.keyID),
		Plaintext: plaintext,
	})
	if err != nil {
		return nil, fmt.Errorf("aws kms encrypt: %w", err)
	}
	return out.CiphertextBlob, nil
}

// Decrypt unwraps ciphertext.
func (c *Client) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	out, err := c.api.Decrypt(ctx, &kms.DecryptInput{
		KeyId:          aws.String(c.keyID),
		CiphertextBlob: ciphertext,
	})
	if err != nil {
		return nil, fmt.Errorf("aws kms decrypt: %w", err)
	}
	return out.Plaintext, nil
}

// NewExecutor returns a field encryption executor wrapping DEKs with the
// AWS KMS key named by keyARN.
func NewExecutor(ctx context.Context, keyARN string, creds Credentials, opts ...encryption.Option) (*encryption.FieldEncryptionExecutor, error) {
	kekID := encryption.PrefixAWS + keyARN
	client, err := New(ctx, kekID, creds)
	if err != nil {
		return nil, err
	}
	reg := encryption.NewKmsRegistry()
	if err := reg.Register(kekID, client); err != nil {
		return nil, err
	}
	return encryption.NewFieldEncryptionExecutor(kekID, reg, opts...)
}
