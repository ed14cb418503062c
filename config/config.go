// Package config loads serde runtime settings.
//
// Settings resolve with the precedence environment > config file >
// defaults. Environment variables carry the SERDE_ prefix with dots
// replaced by underscores, so encryption.kek_id is SERDE_ENCRYPTION_KEK_ID.
//
// Secrets (the local KMS secret, the Vault token and static AWS
// credentials) are read from the environment only; a config file that sets
// one is rejected.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/zoobzio/serde/encryption"
	"github.com/zoobzio/serde/encryption/awskms"
	"github.com/zoobzio/serde/encryption/hcvault"
	"github.com/zoobzio/serde/encryption/localkms"
	"github.com/zoobzio/serde/metrics"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SERDE"

// Errors returned while loading configuration.
var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrSecretInConfig = errors.New("secret set in config file")
	ErrMissingSecret  = errors.New("required secret not set")
)

// Secret keys; environment only.
const (
	keyLocalSecret        = "local_secret"
	keyVaultToken         = "vault_token"
	keyAWSAccessKeyID     = "aws_access_key_id"
	keyAWSSecretAccessKey = "aws_secret_access_key"
)

var secretKeys = []string{keyLocalSecret, keyVaultToken, keyAWSAccessKeyID, keyAWSSecretAccessKey}

// Config holds serde runtime settings.
type Config struct {
	Encryption Encryption
	Vault      Vault
	Secrets    Secrets
}

// Encryption configures the field encryption executor.
type Encryption struct {
	KekID              string `validate:"required"`
	KeyDeterministic   bool
	ValueDeterministic bool
	KeyDekFormat       string        `validate:"omitempty,oneof=AES128_GCM AES256_GCM AES256_SIV"`
	ValueDekFormat     string        `validate:"omitempty,oneof=AES128_GCM AES256_GCM AES256_SIV"`
	CacheSize          int           `validate:"gt=0"`
	CacheExpiry        time.Duration `validate:"gt=0"`
}

// Vault configures hcvault:// KEKs.
type Vault struct {
	Namespace string
	Insecure  bool
}

// Secrets are loaded from the environment only.
type Secrets struct {
	LocalSecret        string
	VaultToken         string
	AWSAccessKeyID     string
	AWSSecretAccessKey string `validate:"required_with=AWSAccessKeyID"`
}

var validate = validator.New()

// Load reads configuration from the environment and, when path is set, a
// config file. The file format follows its extension.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("encryption.kek_id", localkms.KekID)
	v.SetDefault("encryption.key_deterministic", true)
	v.SetDefault("encryption.value_deterministic", false)
	v.SetDefault("encryption.key_dek_format", "")
	v.SetDefault("encryption.value_dek_format", "")
	v.SetDefault("encryption.cache_size", encryption.DefaultCacheSize)
	v.SetDefault("encryption.cache_expiry", encryption.DefaultCacheExpiry.String())
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.insecure", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	for _, key := range secretKeys {
		if v.InConfig(key) {
			return nil, fmt.Errorf("%w: %s (use %s_%s)", ErrSecretInConfig, key, EnvPrefix, strings.ToUpper(key))
		}
	}

	cfg := &Config{
		Encryption: Encryption{
			KekID:              v.GetString("encryption.kek_id"),
			KeyDeterministic:   v.GetBool("encryption.key_deterministic"),
			ValueDeterministic: v.GetBool("encryption.value_deterministic"),
			KeyDekFormat:       v.GetString("encryption.key_dek_format"),
			ValueDekFormat:     v.GetString("encryption.value_dek_format"),
			CacheSize:          v.GetInt("encryption.cache_size"),
			CacheExpiry:        v.GetDuration("encryption.cache_expiry"),
		},
		Vault: Vault{
			Namespace: v.GetString("vault.namespace"),
			Insecure:  v.GetBool("vault.insecure"),
		},
		Secrets: Secrets{
			LocalSecret:        v.GetString(keyLocalSecret),
			VaultToken:         v.GetString(keyVaultToken),
			AWSAccessKeyID:     v.GetString(keyAWSAccessKeyID),
			AWSSecretAccessKey: v.GetString(keyAWSSecretAccessKey),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and that the configured KEK has a
// known backend.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, ok := encryption.KekPrefix(c.Encryption.KekID); !ok {
		return fmt.Errorf("%w: %w: %q", ErrInvalidConfig, encryption.ErrUnsupportedKek, c.Encryption.KekID)
	}
	return nil
}

// ExecutorOptions returns the encryption executor options for c. m may be
// nil.
func (c *Config) ExecutorOptions(m *metrics.Registry) []encryption.Option {
	e := c.Encryption
	opts := []encryption.Option{
		encryption.WithKeyDeterministic(e.KeyDeterministic),
		encryption.WithValueDeterministic(e.ValueDeterministic),
		encryption.WithCacheSize(e.CacheSize),
		encryption.WithCacheExpiry(e.CacheExpiry),
		encryption.WithMetrics(m),
	}
	if e.KeyDekFormat != "" {
		opts = append(opts, encryption.WithKeyDekFormat(encryption.DekFormat(e.KeyDekFormat)))
	}
	if e.ValueDekFormat != "" {
		opts = append(opts, encryption.WithValueDekFormat(encryption.DekFormat(e.ValueDekFormat)))
	}
	return opts
}

// KmsRegistry builds a registry holding a client for the configured KEK.
// A local KMS client is also registered whenever the local secret is set,
// so locally encrypted data stays readable.
func (c *Config) KmsRegistry(ctx context.Context) (*encryption.KmsRegistry, error) {
	reg := encryption.NewKmsRegistry()
	if c.Secrets.LocalSecret != "" {
		if err := localkms.Register(reg, c.Secrets.LocalSecret); err != nil {
			return nil, err
		}
	}

	kekID := c.Encryption.KekID
	prefix, _ := encryption.KekPrefix(kekID)
	switch prefix {
	case encryption.PrefixLocal:
		if c.Secrets.LocalSecret == "" {
			return nil, fmt.Errorf("%w: %s_%s", ErrMissingSecret, EnvPrefix, strings.ToUpper(keyLocalSecret))
		}
	case encryption.PrefixAWS:
		client, err := awskms.New(ctx, kekID, awskms.Credentials{
			AccessKeyID:     c.Secrets.AWSAccessKeyID,
			SecretAccessKey: c.Secrets.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		if err := reg.Register(kekID, client); err != nil {
			return nil, err
		}
	case encryption.PrefixVault:
		if c.Secrets.VaultToken == "" {
			return nil, fmt.Errorf("%w: %s_%s", ErrMissingSecret, EnvPrefix, strings.ToUpper(keyVaultToken))
		}
		client, err := hcvault.New(kekID, hcvault.Config{
			Token:     c.Secrets.VaultToken,
			Namespace: c.Vault.Namespace,
			Insecure:  c.Vault.Insecure,
		})
		if err != nil {
			return nil, err
		}
		if err := reg.Register(kekID, client); err != nil {
			return nil, err
		}
	default:
		// gcp-kms:// and azure-kms:// clients are registered by the caller.
		return nil, fmt.Errorf("%w: no built-in client for %q", encryption.ErrUnsupportedKek, kekID)
	}
	return reg, nil
}

// NewExecutor builds the field encryption executor described by c.
func (c *Config) NewExecutor(ctx context.Context, m *metrics.Registry) (*encryption.FieldEncryptionExecutor, error) {
	reg, err := c.KmsRegistry(ctx)
	if err != nil {
		return nil, err
	}
	return encryption.NewFieldEncryptionExecutor(c.Encryption.KekID, reg, c.ExecutorOptions(m)...)
}
