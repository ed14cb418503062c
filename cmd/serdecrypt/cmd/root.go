// Package cmd implements the serdecrypt command line.
//
// serdecrypt runs a JSON schema's rules over a document the way a producer
// or consumer would. encrypt writes an envelope holding the framed payload
// and the message headers; decrypt reads one back.
//
//	SERDE_LOCAL_SECRET=... serdecrypt encrypt --schema person.yaml < doc.json > env.json
//	SERDE_LOCAL_SECRET=... serdecrypt decrypt --schema person.yaml < env.json
//	serdecrypt inspect-metadata <base64 header value>
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zoobzio/serde"
	"github.com/zoobzio/serde/config"
	"github.com/zoobzio/serde/jsonschema"
	"github.com/zoobzio/serde/sanitize"
)

// Envelope is a serialized message with its headers, as written by encrypt.
type Envelope struct {
	Topic   string            `json:"topic"`
	IsKey   bool              `json:"isKey,omitempty"`
	Headers map[string][]byte `json:"headers,omitempty"`
	Data    []byte            `json:"data"`
}

type rootOptions struct {
	configFile string
	schemaFile string
	topic      string
	isKey      bool
	validate   bool
}

// NewRootCommand builds the serdecrypt command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "serdecrypt",
		Short:        "Run serde field rules over JSON documents",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path")

	root.AddCommand(
		newEncryptCommand(opts),
		newDecryptCommand(opts),
		newInspectCommand(),
	)
	return root
}

// addSchemaFlags registers the flags shared by encrypt and decrypt.
func addSchemaFlags(cmd *cobra.Command, opts *rootOptions) {
	cmd.Flags().StringVar(&opts.schemaFile, "schema", "", "schema file (YAML)")
	cmd.Flags().StringVar(&opts.topic, "topic", "default", "topic the schema is registered under")
	cmd.Flags().BoolVar(&opts.isKey, "key", false, "treat the document as a message key")
	cmd.Flags().BoolVar(&opts.validate, "validate", false, "validate documents against the schema")
	_ = cmd.MarkFlagRequired("schema")
}

// newSerde loads configuration and the schema and builds a JSON serde with
// the encryption and sanitize executors registered.
func newSerde(ctx context.Context, opts *rootOptions) (*jsonschema.Serde, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	schema, err := config.LoadSchema(opts.schemaFile)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if schema.Type != serde.SchemaJSON {
		return nil, fmt.Errorf("schema type %s not supported, want %s", schema.Type, serde.SchemaJSON)
	}

	exec, err := cfg.NewExecutor(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create encryption executor: %w", err)
	}
	executors := serde.NewRegistry(
		exec,
		sanitize.NewHashExecutor(),
		sanitize.NewMaskExecutor(),
		sanitize.NewRedactExecutor(),
	)

	store := serde.NewMemoryStore()
	if _, err := store.Register(serde.SubjectName(opts.topic, opts.isKey), schema); err != nil {
		return nil, err
	}

	var sopts []jsonschema.Option
	if opts.isKey {
		sopts = append(sopts, jsonschema.AsKey())
	}
	if opts.validate {
		sopts = append(sopts, jsonschema.WithValidation())
	}
	return jsonschema.New(store, serde.NewPipeline(executors), sopts...), nil
}
