package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zoobzio/serde"
	jsoncodec "github.com/zoobzio/serde/codec/json"
)

func newEncryptCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Serialize a JSON document from stdin, running WRITE rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSerde(cmd.Context(), opts)
			if err != nil {
				return err
			}

			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			var doc any
			if err := jsoncodec.New().Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("parse document: %w", err)
			}

			headers := serde.NewHeaders()
			data, err := s.Serialize(cmd.Context(), opts.topic, headers, doc)
			if err != nil {
				return err
			}

			env := Envelope{Topic: opts.topic, IsKey: opts.isKey, Data: data}
			if headers.Len() > 0 {
				env.Headers = make(map[string][]byte, headers.Len())
				for _, h := range headers.All() {
					env.Headers[h.Key] = h.Value
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(env)
		},
	}
	addSchemaFlags(cmd, opts)
	return cmd
}
