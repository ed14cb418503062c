package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zoobzio/serde"
)

func newDecryptCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Deserialize an envelope from stdin, running READ rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var env Envelope
			if err := json.NewDecoder(cmd.InOrStdin()).Decode(&env); err != nil {
				return fmt.Errorf("read envelope: %w", err)
			}
			if !cmd.Flags().Changed("topic") && env.Topic != "" {
				opts.topic = env.Topic
			}
			if !cmd.Flags().Changed("key") {
				opts.isKey = env.IsKey
			}

			s, err := newSerde(cmd.Context(), opts)
			if err != nil {
				return err
			}

			headers := serde.NewHeaders()
			for k, v := range env.Headers {
				headers.Add(k, v)
			}
			doc, err := s.Deserialize(cmd.Context(), opts.topic, headers, env.Data)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
	addSchemaFlags(cmd, opts)
	return cmd
}
