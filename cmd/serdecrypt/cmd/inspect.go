package cmd

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zoobzio/serde/encryption"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect-metadata <header>",
		Short: "Decode a base64 encryption metadata header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := base64.StdEncoding.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("decode header: %w", err)
			}
			md, err := encryption.DecodeMetadata(raw)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version:     %d\n", md.Version)
			fmt.Fprintf(out, "kek id:      %s\n", md.KekID)
			fmt.Fprintf(out, "dek format:  %s\n", md.DekFormat)
			fmt.Fprintf(out, "wrapped dek: %d bytes\n", len(md.WrappedDek))
			return nil
		},
	}
}
