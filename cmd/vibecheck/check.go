package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/ryosukesatoh/vibecheck/internal/metrics"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <keyword>",
		Short: "Run the pipeline once and print the digest as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := buildRunner(a.cfg, a.log, metrics.New(), nil)
			if err != nil {
				return err
			}

			digest, err := r.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(digest)
		},
	}
}
