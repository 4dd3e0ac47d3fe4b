package main

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"
)

func newHealthCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print the console health report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newConsoleClient(opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			var report map[string]any
			if _, err := client.do(ctx, http.MethodGet, "/health", nil, &report); err != nil {
				return err
			}
			return writeJSONLine(cmd.OutOrStdout(), report)
		},
	}
}
