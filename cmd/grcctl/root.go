package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	BaseURL  string
	Token    string
	OpsToken string
	Lang     string
	Timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "grcctl",
		Short:         "Drive the GRC console issue unmap workflow from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.BaseURL, "base-url", envOr("GRCCTL_BASE_URL", "http://localhost:3200"), "console base URL")
	flags.StringVar(&opts.Token, "token", os.Getenv("GRCCTL_TOKEN"), "bearer token forwarded to GGRC")
	flags.StringVar(&opts.OpsToken, "ops-token", os.Getenv("GRCCTL_OPS_TOKEN"), "token for ops routes such as /health")
	flags.StringVar(&opts.Lang, "lang", "en", "Accept-Language sent to the console")
	flags.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "request timeout")

	cmd.AddCommand(newRelatedCmd(opts))
	cmd.AddCommand(newClickCmd(opts))
	cmd.AddCommand(newUnmapCmd(opts))
	cmd.AddCommand(newHealthCmd(opts))
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
