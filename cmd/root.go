// Package cmd defines the xfix command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// options holds the command-line flags.
type options struct {
	envFile    string
	configPath string
	fromStart  bool
	dryRun     bool
	verbose    bool
	quiet      bool
}

// runAgent runs the agent. It's a variable so tests can replace it.
var runAgent = run

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "xfix",
		Short: "Enrich X.com bookmarks with generated titles and summaries.",
		Long: `xfix long-polls the bookmark store for new X.com bookmarks, fetches each
post through a chain of fallback strategies, asks a local Ollama model for a
title and summary, and writes the missing fields back.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.verbose && opts.quiet {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}
			return runAgent(cmd.Context(), *opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.fromStart, "from-start", false, "ignore the saved cursor and sync from the beginning")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "fetch and enrich but do not write back")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "echo generated titles and comments")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "only log warnings and errors")
	flags.StringVar(&opts.envFile, "env-file", "", "load environment from this file instead of .env")
	flags.StringVar(&opts.configPath, "config", "", "optional YAML config file")

	return cmd
}

// Execute is the main entry point. Any error exits with status 1.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "xfix: %v\n", err)
		os.Exit(1)
	}
}
