package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"turnstile-hq/turnstile/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "turnstile",
	Short: "Turnstile - multi-strategy rate limiter",
	Long: `Turnstile decides, per caller identity, whether a request is admitted.

Each identity is bound to one limiting strategy:
  - fixed_window: at most N requests per aligned window
  - leaky_bucket: a queue of bounded capacity draining at a constant rate
  - sliding_window_log: at most N requests in any trailing window

The run command serves Prometheus metrics, health checks, and identity
snapshots on an operations port, records decisions to an audit trail, and
reloads the identity set when the configuration file changes.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
