package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath  string
	schemaPath  string
	verbose     bool
	jsonOutput  bool
	showLog     bool
	metricsAddr string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xrmorder",
		Short: "xrmorder - entity creation and deletion order for CRM test data",
		Long: `xrmorder computes a safe order for creating and deleting CRM entity records.

Parents come before children in creation order and after them in deletion
order. Lookups that close a reference cycle are reported as deferred: set
them with an update once every record in the cycle exists.

Schema sources:
  - YAML, JSON, or CUE schema documents
  - A SQLite metadata store imported from the document`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default ./xrmorder.yaml if present)")
	rootCmd.PersistentFlags().StringVarP(&schemaPath, "schema", "s", "", "schema document (.yaml, .json, .cue)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&showLog, "log", false, "print the ordering decision log to stderr")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(newOrderCommand())
	rootCmd.AddCommand(newGraphCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}
