package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/research-trace/internal"
	"github.com/spf13/cobra"
)

var (
	verbose   bool
	storePath string
	version   string = "dev"
	commit    string = "unknown"
	date      string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "research-trace",
	Short: "Inspect and replay automated research sessions",
	Long: `A CLI tool to inspect the event store behind the research dashboard.

It reconstructs conversation transcripts from heterogeneous session events,
synthesizes the map-reduce execution graph for a research run, and relays
live token streams from the job endpoint.

Features:
  • List recorded sessions with metadata
  • Rebuild a session transcript from its raw events
  • Render the research execution graph (text, JSON, DOT)
  • Follow a live turn and re-frame it as SSE
  • Export transcripts in multiple formats (JSONL, Markdown, YAML, JSON)

Quick Start:
  research-trace list                     # List all sessions
  research-trace show <session-id>        # View a reconstructed transcript
  research-trace trace <session-id>       # Summarize the execution graph
  research-trace export --format md       # Export transcripts as Markdown

For detailed usage, see: https://github.com/iksnae/research-trace`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Custom event store location (path to the sqlite database file)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// openStore resolves the event store path and opens it read-only.
func openStore() (*internal.Store, error) {
	path, err := internal.ResolveStorePath(storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store path: %w", err)
	}
	if !internal.StoreExists(path) {
		return nil, fmt.Errorf("event store not found at %s (set %s or pass --store)", path, internal.StoreEnvVar)
	}
	return internal.OpenStore(path)
}
