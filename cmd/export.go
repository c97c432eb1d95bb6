package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/iksnae/research-trace/internal"
	"github.com/iksnae/research-trace/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOutput string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export [session-id]",
	Short: "Export reconstructed transcripts",
	Long: `Export one session's transcript, or every session's, in the chosen
format. Files are written to the output directory as <session-id>.<ext>.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		var targets []string
		if len(args) == 1 {
			targets = args
		} else {
			sessions, err := store.LoadSessions()
			if err != nil {
				return fmt.Errorf("failed to load sessions: %w", err)
			}
			for _, session := range sessions {
				targets = append(targets, session.ID)
			}
		}

		if len(targets) == 0 {
			internal.PrintWarning("No sessions to export")
			return nil
		}

		if err := os.MkdirAll(exportOutput, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		exported := 0
		err = internal.ShowProgress(cmd.Context(), fmt.Sprintf("Exporting %d session(s)", len(targets)), func() error {
			for _, sessionID := range targets {
				transcript, err := loadTranscript(store, sessionID, true)
				if err != nil {
					internal.LogWarn("Skipping %s: %v", sessionID, err)
					continue
				}

				path := filepath.Join(exportOutput, fmt.Sprintf("%s.%s", sessionID, exporter.Extension()))
				if err := writeTranscript(exporter, transcript, path); err != nil {
					return &internal.ExportError{Format: exportFormat, Path: path, Err: err}
				}
				exported++
				internal.LogDebug("Exported %s", path)
			}
			return nil
		})
		if err != nil {
			return err
		}

		internal.PrintSuccess(fmt.Sprintf("Exported %d session(s) to %s", exported, exportOutput))
		return nil
	},
}

func writeTranscript(exporter export.Exporter, transcript *internal.Transcript, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return exporter.Export(transcript, f)
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "jsonl", "Export format: jsonl, md, yaml, json")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", ".", "Output directory")
}
