package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iksnae/agentos-chat/internal"
	"github.com/iksnae/agentos-chat/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportFormat  string
	exportOut     string
	exportSession string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored sessions to file",
	Long: `Export stored chat sessions to various formats (jsonl, md, yaml, json).

Exports every stored session by default, or a single one with --session.
Use 'agentos-chat sessions' to see available session IDs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Reject a bad format before touching the session directory
		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

		cfg, err := buildConfig()
		if err != nil {
			return err
		}
		dir, err := cfg.ResolveSessionDir()
		if err != nil {
			return err
		}

		store, err := internal.NewStore(dir, false, 0)
		if err != nil {
			return fmt.Errorf("failed to open session directory: %w", err)
		}

		// Collect the sessions to export
		var ids []string
		if exportSession != "" {
			ids = []string{exportSession}
		} else {
			infos, err := store.ListSessions()
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
			for _, info := range infos {
				ids = append(ids, info.ID)
			}
		}
		if len(ids) == 0 {
			internal.PrintInfo("No sessions to export")
			return nil
		}

		// Ensure output directory exists
		if err := os.MkdirAll(exportOut, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		ctx := context.Background()
		var sessions []*internal.SessionData
		steps := []internal.ProgressStep{
			{
				Message: fmt.Sprintf("Loading %d session(s) from disk", len(ids)),
				Fn: func() error {
					for _, id := range ids {
						session, err := store.LoadSessionData(id)
						if err != nil {
							if exportSession != "" {
								return fmt.Errorf("session not found: %s (use 'agentos-chat sessions' to see available sessions)", id)
							}
							internal.LogWarn("Skipping unreadable session %s: %v", id, err)
							continue
						}
						sessions = append(sessions, session)
					}
					return nil
				},
			},
			{
				Message: fmt.Sprintf("Exporting to %s", exportOut),
				Fn: func() error {
					for _, session := range sessions {
						filename := fmt.Sprintf("session_%s.%s", session.ID, exporter.Extension())
						outPath := filepath.Join(exportOut, filename)

						file, err := os.Create(outPath)
						if err != nil {
							internal.LogError("Failed to create file %s: %v", outPath, err)
							continue
						}

						if err := exporter.Export(session, file); err != nil {
							_ = file.Close()
							internal.LogError("Failed to export session %s: %v", session.ID, err)
							continue
						}

						if err := file.Close(); err != nil {
							internal.LogWarn("Failed to close file %s: %v", outPath, err)
						}
					}
					return nil
				},
			},
		}

		if err := internal.ShowProgressWithSteps(ctx, steps); err != nil {
			return err
		}

		internal.PrintSuccess(fmt.Sprintf("Export complete: %d session(s) exported to %s", len(sessions), exportOut))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "./exports", "Output directory")
	exportCmd.Flags().StringVar(&exportSession, "session", "", "Export a specific session by ID")
}
