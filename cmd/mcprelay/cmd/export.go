package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sentinel-gate/mcprelay/internal/domain/session"
)

var exportCmd = &cobra.Command{
	Use:   "export <session-file> <output-file>",
	Short: "Re-save a session to a new path",
	Long: `Load a saved session and write it back out at a new path. This is a
round trip through the same on-disk format: it exists to normalize an
older session file and to give automation a stable copy step that
doesn't depend on shell redirection.`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	sessionFile, outputFile := args[0], args[1]

	store, err := session.Load(sessionFile)
	if err != nil {
		return fmt.Errorf("export: load session: %w", err)
	}
	if err := store.Save(outputFile); err != nil {
		return fmt.Errorf("export: write output: %w", err)
	}

	fmt.Printf("Exported %d messages to %s\n", len(store.Messages()), outputFile)
	return nil
}
