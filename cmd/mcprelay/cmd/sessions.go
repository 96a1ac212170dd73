package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sentinel-gate/mcprelay/internal/adapter/outbound/catalog"
	"github.com/sentinel-gate/mcprelay/internal/config"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved sessions recorded in the catalog",
	Long: `List every session "mcprelay run --save" has indexed in the session
catalog, most recently started first. This reads the catalog's sqlite
index rather than scanning the filesystem, so it only lists sessions
saved to a path reachable when the catalog was written to.`,
	RunE: runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	idx, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("sessions: open catalog: %w", err)
	}
	defer idx.Close()

	records, err := idx.List()
	if err != nil {
		return fmt.Errorf("sessions: list: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tTRANSPORT\tMESSAGES\tSESSION ID\tPATH")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			rec.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
			rec.Transport,
			rec.MessageCount,
			shortID(rec.SessionID),
			rec.Path,
		)
	}
	return w.Flush()
}
