package cli

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dshills/n8nctl/pkg/storage"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show deploy runs recorded with --journal",
		Long: `Without arguments, list recent deploy runs recorded with 'deploy --journal'.
With a run id (or a unique prefix of one), show the outcome of every
workflow in that run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := storage.OpenJournal(filepath.Join(GetConfigDir(), storage.JournalFile))
			if err != nil {
				return fmt.Errorf("failed to open run journal: %w", err)
			}
			defer func() { _ = j.Close() }()

			if len(args) == 1 {
				return showRun(cmd, j, args[0])
			}

			runs, err := j.Runs(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "\nRecord a run with: n8nctl deploy --journal")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tCREATED\tUPDATED\tFAILED\tDIR")
			for _, run := range runs {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					shortID(run.ID), run.StartedAt.Local().Format(time.DateTime), run.Status,
					run.Created, run.Updated, run.Failed, run.Dir)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list (0 for all)")

	return cmd
}

func showRun(cmd *cobra.Command, j *storage.Journal, id string) error {
	run, err := j.Run(id)
	if err != nil {
		return err
	}
	items, err := j.Items(run.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Run:      %s\n", run.ID)
	_, _ = fmt.Fprintf(out, "Server:   %s\n", run.BaseURL)
	_, _ = fmt.Fprintf(out, "Dir:      %s\n", run.Dir)
	_, _ = fmt.Fprintf(out, "Status:   %s\n", run.Status)
	_, _ = fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	if !run.CompletedAt.IsZero() {
		_, _ = fmt.Fprintf(out, "Duration: %s\n", run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.Error != "" {
		_, _ = fmt.Fprintf(out, "Error:    %s\n", run.Error)
	}
	if len(items) == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tWORKFLOW\tOUTCOME\tREMOTE ID\tERROR")
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", item.File, item.Name, item.Outcome, item.RemoteID, item.Error)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
