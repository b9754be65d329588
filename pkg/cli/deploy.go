package cli

import (
	"fmt"
	"path/filepath"

	"github.com/dshills/n8nctl/pkg/definition"
	"github.com/dshills/n8nctl/pkg/publish"
	"github.com/dshills/n8nctl/pkg/storage"
	"github.com/spf13/cobra"
)

// NewDeployCommand creates the deploy command
func NewDeployCommand() *cobra.Command {
	var (
		revalidate bool
		expect     []string
		journal    bool
	)

	cmd := &cobra.Command{
		Use:   "deploy [dir]",
		Short: "Publish workflow definitions to the server",
		Long: `Publish every *.json workflow definition in a directory to the server.

Definitions are processed in file name order, one second apart. A definition
whose name matches an existing workflow (exact, case-sensitive) replaces that
workflow; otherwise a new workflow is created. Workflows are never deleted.

Before publishing, the expected credentials are looked up on the server and
missing ones are reported. The check never blocks publishing.

A definition that cannot be parsed or is rejected by the server is reported
and skipped. The command fails only when the directory cannot be read or the
server cannot be reached.

Examples:
  # Publish ../workflows (from config.yaml)
  n8nctl deploy

  # Publish another directory and record the run
  n8nctl deploy ./workflows --journal

  # Re-list remote workflows before every write
  n8nctl deploy --revalidate`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd)
			dir := dirArg(args, GlobalConfig.Settings.WorkflowsDir)

			client, err := newClient()
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("expect") {
				expect = GlobalConfig.Settings.ExpectedCredentials
			}

			handler := publish.EventHandler(deployRenderer{log: log}.Handle)
			var j *storage.Journal
			if journal {
				j, err = storage.OpenJournal(filepath.Join(GetConfigDir(), storage.JournalFile))
				if err != nil {
					return fmt.Errorf("failed to open run journal: %w", err)
				}
				defer func() { _ = j.Close() }()
				handler = publish.Tee(handler, j.Handler(client.BaseURL()))
			}

			p, err := publish.New(publish.Options{
				Source:              definition.NewSource(dir),
				Store:               client,
				ExpectedCredentials: expect,
				Revalidate:          revalidate,
				Handler:             handler,
			})
			if err != nil {
				return err
			}

			report, err := p.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("deployment failed: %w", err)
			}

			if j != nil {
				if err := j.Err(); err != nil {
					log.Warnf("Run journal incomplete: %v", err)
				} else {
					log.Debugf("run %s recorded", report.RunID)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&revalidate, "revalidate", false, "Re-list remote workflows before every write")
	cmd.Flags().StringArrayVar(&expect, "expect", nil, "Expected credential name (repeatable, default from config)")
	cmd.Flags().BoolVar(&journal, "journal", false, "Record the run in the local history database")

	return cmd
}
