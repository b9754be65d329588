package cli

import (
	"fmt"
	"path/filepath"

	"github.com/dshills/n8nctl/pkg/filter"
	"github.com/dshills/n8nctl/pkg/snapshot"
	"github.com/spf13/cobra"
)

// NewBackupCommand creates the backup command
func NewBackupCommand() *cobra.Command {
	var (
		dir   string
		where string
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up every workflow into a timestamped folder",
		Long: `Download every workflow from the server into <dir>/backup-<timestamp>/,
one pretty-printed JSON file per workflow.

File names are derived from workflow names: characters outside A-Z, a-z
and 0-9 become underscores and the result is lowercased. Workflows whose
names map to the same file get _2, _3, ... suffixes.

Examples:
  n8nctl backup
  n8nctl backup --dir /var/backups/n8n
  n8nctl backup --where 'active'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd)
			if dir == "" {
				dir = GlobalConfig.Settings.BackupsDir
			}

			f, err := filter.Compile(where)
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}

			log.Infof("Starting backup...")
			result, err := snapshot.Backup(cmd.Context(), client, dir, snapshot.Options{Filter: f})
			if result != nil {
				for _, saved := range result.Workflows {
					log.Successf("Backed up: %s", saved.Name)
				}
			}
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			log.Infof("Backup completed! Saved %d workflows to %s", len(result.Workflows), result.Dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Backup directory (default from config, ../backups)")
	cmd.Flags().StringVar(&where, "where", "", "Only back up workflows matching this expression")

	return cmd
}

// NewExportCommand creates the export command
func NewExportCommand() *cobra.Command {
	var (
		dir   string
		quick bool
		where string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export workflows, credential metadata and recent executions",
		Long: `Export the server's configuration:

  <dir>/workflows/<name>.json
  <dir>/credentials/credentials-metadata-<timestamp>.json
  <dir>/executions-<timestamp>.json        (last 50, when any)
  <dir>/export-summary-<timestamp>.json

Credential metadata contains id, name, type and timestamps only, never
secrets. Each section is exported independently; a failure is reported and
recorded in the summary without stopping the others.

With --quick only workflows are written, into <dir>/quick-backup/<date>/.

Expressions for --where see the workflow's fields, for example:
  active && len(nodes) > 3
  "prod" in map(tags, .name)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd)
			if dir == "" {
				dir = GlobalConfig.Settings.ExportsDir
			}

			f, err := filter.Compile(where)
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			opts := snapshot.Options{Filter: f}

			if quick {
				log.Infof("Creating quick backup...")
				result, err := snapshot.QuickBackup(cmd.Context(), client, dir, opts)
				if err != nil {
					return fmt.Errorf("quick backup failed: %w", err)
				}
				log.Successf("Quick backup created: %s", result.Dir)
				log.Successf("Backed up %d workflows", len(result.Workflows))
				return nil
			}

			log.Infof("Starting n8n configuration export...")
			result, err := snapshot.Export(cmd.Context(), client, dir, opts)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			s := result.Summary
			if s.WorkflowsError != "" {
				log.Failf("Failed to export workflows: %s", s.WorkflowsError)
			}
			for _, saved := range result.Workflows {
				log.Successf("Exported workflow: %s", saved.Name)
			}
			if s.CredentialsError != "" {
				log.Failf("Failed to export credentials: %s", s.CredentialsError)
			} else {
				log.Successf("Exported metadata for %d credentials", *s.Items.Credentials)
			}
			if s.ExecutionsError != "" {
				log.Failf("Failed to export executions: %s", s.ExecutionsError)
			} else if n := *s.Items.Executions; n > 0 {
				log.Successf("Exported %d recent executions", n)
			}

			location, err := filepath.Abs(result.Dir)
			if err != nil {
				location = result.Dir
			}
			log.Infof("")
			log.Infof("=== Export Summary ===")
			log.Infof("Timestamp: %s", s.Timestamp)
			log.Infof("Workflows: %d", countOf(s.Items.Workflows))
			log.Infof("Credentials: %d", countOf(s.Items.Credentials))
			log.Infof("Executions: %d", countOf(s.Items.Executions))
			log.Infof("Export location: %s", location)
			log.Infof("=====================")
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Export directory (default from config, ../exports)")
	cmd.Flags().BoolVarP(&quick, "quick", "q", false, "Only back up workflows, into quick-backup/<date>/")
	cmd.Flags().StringVar(&where, "where", "", "Only export workflows matching this expression")

	return cmd
}

func countOf(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
