package cli

import (
	"fmt"

	"github.com/dshills/n8nctl/pkg/credentials"
	"github.com/dshills/n8nctl/pkg/definition"
	"github.com/spf13/cobra"
)

// NewVerifyCommand creates the verify command
func NewVerifyCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "verify [dir]",
		Short: "Check credential references in local workflow definitions",
		Long: `List the credential references of every workflow definition.

A reference should carry "id": null so the server resolves the credential
by name on import. A reference with a hardcoded id only works on the server
it was exported from and is reported as a warning.

No server connection is needed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd)
			dir := dirArg(args, GlobalConfig.Settings.WorkflowsDir)

			report, err := credentials.Verify(definition.NewSource(dir))
			if err != nil {
				return err
			}

			log.Infof("=== Verifying Workflow Credential Configuration ===")
			for _, file := range report.Files {
				log.Infof("")
				log.Infof("Checking: %s", file.File)
				if file.Err != nil {
					log.Failf("%s: %v", file.File, file.Err)
					continue
				}
				for _, ref := range file.References {
					if ref.Hardcoded() {
						log.Warnf("WARNING: %s has hardcoded ID: %s", ref.Node, ref.ID)
					} else if ref.Name != "" {
						log.Successf("%s: %s (ID: null - correct)", ref.Node, ref.Name)
					}
				}
			}

			hardcoded, failed := report.HardcodedCount(), report.FailedCount()
			log.Infof("")
			log.Infof("%d files checked, %d hardcoded ids, %d unreadable", len(report.Files), hardcoded, failed)
			if strict && (hardcoded > 0 || failed > 0) {
				return fmt.Errorf("verification failed: %d hardcoded ids, %d unreadable files", hardcoded, failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error when a hardcoded id or unreadable file is found")

	return cmd
}
