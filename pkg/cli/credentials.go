package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dshills/n8nctl/pkg/credentials"
	"github.com/dshills/n8nctl/pkg/definition"
	"github.com/spf13/cobra"
)

// NewCredentialsCommand creates the credentials command
func NewCredentialsCommand() *cobra.Command {
	var expect []string

	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "List server credentials and check the expected ones",
		Long: `List the credentials stored on the server (metadata only) and check that
every expected credential name exists.

Workflows reference credentials by name. If the names on your server differ
from the ones in the workflow files, either:
  1. rename the references in the workflow files
     (n8nctl rename-credentials --map "Old name=New name"), or
  2. create credentials with the expected names in the n8n UI.

To check by hand:
  1. Open n8n in your browser (http://localhost:5678)
  2. Go to "Credentials" in the left sidebar
  3. Note down the exact names of your credentials
You can also import one workflow and check whether it shows
"Credential found" or "Credential not found".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd)
			if !cmd.Flags().Changed("expect") {
				expect = GlobalConfig.Settings.ExpectedCredentials
			}

			client, err := newClient()
			if err != nil {
				return err
			}

			log.Debugf("fetching credentials from %s", client.BaseURL())
			status, err := credentials.Check(cmd.Context(), client, expect)
			if err != nil {
				log.Infof("")
				log.Infof("Make sure:")
				log.Infof("1. n8n is running on %s", client.BaseURL())
				log.Infof("2. You have created credentials in the n8n UI")
				return err
			}

			log.Infof("=== Available Credentials ===")
			if len(status.Available) == 0 {
				log.Infof("No credentials found.")
				log.Infof("Please create credentials in the n8n UI first.")
			} else {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "NAME\tTYPE\tID")
				for _, c := range status.Available {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Type, c.ID)
				}
				_ = w.Flush()
			}

			if len(expect) == 0 {
				return nil
			}

			log.Infof("")
			log.Infof("=== Credential Status ===")
			for _, name := range status.Found {
				log.Successf("%q found", name)
			}
			for _, name := range status.Missing {
				log.Warnf("%q not found", name)
			}

			log.Infof("")
			if status.Ready() {
				log.Successf("Credentials are properly configured!")
				log.Infof("You can now deploy your workflows.")
			} else {
				log.Infof("If your credentials have different names, update the workflow files")
				log.Infof("with n8nctl rename-credentials or create credentials with the expected names.")
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&expect, "expect", nil, "Expected credential name (repeatable, default from config)")

	return cmd
}

// NewRenameCredentialsCommand creates the rename-credentials command
func NewRenameCredentialsCommand() *cobra.Command {
	var mappings []string

	cmd := &cobra.Command{
		Use:   "rename-credentials [dir]",
		Short: "Rename credential references in local workflow definitions",
		Long: `Rewrite the name of every credential reference whose name matches a
mapping. Only the reference names change; the rest of each file is kept
byte for byte. Files without a matching reference are not touched.

Mappings come from --map flags, or from credential_renames in config.yaml.

Examples:
  n8nctl rename-credentials --map "Salesforce Sandbox=Salesforce account - Odoo Sandbox"
  n8nctl rename-credentials ./workflows --map "Odoo 17 Local=Odoo account - Local"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd)
			dir := dirArg(args, GlobalConfig.Settings.WorkflowsDir)

			renames, err := parseMappings(mappings)
			if err != nil {
				return err
			}
			if len(renames) == 0 {
				renames = GlobalConfig.Settings.CredentialRenames
			}
			if len(renames) == 0 {
				return fmt.Errorf("no renames given (use --map OLD=NEW or credential_renames in %s)", GetConfigPath())
			}

			olds := make([]string, 0, len(renames))
			for old := range renames {
				olds = append(olds, old)
			}
			sort.Strings(olds)
			for _, old := range olds {
				log.Debugf("%q -> %q", old, renames[old])
			}

			results, err := credentials.Rename(definition.NewSource(dir), renames)
			if err != nil {
				return err
			}

			updated := 0
			for _, r := range results {
				switch {
				case r.Err != nil:
					log.Failf("%s: %v", r.File, r.Err)
				case r.Changed > 0:
					updated++
					log.Successf("Updated %s (%d references)", r.File, r.Changed)
				default:
					log.Debugf("%s unchanged", r.File)
				}
			}
			log.Infof("Credential names updated in %d of %d workflow files", updated, len(results))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&mappings, "map", nil, "Rename OLD=NEW (repeatable)")

	return cmd
}

// parseMappings parses OLD=NEW pairs. Names may contain '=' after the first.
func parseMappings(pairs []string) (map[string]string, error) {
	renames := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		old, name, ok := strings.Cut(pair, "=")
		if !ok || old == "" || name == "" {
			return nil, fmt.Errorf("invalid mapping %q (expected OLD=NEW)", pair)
		}
		renames[old] = name
	}
	return renames, nil
}
