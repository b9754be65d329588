package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/n8nctl/pkg/storage"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const maxAPIKeySize = 64 << 10

// isOnlyWhitespace checks if a byte slice contains only Unicode whitespace characters
// without allocating strings. Returns true if empty or whitespace-only.
func isOnlyWhitespace(data []byte) bool {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return false
		}
		if !unicode.IsSpace(r) {
			return false
		}
		i += size
	}
	return true
}

// NewAPIKeyCommand creates the apikey command
func NewAPIKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage server API keys",
		Long: `Manage n8n API keys in the system keyring (Keychain on macOS, Credential
Manager on Windows, Secret Service on Linux). Keys are stored per server
URL and never written to config files.

The N8N_API_KEY environment variable takes precedence over a stored key.`,
	}

	cmd.AddCommand(newAPIKeySetCommand())
	cmd.AddCommand(newAPIKeyDeleteCommand())
	cmd.AddCommand(newAPIKeyListCommand())

	return cmd
}

func newAPIKeySetCommand() *cobra.Command {
	var useStdin bool

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the API key for the server",
		Long: `Store the API key for the server selected by --base-url (or config.yaml).

Examples:
  # Interactive prompt, input hidden
  n8nctl apikey set

  # From stdin, for automation
  printf '%s' "$N8N_API_KEY" | n8nctl apikey set --stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := baseURL()

			var input []byte
			var err error
			if useStdin {
				input, err = io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxAPIKeySize+1))
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Enter API key for %s: ", url)
				input, err = term.ReadPassword(int(os.Stdin.Fd()))
				_, _ = fmt.Fprintln(cmd.OutOrStdout())
			}

			// Zero the buffer on all exit paths
			defer func() {
				for i := range input {
					input[i] = 0
				}
			}()

			if err != nil {
				return fmt.Errorf("failed to read api key: %w", err)
			}
			if len(input) > maxAPIKeySize {
				return fmt.Errorf("api key exceeds maximum size of %d bytes", maxAPIKeySize)
			}

			trimmed := bytes.TrimRight(input, "\r\n")
			if isOnlyWhitespace(trimmed) {
				return fmt.Errorf("api key cannot be empty")
			}

			if err := storage.NewKeyringCredentialStore().Set(url, string(trimmed)); err != nil {
				return err
			}

			newLogger(cmd).Successf("API key stored for %s", url)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useStdin, "stdin", false, "Read the API key from stdin")

	return cmd
}

func newAPIKeyDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove the API key for the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := baseURL()
			if err := storage.NewKeyringCredentialStore().Delete(url); err != nil {
				return err
			}
			newLogger(cmd).Successf("API key removed for %s", url)
			return nil
		},
	}
}

func newAPIKeyListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List servers with a stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := storage.NewKeyringCredentialStore().List()
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No API keys stored.")
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "\nStore one with: n8nctl apikey set")
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(keys, "\n"))
			return nil
		},
	}
}
