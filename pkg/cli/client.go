package cli

import (
	"log"
	"os"

	"github.com/dshills/n8nctl/pkg/n8n"
	"github.com/dshills/n8nctl/pkg/storage"
)

// APIKeyEnv overrides the API key stored in the keyring.
const APIKeyEnv = "N8N_API_KEY"

// newClient creates a server client from flags and config.yaml.
func newClient() (*n8n.Client, error) {
	url := baseURL()
	return n8n.NewClient(n8n.Config{
		BaseURL: url,
		APIKey:  apiKey(url),
		Timeout: timeout(),
	})
}

// apiKey returns the key from the environment or the keyring. A server
// without API authentication needs no key, so lookup failures are not errors.
func apiKey(url string) string {
	if key := os.Getenv(APIKeyEnv); key != "" {
		return key
	}
	key, err := storage.NewKeyringCredentialStore().Get(url)
	if err != nil {
		log.Printf("no api key for %s: %v", url, err)
		return ""
	}
	return key
}
