// Package credentials inspects credential availability on the server and
// credential references in local workflow definitions.
package credentials

import (
	"context"
	"fmt"

	"github.com/dshills/n8nctl/pkg/n8n"
)

// Lister lists credential metadata from the server.
type Lister interface {
	ListCredentials(ctx context.Context) ([]n8n.Credential, error)
}

// Status is the outcome of an availability check.
type Status struct {
	Available []n8n.Credential // everything the server reported
	Found     []string         // expected names present on the server
	Missing   []string         // expected names absent from the server
}

// Ready reports whether every expected credential was found.
func (s *Status) Ready() bool {
	return s != nil && len(s.Missing) == 0
}

// Check lists the server's credentials and sorts the expected names into
// found and missing. Names are compared exactly. The result is advisory: a
// missing credential is not an error.
func Check(ctx context.Context, lister Lister, expected []string) (*Status, error) {
	creds, err := lister.ListCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	names := make(map[string]bool, len(creds))
	for _, c := range creds {
		names[c.Name] = true
	}

	status := &Status{Available: creds}
	for _, name := range expected {
		if names[name] {
			status.Found = append(status.Found, name)
		} else {
			status.Missing = append(status.Missing, name)
		}
	}
	return status, nil
}
