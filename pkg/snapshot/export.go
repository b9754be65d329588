package snapshot

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dshills/n8nctl/pkg/n8n"
)

// ExecutionLimit is the number of recent executions exported.
const ExecutionLimit = 50

// Store is the subset of the server API read by Export.
type Store interface {
	WorkflowLister
	ListCredentials(ctx context.Context) ([]n8n.Credential, error)
	ListExecutions(ctx context.Context, limit int) ([]n8n.Execution, error)
}

// CredentialMetadata is the exported form of a credential. Secrets are
// never part of it.
type CredentialMetadata struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Summary is written next to every export. A section that failed has its
// error message set and no item count.
type Summary struct {
	Timestamp        string       `json:"timestamp"`
	ExportedAt       string       `json:"exported_at"`
	Items            SummaryItems `json:"items"`
	WorkflowsError   string       `json:"workflows_error,omitempty"`
	CredentialsError string       `json:"credentials_error,omitempty"`
	ExecutionsError  string       `json:"executions_error,omitempty"`
}

// SummaryItems counts what each section exported.
type SummaryItems struct {
	Workflows   *int `json:"workflows,omitempty"`
	Credentials *int `json:"credentials,omitempty"`
	Executions  *int `json:"executions,omitempty"`
}

// ExportResult describes a completed export.
type ExportResult struct {
	Dir             string
	Summary         Summary
	SummaryFile     string
	Workflows       []Saved
	CredentialsFile string // empty if the section failed
	ExecutionsFile  string // empty if there were no executions
}

// Failed reports whether any section failed.
func (r *ExportResult) Failed() bool {
	s := r.Summary
	return s.WorkflowsError != "" || s.CredentialsError != "" || s.ExecutionsError != ""
}

// Export writes the server's configuration below dir:
//
//	workflows/<name>.json
//	credentials/credentials-metadata-<timestamp>.json
//	executions-<timestamp>.json
//	export-summary-<timestamp>.json
//
// Each section fails independently and its error is recorded in the
// summary. The returned error is reserved for failures to create the
// directories or to write the summary.
func Export(ctx context.Context, store Store, dir string, opts Options) (*ExportResult, error) {
	now := opts.now()
	ts := Timestamp(now)

	workflowsDir := filepath.Join(dir, "workflows")
	credentialsDir := filepath.Join(dir, "credentials")
	for _, d := range []string{dir, credentialsDir, workflowsDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	result := &ExportResult{
		Dir:     dir,
		Summary: Summary{Timestamp: ts, ExportedAt: isoTime(now)},
	}

	saved, err := exportWorkflows(ctx, store, workflowsDir, opts)
	result.Workflows = saved
	if err != nil {
		log.Printf("workflow export failed: %v", err)
		result.Summary.WorkflowsError = err.Error()
	} else {
		result.Summary.Items.Workflows = count(len(saved))
	}

	credsFile := filepath.Join(credentialsDir, "credentials-metadata-"+ts+".json")
	if n, err := exportCredentials(ctx, store, credsFile); err != nil {
		log.Printf("credential export failed: %v", err)
		result.Summary.CredentialsError = err.Error()
	} else {
		result.CredentialsFile = credsFile
		result.Summary.Items.Credentials = count(n)
	}

	execsFile := filepath.Join(dir, "executions-"+ts+".json")
	if n, err := exportExecutions(ctx, store, execsFile); err != nil {
		log.Printf("execution export failed: %v", err)
		result.Summary.ExecutionsError = err.Error()
	} else {
		result.Summary.Items.Executions = count(n)
		if n > 0 {
			result.ExecutionsFile = execsFile
		}
	}

	result.SummaryFile = filepath.Join(dir, "export-summary-"+ts+".json")
	if err := writeJSON(result.SummaryFile, result.Summary); err != nil {
		return result, err
	}
	return result, nil
}

func exportWorkflows(ctx context.Context, store WorkflowLister, dir string, opts Options) ([]Saved, error) {
	workflows, err := store.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	selected, err := opts.Filter.Select(workflows)
	if err != nil {
		return nil, err
	}
	return writeWorkflows(dir, selected)
}

func exportCredentials(ctx context.Context, store Store, path string) (int, error) {
	creds, err := store.ListCredentials(ctx)
	if err != nil {
		return 0, err
	}

	metadata := make([]CredentialMetadata, 0, len(creds))
	for _, c := range creds {
		metadata = append(metadata, CredentialMetadata{
			ID:        c.ID,
			Name:      c.Name,
			Type:      c.Type,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}
	if err := writeJSON(path, metadata); err != nil {
		return 0, err
	}
	return len(creds), nil
}

func exportExecutions(ctx context.Context, store Store, path string) (int, error) {
	executions, err := store.ListExecutions(ctx, ExecutionLimit)
	if err != nil {
		return 0, err
	}
	if len(executions) == 0 {
		return 0, nil
	}
	if err := writeJSON(path, executions); err != nil {
		return 0, err
	}
	return len(executions), nil
}

func count(n int) *int {
	return &n
}
