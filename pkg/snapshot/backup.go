// Package snapshot copies the server's workflows and credential metadata to
// local files.
//
// Three layouts are supported. Backup writes a timestamped folder of
// workflows. Export writes workflows, credential metadata, recent
// executions and a summary, recording a failure per section instead of
// stopping. QuickBackup writes workflows into a folder per day.
package snapshot

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/n8nctl/pkg/filter"
	"github.com/dshills/n8nctl/pkg/n8n"
)

// WorkflowLister lists the server's workflows.
type WorkflowLister interface {
	ListWorkflows(ctx context.Context) ([]n8n.Workflow, error)
}

// Options controls a snapshot.
type Options struct {
	// Now is the snapshot time. Zero means time.Now().
	Now time.Time
	// Filter selects the workflows to write. Nil writes all of them.
	Filter *filter.Filter
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// BackupResult describes a completed backup.
type BackupResult struct {
	Dir       string
	Total     int // workflows listed on the server
	Workflows []Saved
}

// Backup writes every workflow into dir/backup-<timestamp>/. Any failure
// stops the backup.
func Backup(ctx context.Context, store WorkflowLister, dir string, opts Options) (*BackupResult, error) {
	folder := filepath.Join(dir, "backup-"+Timestamp(opts.now()))
	return backupInto(ctx, store, dir, folder, opts, os.Mkdir)
}

// QuickBackup writes every workflow into dir/quick-backup/<date>/. Running
// it twice on the same day overwrites the earlier files.
func QuickBackup(ctx context.Context, store WorkflowLister, dir string, opts Options) (*BackupResult, error) {
	folder := filepath.Join(dir, "quick-backup", Date(opts.now()))
	return backupInto(ctx, store, dir, folder, opts, os.MkdirAll)
}

func backupInto(ctx context.Context, store WorkflowLister, dir, folder string, opts Options, mkdir func(string, os.FileMode) error) (*BackupResult, error) {
	workflows, err := store.ListWorkflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	selected, err := opts.Filter.Select(workflows)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := mkdir(folder, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup folder: %w", err)
	}

	log.Printf("backing up %d of %d workflows to %s", len(selected), len(workflows), folder)
	saved, err := writeWorkflows(folder, selected)
	return &BackupResult{Dir: folder, Total: len(workflows), Workflows: saved}, err
}
