// Package publish reconciles a directory of workflow definitions with the
// workflows stored on the server.
//
// Each definition is matched to a remote workflow by exact name. A match is
// updated in place; a definition without a match is created. Remote
// workflows are never deleted. Definitions are processed one at a time in
// file name order with a fixed pause between them.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dshills/n8nctl/pkg/credentials"
	"github.com/dshills/n8nctl/pkg/definition"
	operr "github.com/dshills/n8nctl/pkg/errors"
	"github.com/dshills/n8nctl/pkg/n8n"
	"github.com/google/uuid"
)

// PaceInterval is the pause between two consecutive items.
const PaceInterval = time.Second

// Store is the subset of the server API used for publishing.
type Store interface {
	credentials.Lister
	ListWorkflows(ctx context.Context) ([]n8n.Workflow, error)
	CreateWorkflow(ctx context.Context, definition []byte) (n8n.Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, definition []byte) (n8n.Workflow, error)
}

// ErrStoreUnreachable wraps a failure to reach the server before any
// definition is published.
var ErrStoreUnreachable = errors.New("workflow store unreachable")

// Action is what was done for one definition.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// ItemResult is the outcome for one definition file.
type ItemResult struct {
	File     string
	Name     string // empty if the file could not be parsed
	Action   Action // empty on failure
	RemoteID string
	Err      error
}

// Failed reports whether the item could not be published.
func (r ItemResult) Failed() bool {
	return r.Err != nil
}

// Label returns the workflow name, or the file name when the name is unknown.
func (r ItemResult) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.File
}

// Report summarizes a run.
type Report struct {
	RunID          string
	StartedAt      time.Time
	CompletedAt    time.Time
	Credentials    *credentials.Status // nil if the check was skipped or failed
	CredentialsErr error
	Items          []ItemResult
	Created        int
	Updated        int
	Failed         int
}

func (r *Report) add(item ItemResult) {
	r.Items = append(r.Items, item)
	switch {
	case item.Failed():
		r.Failed++
	case item.Action == ActionCreated:
		r.Created++
	case item.Action == ActionUpdated:
		r.Updated++
	}
}

// Options configures a Publisher.
type Options struct {
	// Source is the directory of definitions to publish.
	Source definition.Source
	// Store is the server to publish to.
	Store Store
	// ExpectedCredentials are checked before publishing. The check is
	// advisory and skipped when the list is empty.
	ExpectedCredentials []string
	// Revalidate re-lists remote workflows before every write instead of
	// relying on the list taken at the start of the run.
	Revalidate bool
	// Handler receives progress events. May be nil.
	Handler EventHandler
	// Wait pauses between items. Defaults to a timer that honours ctx.
	Wait func(ctx context.Context, d time.Duration) error
}

// Publisher publishes a directory of definitions.
type Publisher struct {
	opts Options
}

// New creates a Publisher.
func New(opts Options) (*Publisher, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("publisher requires a store")
	}
	if opts.Source.Dir == "" {
		return nil, fmt.Errorf("publisher requires a source directory")
	}
	if opts.Wait == nil {
		opts.Wait = sleep
	}
	return &Publisher{opts: opts}, nil
}

// Run publishes every definition of the source directory.
//
// The returned error is reserved for conditions that stop the whole run: the
// directory cannot be listed, the server cannot be reached for the credential
// check or the initial workflow list, or ctx is cancelled. Per-item failures are recorded in the
// report and never stop the run.
func (p *Publisher) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: time.Now()}

	files, err := p.opts.Source.Files()
	if err != nil {
		return p.fail(report, err)
	}
	p.emit(Event{Type: EventRunStarted, RunID: report.RunID, Dir: p.opts.Source.Dir, Total: len(files)})

	if err := p.checkCredentials(ctx, report); err != nil {
		return p.fail(report, fmt.Errorf("%w: %w", ErrStoreUnreachable, err))
	}

	if len(files) > 0 {
		idx, err := p.snapshot(ctx)
		if err != nil {
			return p.fail(report, fmt.Errorf("%w: %w", ErrStoreUnreachable, err))
		}

		for i, file := range files {
			item := p.publishOne(ctx, idx, file)
			report.add(item)
			p.emitItem(report.RunID, item)

			if i < len(files)-1 {
				if err := p.opts.Wait(ctx, PaceInterval); err != nil {
					return p.fail(report, err)
				}
			}
		}
	}

	report.CompletedAt = time.Now()
	p.emit(Event{Type: EventRunCompleted, RunID: report.RunID, Dir: p.opts.Source.Dir, Report: report})
	return report, nil
}

func (p *Publisher) fail(report *Report, err error) (*Report, error) {
	report.CompletedAt = time.Now()
	p.emit(Event{Type: EventRunFailed, RunID: report.RunID, Dir: p.opts.Source.Dir, Err: err})
	return report, err
}

// checkCredentials reports expected credentials as found or missing. An
// answer from the server, even an error status, only produces a warning. An
// error without a response means the server is unreachable and is returned.
func (p *Publisher) checkCredentials(ctx context.Context, report *Report) error {
	if len(p.opts.ExpectedCredentials) == 0 {
		return nil
	}

	status, err := credentials.Check(ctx, p.opts.Store, p.opts.ExpectedCredentials)
	if err != nil {
		var se *n8n.StatusError
		if !errors.As(err, &se) {
			return err
		}
		log.Printf("credential check failed: %v", err)
		report.CredentialsErr = err
		p.emit(Event{Type: EventCredentialCheckFailed, RunID: report.RunID, Err: err})
		return nil
	}

	report.Credentials = status
	for _, name := range status.Found {
		p.emit(Event{Type: EventCredentialFound, RunID: report.RunID, Name: name})
	}
	for _, name := range status.Missing {
		p.emit(Event{Type: EventCredentialMissing, RunID: report.RunID, Name: name})
	}
	return nil
}

// publishOne loads one definition and creates or updates it.
func (p *Publisher) publishOne(ctx context.Context, idx *index, file string) ItemResult {
	def, err := p.opts.Source.Load(file)
	if err != nil {
		return ItemResult{File: file, Err: operr.NewItemError("load", file, "", err)}
	}
	item := ItemResult{File: file, Name: def.Name}

	if p.opts.Revalidate || idx.stale {
		fresh, err := p.snapshot(ctx)
		if err != nil {
			item.Err = operr.NewItemError("list", file, def.Name, err)
			return item
		}
		*idx = *fresh
	}

	if id, ok := idx.lookup(def.Name); ok {
		log.Printf("updating %q (%s) as %s", def.Name, file, id)
		if _, err := p.opts.Store.UpdateWorkflow(ctx, id, def.Raw); err != nil {
			item.Err = operr.NewItemError("update", file, def.Name, err)
			return item
		}
		item.Action = ActionUpdated
		item.RemoteID = id
		return item
	}

	log.Printf("creating %q (%s)", def.Name, file)
	created, err := p.opts.Store.CreateWorkflow(ctx, def.Raw)
	if err != nil {
		item.Err = operr.NewItemError("create", file, def.Name, err)
		return item
	}
	item.Action = ActionCreated
	item.RemoteID = created.ID
	idx.add(def.Name, created.ID)
	return item
}

func (p *Publisher) snapshot(ctx context.Context) (*index, error) {
	workflows, err := p.opts.Store.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	return newIndex(workflows), nil
}

func (p *Publisher) emitItem(runID string, item ItemResult) {
	e := Event{RunID: runID, File: item.File, Name: item.Name, RemoteID: item.RemoteID, Err: item.Err}
	switch {
	case item.Failed():
		e.Type = EventItemFailed
	case item.Action == ActionCreated:
		e.Type = EventItemCreated
	default:
		e.Type = EventItemUpdated
	}
	p.emit(e)
}

func (p *Publisher) emit(e Event) {
	if p.opts.Handler == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	p.opts.Handler(e)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
