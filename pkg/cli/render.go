package cli

import (
	"errors"

	"github.com/dshills/n8nctl/internal/logging"
	operr "github.com/dshills/n8nctl/pkg/errors"
	"github.com/dshills/n8nctl/pkg/publish"
)

// deployRenderer turns publish events into console lines.
type deployRenderer struct {
	log logging.Logger
}

func (r deployRenderer) Handle(e publish.Event) {
	switch e.Type {
	case publish.EventRunStarted:
		r.log.Infof("Starting workflow deployment...")
		r.log.Debugf("%d definitions in %s", e.Total, e.Dir)
	case publish.EventCredentialFound:
		r.log.Successf("Credential found: %q", e.Name)
	case publish.EventCredentialMissing:
		r.log.Warnf("Warning: credential %q not found", e.Name)
	case publish.EventCredentialCheckFailed:
		r.log.Warnf("Could not check credentials: %v", e.Err)
	case publish.EventItemCreated:
		r.log.Successf("Created: %s", e.Name)
	case publish.EventItemUpdated:
		r.log.Successf("Updated: %s", e.Name)
	case publish.EventItemFailed:
		label := e.Name
		if label == "" {
			label = e.File
		}
		r.log.Failf("Failed to deploy %s: %v", label, cause(e.Err))
	case publish.EventRunCompleted:
		if rep := e.Report; rep != nil {
			r.log.Infof("Deployment completed! %d created, %d updated, %d failed", rep.Created, rep.Updated, rep.Failed)
		}
	}
}

// cause strips the item context already shown on the line.
func cause(err error) error {
	var itemErr *operr.ItemError
	if errors.As(err, &itemErr) && itemErr.Cause != nil {
		return itemErr.Cause
	}
	return err
}
