package publish

import (
	"sync"
	"time"
)

// EventType categorizes publish events.
type EventType string

const (
	// EventRunStarted is emitted once the definition files have been listed.
	EventRunStarted EventType = "run.started"
	// EventRunFailed is emitted when the run stops on a fatal error.
	EventRunFailed EventType = "run.failed"
	// EventRunCompleted is emitted after the last item.
	EventRunCompleted EventType = "run.completed"

	// EventCredentialFound is emitted for each expected credential present on the server.
	EventCredentialFound EventType = "credential.found"
	// EventCredentialMissing is emitted for each expected credential absent from the server.
	EventCredentialMissing EventType = "credential.missing"
	// EventCredentialCheckFailed is emitted when the credential list could not be fetched.
	EventCredentialCheckFailed EventType = "credential.check_failed"

	// EventItemCreated is emitted when a definition was created on the server.
	EventItemCreated EventType = "item.created"
	// EventItemUpdated is emitted when an existing workflow was replaced.
	EventItemUpdated EventType = "item.updated"
	// EventItemFailed is emitted when a definition could not be published.
	EventItemFailed EventType = "item.failed"
)

// Event is one step of a publish run.
type Event struct {
	Type     EventType
	Time     time.Time
	RunID    string
	Dir      string // source directory, set on run events
	Total    int    // number of definition files, set on run.started
	File     string
	Name     string // workflow name, or credential name on credential events
	RemoteID string
	Err      error
	Report   *Report // set on run.completed
}

// EventHandler receives events synchronously, in order.
type EventHandler func(Event)

// Tee returns a handler that forwards each event to every non-nil handler.
func Tee(handlers ...EventHandler) EventHandler {
	return func(e Event) {
		for _, h := range handlers {
			if h != nil {
				h(e)
			}
		}
	}
}

// Recorder collects events. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle records e.
func (r *Recorder) Handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []EventType {
	events := r.Events()
	types := make([]EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}
