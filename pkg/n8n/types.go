package n8n

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Workflow is a workflow document as stored on the server.
//
// The document is kept opaque: only the fields needed to correlate local
// definitions with remote ones are extracted.
type Workflow struct {
	ID   string
	Name string
	Raw  json.RawMessage
}

// NewWorkflow wraps a raw workflow document, reading its id and name.
// Numeric ids (older server versions) are returned in their decimal form.
func NewWorkflow(raw []byte) Workflow {
	doc := gjson.ParseBytes(raw)
	return Workflow{
		ID:   doc.Get("id").String(),
		Name: doc.Get("name").String(),
		Raw:  json.RawMessage(raw),
	}
}

// MarshalJSON returns the raw document unchanged.
func (w Workflow) MarshalJSON() ([]byte, error) {
	if len(w.Raw) == 0 {
		return []byte("null"), nil
	}
	return w.Raw, nil
}

// Credential is the metadata of a stored credential. Secret material is
// never returned by the server's list endpoint.
type Credential struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func newCredential(r gjson.Result) Credential {
	return Credential{
		ID:        r.Get("id").String(),
		Name:      r.Get("name").String(),
		Type:      r.Get("type").String(),
		CreatedAt: r.Get("createdAt").String(),
		UpdatedAt: r.Get("updatedAt").String(),
	}
}

// Execution is a past workflow run.
type Execution struct {
	ID         string
	WorkflowID string
	Status     string
	StartedAt  string
	StoppedAt  string
	Raw        json.RawMessage
}

func newExecution(r gjson.Result) Execution {
	return Execution{
		ID:         r.Get("id").String(),
		WorkflowID: r.Get("workflowId").String(),
		Status:     r.Get("status").String(),
		StartedAt:  r.Get("startedAt").String(),
		StoppedAt:  r.Get("stoppedAt").String(),
		Raw:        json.RawMessage(r.Raw),
	}
}

// MarshalJSON returns the raw document unchanged.
func (e Execution) MarshalJSON() ([]byte, error) {
	if len(e.Raw) == 0 {
		return []byte("null"), nil
	}
	return e.Raw, nil
}
