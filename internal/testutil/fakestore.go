// Package testutil provides an in-memory workflow server for tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// APIPrefix is the path under which the fake server exposes the API.
const APIPrefix = "/api/v1"

// Request is a request observed by the fake server.
type Request struct {
	Method string
	Path   string
	Body   []byte
}

// StoredWorkflow is a workflow held by the fake server.
type StoredWorkflow struct {
	ID   string
	Name string
	Raw  json.RawMessage
}

// FakeStore is an in-memory implementation of the workflow server's REST API.
// The zero value is not usable; create one with NewFakeStore.
type FakeStore struct {
	mu          sync.Mutex
	workflows   []StoredWorkflow
	credentials []map[string]any
	executions  []map[string]any
	requests    []Request
	nextID      int

	// FailCreate maps a workflow name to the status returned for its creation.
	FailCreate map[string]int
	// FailUpdate maps a workflow name to the status returned for its update.
	FailUpdate map[string]int
	// FailListWorkflows, when non-zero, is returned for GET /workflows.
	FailListWorkflows int
	// FailCredentials, when non-zero, is returned for GET /credentials.
	FailCredentials int
	// FailExecutions, when non-zero, is returned for GET /executions.
	FailExecutions int
	// PageSize enables cursor pagination on list endpoints when positive.
	PageSize int
	// APIKey, when set, is required in the X-N8N-API-KEY header.
	APIKey string
}

// NewFakeStore returns an empty fake server state.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		FailCreate: make(map[string]int),
		FailUpdate: make(map[string]int),
		nextID:     1,
	}
}

// Start serves the fake store over HTTP for the duration of the test and
// returns the API base URL.
func (s *FakeStore) Start(t testing.TB) string {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv.URL + APIPrefix
}

// Handler returns the HTTP handler implementing the API.
func (s *FakeStore) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+APIPrefix+"/workflows", s.listWorkflows)
	mux.HandleFunc("POST "+APIPrefix+"/workflows", s.createWorkflow)
	mux.HandleFunc("PUT "+APIPrefix+"/workflows/{id}", s.updateWorkflow)
	mux.HandleFunc("GET "+APIPrefix+"/credentials", s.listCredentials)
	mux.HandleFunc("GET "+APIPrefix+"/executions", s.listExecutions)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body})
		s.mu.Unlock()

		if s.APIKey != "" && r.Header.Get("X-N8N-API-KEY") != s.APIKey {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		mux.ServeHTTP(w, r)
	})
}

// AddWorkflow stores a workflow with the given name and returns its id.
func (s *FakeStore) AddWorkflow(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.allocID()
	raw, _ := json.Marshal(map[string]any{"id": id, "name": name, "nodes": []any{}})
	s.workflows = append(s.workflows, StoredWorkflow{ID: id, Name: name, Raw: raw})
	return id
}

// AddCredential stores credential metadata.
func (s *FakeStore) AddCredential(name, credType string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.allocID()
	s.credentials = append(s.credentials, map[string]any{
		"id":        id,
		"name":      name,
		"type":      credType,
		"createdAt": "2024-05-01T10:00:00.000Z",
		"updatedAt": "2024-05-02T10:00:00.000Z",
	})
	return id
}

// AddExecution stores an execution record for a workflow.
func (s *FakeStore) AddExecution(workflowID, status string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.allocID()
	s.executions = append(s.executions, map[string]any{
		"id":         id,
		"workflowId": workflowID,
		"status":     status,
		"startedAt":  "2024-05-03T10:00:00.000Z",
		"stoppedAt":  "2024-05-03T10:00:01.000Z",
	})
	return id
}

// Workflows returns a copy of the stored workflows in insertion order.
func (s *FakeStore) Workflows() []StoredWorkflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StoredWorkflow(nil), s.workflows...)
}

// CountByName returns how many stored workflows carry the given name.
func (s *FakeStore) CountByName(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, wf := range s.workflows {
		if wf.Name == name {
			n++
		}
	}
	return n
}

// Requests returns a copy of every request received so far.
func (s *FakeStore) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Writes returns only the POST and PUT requests received so far.
func (s *FakeStore) Writes() []Request {
	var writes []Request
	for _, r := range s.Requests() {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			writes = append(writes, r)
		}
	}
	return writes
}

func (s *FakeStore) allocID() string {
	id := strconv.Itoa(s.nextID)
	s.nextID++
	return id
}

func (s *FakeStore) listWorkflows(w http.ResponseWriter, r *http.Request) {
	if s.FailListWorkflows != 0 {
		writeError(w, s.FailListWorkflows, "list failed")
		return
	}

	s.mu.Lock()
	items := make([]json.RawMessage, 0, len(s.workflows))
	for _, wf := range s.workflows {
		items = append(items, wf.Raw)
	}
	s.mu.Unlock()

	writePage(w, r, items, s.PageSize)
}

func (s *FakeStore) createWorkflow(w http.ResponseWriter, r *http.Request) {
	doc, ok := decodeObject(w, r)
	if !ok {
		return
	}
	name, _ := doc["name"].(string)
	if code := s.FailCreate[name]; code != 0 {
		writeError(w, code, "create rejected")
		return
	}

	s.mu.Lock()
	id := s.allocID()
	doc["id"] = id
	raw, _ := json.Marshal(doc)
	s.workflows = append(s.workflows, StoredWorkflow{ID: id, Name: name, Raw: raw})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, json.RawMessage(raw))
}

func (s *FakeStore) updateWorkflow(w http.ResponseWriter, r *http.Request) {
	doc, ok := decodeObject(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	name, _ := doc["name"].(string)
	if code := s.FailUpdate[name]; code != 0 {
		writeError(w, code, "update rejected")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, wf := range s.workflows {
		if wf.ID != id {
			continue
		}
		doc["id"] = id
		raw, _ := json.Marshal(doc)
		s.workflows[i] = StoredWorkflow{ID: id, Name: name, Raw: raw}
		writeJSON(w, http.StatusOK, json.RawMessage(raw))
		return
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("workflow %s not found", id))
}

func (s *FakeStore) listCredentials(w http.ResponseWriter, r *http.Request) {
	if s.FailCredentials != 0 {
		writeError(w, s.FailCredentials, "credentials unavailable")
		return
	}

	s.mu.Lock()
	items := make([]json.RawMessage, 0, len(s.credentials))
	for _, c := range s.credentials {
		raw, _ := json.Marshal(c)
		items = append(items, raw)
	}
	s.mu.Unlock()

	writePage(w, r, items, s.PageSize)
}

func (s *FakeStore) listExecutions(w http.ResponseWriter, r *http.Request) {
	if s.FailExecutions != 0 {
		writeError(w, s.FailExecutions, "executions unavailable")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	s.mu.Lock()
	items := make([]json.RawMessage, 0, len(s.executions))
	for _, e := range s.executions {
		if limit > 0 && len(items) == limit {
			break
		}
		raw, _ := json.Marshal(e)
		items = append(items, raw)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": items, "nextCursor": nil})
}

// writePage writes one page of items, using the item offset as the cursor.
func writePage(w http.ResponseWriter, r *http.Request, items []json.RawMessage, pageSize int) {
	if pageSize <= 0 {
		writeJSON(w, http.StatusOK, map[string]any{"data": items, "nextCursor": nil})
		return
	}

	start, _ := strconv.Atoi(r.URL.Query().Get("cursor"))
	if start > len(items) {
		start = len(items)
	}
	end := start + pageSize
	var next any
	if end < len(items) {
		next = strconv.Itoa(end)
	} else {
		end = len(items)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items[start:end], "nextCursor": next})
}

func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil || doc == nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return nil, false
	}
	return doc, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"message": msg})
}
