// Package n8n is a small client for the workflow server's public REST API.
//
// Only the calls needed by the operational commands are implemented:
// listing, creating and updating workflows, listing credential metadata and
// listing recent executions. Calls are synchronous; the client never retries.
package n8n

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the API root of a locally running server.
	DefaultBaseURL = "http://localhost:5678/api/v1"
	// DefaultTimeout bounds every request when Config.Timeout is zero.
	DefaultTimeout = 30 * time.Second
	// APIKeyHeader carries the API key when one is configured.
	APIKeyHeader = "X-N8N-API-KEY"

	maxResponseSize = 64 << 20
)

// Config holds client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// HTTPClient overrides the transport. Its Timeout is left untouched.
	HTTPClient *http.Client
}

// Client talks to one server instance.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the server at config.BaseURL.
func NewClient(config Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if base == "" {
		return nil, ErrEmptyBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    base,
		apiKey:     config.APIKey,
		httpClient: httpClient,
	}, nil
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListWorkflows returns every workflow on the server, following pagination.
func (c *Client) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	items, err := c.list(ctx, "/workflows", nil, true)
	if err != nil {
		return nil, err
	}

	workflows := make([]Workflow, 0, len(items))
	for _, item := range items {
		workflows = append(workflows, NewWorkflow([]byte(item.Raw)))
	}
	return workflows, nil
}

// CreateWorkflow posts a new workflow. The server assigns its id.
//
// If the server's answer cannot be parsed the workflow is still considered
// created and a Workflow without an ID is returned.
func (c *Client) CreateWorkflow(ctx context.Context, definition []byte) (Workflow, error) {
	if !gjson.ValidBytes(definition) {
		return Workflow{}, ErrInvalidWorkflowJSON
	}

	body, err := c.do(ctx, http.MethodPost, "/workflows", definition)
	if err != nil {
		return Workflow{}, err
	}
	if !gjson.ValidBytes(body) {
		log.Printf("create workflow: response is not JSON (%d bytes)", len(body))
		return Workflow{Name: gjson.GetBytes(definition, "name").String()}, nil
	}
	return NewWorkflow(body), nil
}

// UpdateWorkflow replaces the workflow with the given id.
func (c *Client) UpdateWorkflow(ctx context.Context, id string, definition []byte) (Workflow, error) {
	if id == "" {
		return Workflow{}, ErrEmptyWorkflowID
	}
	if !gjson.ValidBytes(definition) {
		return Workflow{}, ErrInvalidWorkflowJSON
	}

	body, err := c.do(ctx, http.MethodPut, "/workflows/"+url.PathEscape(id), definition)
	if err != nil {
		return Workflow{}, err
	}
	if !gjson.ValidBytes(body) {
		return Workflow{ID: id, Name: gjson.GetBytes(definition, "name").String()}, nil
	}
	wf := NewWorkflow(body)
	if wf.ID == "" {
		wf.ID = id
	}
	return wf, nil
}

// ListCredentials returns the metadata of every stored credential.
func (c *Client) ListCredentials(ctx context.Context) ([]Credential, error) {
	items, err := c.list(ctx, "/credentials", nil, true)
	if err != nil {
		return nil, err
	}

	creds := make([]Credential, 0, len(items))
	for _, item := range items {
		creds = append(creds, newCredential(item))
	}
	return creds, nil
}

// ListExecutions returns at most limit recent executions (a single page).
func (c *Client) ListExecutions(ctx context.Context, limit int) ([]Execution, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	items, err := c.list(ctx, "/executions", query, false)
	if err != nil {
		return nil, err
	}

	execs := make([]Execution, 0, len(items))
	for _, item := range items {
		execs = append(execs, newExecution(item))
	}
	return execs, nil
}

// list reads the "data" array of a list endpoint. When follow is set, the
// "nextCursor" field is followed until it is empty or repeats.
func (c *Client) list(ctx context.Context, path string, query url.Values, follow bool) ([]gjson.Result, error) {
	var items []gjson.Result
	seen := make(map[string]bool)
	cursor := ""

	for {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		target := path
		if len(q) > 0 {
			target += "?" + q.Encode()
		}

		body, err := c.do(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		if !gjson.ValidBytes(body) {
			return nil, fmt.Errorf("GET %s: %w: body is not JSON", path, ErrUnexpectedResponse)
		}

		doc := gjson.ParseBytes(body)
		data := doc.Get("data")
		if !data.IsArray() {
			return nil, fmt.Errorf("GET %s: %w: missing data array", path, ErrUnexpectedResponse)
		}
		items = append(items, data.Array()...)

		if !follow {
			return items, nil
		}
		cursor = doc.Get("nextCursor").String()
		if cursor == "" || seen[cursor] {
			return items, nil
		}
		seen[cursor] = true
	}
}

// do performs one request and returns the response body of a 2xx answer.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	log.Printf("%s %s", method, c.baseURL+path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(method, path, resp.StatusCode, data)
	}
	return data, nil
}
