package publish

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/n8nctl/internal/testutil"
	"github.com/dshills/n8nctl/pkg/definition"
	operr "github.com/dshills/n8nctl/pkg/errors"
	"github.com/dshills/n8nctl/pkg/n8n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waits records pauses instead of sleeping.
type waits struct {
	calls []time.Duration
}

func (w *waits) wait(_ context.Context, d time.Duration) error {
	w.calls = append(w.calls, d)
	return nil
}

type fixture struct {
	dir      string
	store    *testutil.FakeStore
	client   *n8n.Client
	waits    *waits
	recorder *Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewFakeStore()
	client, err := n8n.NewClient(n8n.Config{BaseURL: store.Start(t), Timeout: 5 * time.Second})
	require.NoError(t, err)
	return &fixture{
		dir:      t.TempDir(),
		store:    store,
		client:   client,
		waits:    &waits{},
		recorder: &Recorder{},
	}
}

func (f *fixture) write(t *testing.T, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, file), []byte(content), 0644))
}

func (f *fixture) writeWorkflow(t *testing.T, file, name string) {
	f.write(t, file, `{"name":"`+name+`","nodes":[]}`)
}

func (f *fixture) publisher(t *testing.T, mutate func(*Options)) *Publisher {
	t.Helper()
	opts := Options{
		Source:  definition.NewSource(f.dir),
		Store:   f.client,
		Handler: f.recorder.Handle,
		Wait:    f.waits.wait,
	}
	if mutate != nil {
		mutate(&opts)
	}
	p, err := New(opts)
	require.NoError(t, err)
	return p
}

func writtenNames(t *testing.T, store *testutil.FakeStore) []string {
	t.Helper()
	var names []string
	for _, r := range store.Writes() {
		def, err := definition.Parse(r.Body)
		require.NoError(t, err)
		names = append(names, def.Name)
	}
	return names
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Source: definition.NewSource("x")})
	assert.Error(t, err)

	client, err := n8n.NewClient(n8n.Config{BaseURL: n8n.DefaultBaseURL})
	require.NoError(t, err)
	_, err = New(Options{Store: client})
	assert.Error(t, err)
}

func TestCreatesWhenNoMatch(t *testing.T) {
	f := newFixture(t)
	f.writeWorkflow(t, "orders.json", "Orders")

	report, err := f.publisher(t, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Created)
	assert.Zero(t, report.Updated)
	require.Len(t, report.Items, 1)
	assert.Equal(t, ActionCreated, report.Items[0].Action)
	assert.NotEmpty(t, report.Items[0].RemoteID)
	assert.Equal(t, 1, f.store.CountByName("Orders"))
}

func TestUpdatesMatchedWorkflowByID(t *testing.T) {
	f := newFixture(t)
	f.store.AddWorkflow("Other")
	id := f.store.AddWorkflow("Orders")
	f.write(t, "orders.json", `{"name":"Orders","nodes":[{"name":"Changed"}]}`)

	report, err := f.publisher(t, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Updated)
	assert.Zero(t, report.Created)
	assert.Equal(t, id, report.Items[0].RemoteID)

	writes := f.store.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, http.MethodPut, writes[0].Method)
	assert.Equal(t, testutil.APIPrefix+"/workflows/"+id, writes[0].Path)
	assert.Equal(t, 1, f.store.CountByName("Orders"))
}

func TestNameMatchIsCaseSensitive(t *testing.T) {
	f := newFixture(t)
	f.store.AddWorkflow("orders")
	f.writeWorkflow(t, "orders.json", "Orders")

	report, err := f.publisher(t, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, f.store.CountByName("orders"))
	assert.Equal(t, 1, f.store.CountByName("Orders"))
}

func TestDuplicateRemoteNamesMatchFirst(t *testing.T) {
	f := newFixture(t)
	first := f.store.AddWorkflow("Orders")
	f.store.AddWorkflow("Orders")
	f.writeWorkflow(t, "orders.json", "Orders")

	report, err := f.publisher(t, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, report.Items[0].RemoteID)
}

func TestDeterministicOrder(t *testing.T) {
	f := newFixture(t)
	f.writeWorkflow(t, "b.json", "B")
	f.writeWorkflow(t, "a.json", "A")
	f.writeWorkflow(t, "c.json", "C")

	report, err := f.publisher(t, nil).Run(context.Background())
	require.NoError(t, err)

	files := make([]string, 0, len(report.Items))
	for _, item := range report.Items {
		files = append(files, item.File)
	}
	assert.Equal(t, []string{"a.json", "b.json", "c.json"}, files)
	assert.Equal(t, []string{"A", "B", "C"}, writtenNames(t, f.store))
}

func TestFaultIsolation(t *testing.T) {
	f := newFixture(t)
	f.writeWorkflow(t, "a.json", "A")
	f.write(t, "b.json", `{"name": "B", "nodes": [`)
	f.writeWorkflow(t, "c.json", "C")

	report, err := f.publisher(t, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Items, 3)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, report.Failed)

	failed := report.Items[1]
	assert.True(t, failed.Failed())
	assert.Equal(t, "b.json", failed.Label())
	assert.ErrorIs(t, failed.Err, definition.ErrInvalidJSON)

	var itemErr *operr.ItemError
	require.True(t, errors.As(failed.Err, &itemErr))
	assert.Equal(t, "load", itemErr.Operation)

	assert.Equal(t, []string{"A", "C"}, writtenNames(t, f.store))
}

func TestRemoteRejectionIsPerItem(t *testing.T) {
	f := newFixture(t)
	f.store.AddWorkflow("B")
	f.store.FailCreate["A"] = http.StatusBadRequest
	f.store.FailUpdate["B"] = http.StatusInternalServerError
	f.writeWorkflow(t, "a.json", "A")
	f.writeWorkflow(t, "b.json", "B")
	f.writeWorkflow(t, "c.json", "C")

	report, err := f.publisher(t, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Created)
	assert.True(t, n8n.IsStatus(report.Items[0].Err, http.StatusBadRequest))
	assert.True(t, n8n.IsStatus(report.Items[1].Err, http.StatusInternalServerError))
	assert.Contains(t, report.Items[1].Err.Error(), "update B")
	assert.Equal(t, ActionCreated, report.Items[2].Action)
}

func TestTransportErrorIsPerItem(t *testing.T) {
	f := newFixture(t)
	f.store.AddWorkflow("B")
	handler := f.store.Handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			handler.ServeHTTP(w, r)
			return
		}
		// Drop the connection without answering.
		if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
			_ = conn.Close()
		}
	}))
	t.Cleanup(srv.Close)

	client, err := n8n.NewClient(n8n.Config{BaseURL: srv.URL + testutil.APIPrefix, Timeout: 5 * time.Second})
	require.NoError(t, err)
	f.client = client

	f.writeWorkflow(t, "a.json", "A")
	f.writeWorkflow(t, "b.json", "B")
	f.writeWorkflow(t, "c.json", "C")

	report, err := f.publisher(t, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Updated)

	failed := report.Items[1]
	var itemErr *operr.ItemError
	require.True(t, errors.As(failed.Err, &itemErr))
	assert.Equal(t, "update", itemErr.Operation)
	assert.Equal(t, "B", itemErr.Name)

	var statusErr *n8n.StatusError
	assert.False(t, errors.As(failed.Err, &statusErr))
	assert.Equal(t, []string{"A", "C"}, writtenNames(t, f.store))
}

func TestIdempotentSecondRun(t *testing.T) {
	f := newFixture(t)
	f.writeWorkflow(t, "a.json", "A")
	f.writeWorkflow(t, "b.json", "B")

	first, err := f.publisher(t, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	second, err := f.publisher(t, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 2, second.Updated)
	assert.Len(t, f.store.Workflows(), 2)
}

func TestDuplicateLocalNamesCreateOnce(t *testing.T) {
	for _, revalidate := range []bool{false, true} {
		t.Run(map[bool]string{false: "snapshot", true: "revalidate"}[revalidate], func(t *testing.T) {
			f := newFixture(t)
			f.writeWorkflow(t, "a.json", "Same")
			f.writeWorkflow(t, "b.json", "Same")

			report, err := f.publisher(t, func(o *Options) { o.Revalidate = revalidate }).Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, report.Created)
			assert.Equal(t, 1, report.Updated)
			assert.Equal(t, 1, f.store.CountByName("Same"))
		})
	}
}

func TestRevalidateListsBeforeEveryItem(t *testing.T) {
	countLists := func(store *testutil.FakeStore) int {
		n := 0
		for _, r := range store.Requests() {
			if r.Method == http.MethodGet && strings.HasSuffix(r.Path, "/workflows") {
				n++
			}
		}
		return n
	}

	f := newFixture(t)
	f.writeWorkflow(t, "a.json", "A")
	f.writeWorkflow(t, "b.json", "B")
	f.writeWorkflow(t, "c.json", "C")
	_, err := f.publisher(t, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, countLists(f.store))

	g := newFixture(t)
	g.writeWorkflow(t, "a.json", "A")
	g.writeWorkflow(t, "b.json", "B")
	g.writeWorkflow(t, "c.json", "C")
	_, err = g.publisher(t, func(o *Options) { o.Revalidate = true }).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, countLists(g.store))
}

func TestPacingBetweenItems(t *testing.T) {
	f := newFixture(t)
	f.writeWorkflow(t, "a.json", "A")
	f.write(t, "b.json", `broken`)
	f.writeWorkflow(t, "c.json", "C")

	_, err := f.publisher(t, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{PaceInterval, PaceInterval}, f.waits.calls)
	assert.Equal(t, time.Second, PaceInterval)
}

func TestCancelledWaitStopsRun(t *testing.T) {
	f := newFixture(t)
	f.writeWorkflow(t, "a.json", "A")
	f.writeWorkflow(t, "b.json", "B")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	report, err := f.publisher(t, func(o *Options) {
		o.Wait = func(ctx context.Context, d time.Duration) error {
			cancel()
			return sleep(ctx, d)
		}
	}).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, report.Items, 1)
	assert.Equal(t, []string{"A"}, writtenNames(t, f.store))
	assert.Equal(t, EventRunFailed, f.recorder.Types()[len(f.recorder.Types())-1])
}

func TestSleepHonoursDuration(t *testing.T) {
	start := time.Now()
	require.NoError(t, sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestMissingDirectoryIsFatal(t *testing.T) {
	f := newFixture(t)
	p := f.publisher(t, func(o *Options) {
		o.Source = definition.NewSource(filepath.Join(f.dir, "missing"))
		o.ExpectedCredentials = []string{"A"}
	})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.store.Requests(), "no work is attempted after a setup failure")
	assert.Equal(t, []EventType{EventRunFailed}, f.recorder.Types())
}

func TestUnreachableStoreIsFatal(t *testing.T) {
	f := newFixture(t)
	f.store.FailListWorkflows = http.StatusServiceUnavailable
	f.writeWorkflow(t, "a.json", "A")

	_, err := f.publisher(t, nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrStoreUnreachable)
	assert.Empty(t, f.store.Writes())
}

func TestEmptyDirectory(t *testing.T) {
	f := newFixture(t)

	report, err := f.publisher(t, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Items)
	assert.Empty(t, f.store.Requests())
	assert.Equal(t, []EventType{EventRunStarted, EventRunCompleted}, f.recorder.Types())
}

func TestCredentialsAreAdvisory(t *testing.T) {
	f := newFixture(t)
	f.writeWorkflow(t, "a.json", "A")
	f.writeWorkflow(t, "b.json", "B")

	report, err := f.publisher(t, func(o *Options) {
		o.ExpectedCredentials = []string{"Salesforce account - Odoo Sandbox", "Odoo account - Local"}
	}).Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, report.Credentials)
	assert.Len(t, report.Credentials.Missing, 2)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, []EventType{
		EventRunStarted,
		EventCredentialMissing,
		EventCredentialMissing,
		EventItemCreated,
		EventItemCreated,
		EventRunCompleted,
	}, f.recorder.Types())
}

func TestCredentialCheckFailureIsAdvisory(t *testing.T) {
	f := newFixture(t)
	f.store.FailCredentials = http.StatusInternalServerError
	f.store.AddWorkflow("A")
	f.writeWorkflow(t, "a.json", "A")

	report, err := f.publisher(t, func(o *Options) {
		o.ExpectedCredentials = []string{"X"}
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Nil(t, report.Credentials)
	assert.Error(t, report.CredentialsErr)
	assert.Equal(t, 1, report.Updated)
	assert.Contains(t, f.recorder.Types(), EventCredentialCheckFailed)
}

func TestCredentialCheckWithoutServerIsFatal(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client, err := n8n.NewClient(n8n.Config{BaseURL: srv.URL + testutil.APIPrefix, Timeout: 5 * time.Second})
	require.NoError(t, err)
	f.client = client

	report, err := f.publisher(t, func(o *Options) {
		o.ExpectedCredentials = []string{"X"}
	}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnreachable)
	assert.Empty(t, report.Items)
	assert.Equal(t, []EventType{EventRunStarted, EventRunFailed}, f.recorder.Types())
}

func TestCredentialFoundEvents(t *testing.T) {
	f := newFixture(t)
	f.store.AddCredential("Odoo account - Local", "odooApi")

	_, err := f.publisher(t, func(o *Options) {
		o.ExpectedCredentials = []string{"Odoo account - Local"}
	}).Run(context.Background())
	require.NoError(t, err)

	events := f.recorder.Events()
	require.Len(t, events, 3)
	assert.Equal(t, EventCredentialFound, events[1].Type)
	assert.Equal(t, "Odoo account - Local", events[1].Name)
}

func TestEventsCarryRunContext(t *testing.T) {
	f := newFixture(t)
	f.writeWorkflow(t, "a.json", "A")

	report, err := f.publisher(t, nil).Run(context.Background())
	require.NoError(t, err)

	events := f.recorder.Events()
	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, report.RunID, e.RunID)
		assert.False(t, e.Time.IsZero())
	}
	assert.Equal(t, 1, events[0].Total)
	assert.Equal(t, f.dir, events[0].Dir)
	assert.Equal(t, "A", events[1].Name)
	assert.Same(t, report, events[2].Report)
}

func TestStaleIndexAfterCreateWithoutID(t *testing.T) {
	store := &stubStore{createID: ""}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"name":"A","nodes":[]}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"name":"B","nodes":[]}`), 0644))

	p, err := New(Options{Source: definition.NewSource(dir), Store: store, Wait: (&waits{}).wait})
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.lists, "a create without id forces a re-list before the next item")
}

type stubStore struct {
	createID string
	lists    int
}

func (s *stubStore) ListCredentials(context.Context) ([]n8n.Credential, error) { return nil, nil }

func (s *stubStore) ListWorkflows(context.Context) ([]n8n.Workflow, error) {
	s.lists++
	return nil, nil
}

func (s *stubStore) CreateWorkflow(_ context.Context, def []byte) (n8n.Workflow, error) {
	return n8n.Workflow{ID: s.createID}, nil
}

func (s *stubStore) UpdateWorkflow(_ context.Context, id string, _ []byte) (n8n.Workflow, error) {
	return n8n.Workflow{ID: id}, nil
}

func TestTee(t *testing.T) {
	var a, b Recorder
	h := Tee(a.Handle, nil, b.Handle)
	h(Event{Type: EventRunStarted})
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}
