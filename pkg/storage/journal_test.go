package storage

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/n8nctl/internal/testutil"
	"github.com/dshills/n8nctl/pkg/definition"
	"github.com/dshills/n8nctl/pkg/n8n"
	"github.com/dshills/n8nctl/pkg/publish"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "nested", JournalFile))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func runPublisher(t *testing.T, j *Journal, store *testutil.FakeStore, dir string) (*publish.Report, error) {
	t.Helper()
	baseURL := store.Start(t)
	client, err := n8n.NewClient(n8n.Config{BaseURL: baseURL})
	require.NoError(t, err)

	p, err := publish.New(publish.Options{
		Source:  definition.NewSource(dir),
		Store:   client,
		Handler: j.Handler(baseURL),
		Wait:    func(context.Context, time.Duration) error { return nil },
	})
	require.NoError(t, err)
	return p.Run(context.Background())
}

func TestOpenJournalIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), JournalFile)

	j, err := OpenJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = OpenJournal(path)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	var version int
	require.NoError(t, j.db.QueryRow("SELECT MAX(version) FROM migrations").Scan(&version))
	assert.Equal(t, MigrationVersion, version)
}

func TestJournalRecordsRun(t *testing.T) {
	j := openTestJournal(t)
	store := testutil.NewFakeStore()
	store.AddWorkflow("B")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"name":"A","nodes":[]}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"name":"B","nodes":[]}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.json"), []byte(`not json`), 0644))

	report, err := runPublisher(t, j, store, dir)
	require.NoError(t, err)
	require.NoError(t, j.Err())

	runs, err := j.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, report.RunID, run.ID)
	assert.Equal(t, RunCompleted, run.Status)
	assert.Equal(t, dir, run.Dir)
	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 1, run.Created)
	assert.Equal(t, 1, run.Updated)
	assert.Equal(t, 1, run.Failed)
	assert.False(t, run.CompletedAt.IsZero())
	assert.Contains(t, run.BaseURL, testutil.APIPrefix)

	items, err := j.Items(run.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "a.json", items[0].File)
	assert.Equal(t, "created", items[0].Outcome)
	assert.NotEmpty(t, items[0].RemoteID)
	assert.Equal(t, "updated", items[1].Outcome)
	assert.Equal(t, "failed", items[2].Outcome)
	assert.Contains(t, items[2].Error, "invalid JSON")
}

func TestJournalRecordsFatalRun(t *testing.T) {
	j := openTestJournal(t)
	store := testutil.NewFakeStore()
	store.FailListWorkflows = http.StatusServiceUnavailable
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"name":"A","nodes":[]}`), 0644))

	_, err := runPublisher(t, j, store, dir)
	require.Error(t, err)

	runs, err := j.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunFailed, runs[0].Status)
	assert.Equal(t, 1, runs[0].Total)
	assert.Contains(t, runs[0].Error, "unreachable")
}

func TestJournalRecordsRunFailedBeforeStart(t *testing.T) {
	j := openTestJournal(t)
	handler := j.Handler("http://localhost:5678/api/v1")

	handler(publish.Event{
		Type:  publish.EventRunFailed,
		Time:  time.Now(),
		RunID: "run-1",
		Dir:   "/missing",
		Err:   os.ErrNotExist,
	})
	require.NoError(t, j.Err())

	run, err := j.Run("run-1")
	require.NoError(t, err)
	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, "/missing", run.Dir)
}

func TestJournalRunsOrderAndLimit(t *testing.T) {
	j := openTestJournal(t)
	handler := j.Handler("http://x")
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"aaa-1", "bbb-2", "aaa-3"} {
		handler(publish.Event{Type: publish.EventRunStarted, Time: base.Add(time.Duration(i) * time.Minute), RunID: id})
	}
	require.NoError(t, j.Err())

	runs, err := j.Runs(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "aaa-3", runs[0].ID)
	assert.Equal(t, "bbb-2", runs[1].ID)
	assert.Equal(t, RunRunning, runs[0].Status)

	run, err := j.Run("bbb")
	require.NoError(t, err)
	assert.Equal(t, "bbb-2", run.ID)

	_, err = j.Run("aaa")
	assert.ErrorIs(t, err, ErrAmbiguousRun)
	_, err = j.Run("zzz")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
