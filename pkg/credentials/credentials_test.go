package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/n8nctl/pkg/definition"
	"github.com/dshills/n8nctl/pkg/n8n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLister struct {
	creds []n8n.Credential
	err   error
}

func (l staticLister) ListCredentials(context.Context) ([]n8n.Credential, error) {
	return l.creds, l.err
}

func TestCheck(t *testing.T) {
	lister := staticLister{creds: []n8n.Credential{
		{ID: "1", Name: "Odoo account - Local", Type: "odooApi"},
		{ID: "2", Name: "salesforce account - odoo sandbox", Type: "salesforceOAuth2Api"},
	}}

	status, err := Check(context.Background(), lister, []string{"Salesforce account - Odoo Sandbox", "Odoo account - Local"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Odoo account - Local"}, status.Found)
	assert.Equal(t, []string{"Salesforce account - Odoo Sandbox"}, status.Missing, "names are case-sensitive")
	assert.Len(t, status.Available, 2)
	assert.False(t, status.Ready())
}

func TestCheckAllFound(t *testing.T) {
	lister := staticLister{creds: []n8n.Credential{{Name: "A"}, {Name: "B"}}}
	status, err := Check(context.Background(), lister, []string{"A", "B"})
	require.NoError(t, err)
	assert.True(t, status.Ready())

	status, err = Check(context.Background(), lister, nil)
	require.NoError(t, err)
	assert.True(t, status.Ready())
}

func TestCheckError(t *testing.T) {
	_, err := Check(context.Background(), staticLister{err: errors.New("connection refused")}, []string{"A"})
	assert.ErrorContains(t, err, "connection refused")

	var nilStatus *Status
	assert.False(t, nilStatus.Ready())
}

func writeDefinition(t *testing.T, dir, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0640))
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "a.json", `{"name":"A","nodes":[{"name":"Odoo","parameters":{"credentials":{"odooApi":{"name":"Odoo account - Local","id":null}}}}]}`)
	writeDefinition(t, dir, "b.json", `{"name":"B","nodes":[{"name":"SF","credentials":{"sf":{"name":"Salesforce","id":"99"}}}]}`)
	writeDefinition(t, dir, "c.json", `{broken`)

	report, err := Verify(definition.NewSource(dir))
	require.NoError(t, err)
	require.Len(t, report.Files, 3)

	assert.Equal(t, "A", report.Files[0].Workflow)
	assert.Len(t, report.Files[0].References, 1)
	assert.Empty(t, report.Files[0].Hardcoded())

	require.Len(t, report.Files[1].Hardcoded(), 1)
	assert.Equal(t, "99", report.Files[1].Hardcoded()[0].ID)

	assert.ErrorIs(t, report.Files[2].Err, definition.ErrInvalidJSON)
	assert.Equal(t, 1, report.HardcodedCount())
	assert.Equal(t, 1, report.FailedCount())
}

func TestVerifyMissingDirectory(t *testing.T) {
	_, err := Verify(definition.NewSource(filepath.Join(t.TempDir(), "nope")))
	assert.Error(t, err)
}

func TestRename(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "a.json", `{"name":"A","nodes":[{"name":"Odoo","credentials":{"odooApi":{"name":"Odoo 17 Local","id":null}}}]}`)
	untouched := `{"name":"B","nodes":[]}`
	writeDefinition(t, dir, "b.json", untouched)
	writeDefinition(t, dir, "c.json", `not json`)

	results, err := Rename(definition.NewSource(dir), map[string]string{"Odoo 17 Local": "Odoo account - Local"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 1, results[0].Changed)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 0, results[1].Changed)
	assert.Error(t, results[2].Err)

	data, err := os.ReadFile(filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name":"Odoo account - Local"`)

	info, err := os.Stat(filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())

	data, err = os.ReadFile(filepath.Join(dir, "b.json"))
	require.NoError(t, err)
	assert.Equal(t, untouched, string(data))

	_, err = os.Stat(filepath.Join(dir, "a.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}
