package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `
workspaces:
  - name: ml-research
    displayName: ML Research
    spec:
      roleBindings:
        - groups: [ml-team]
          role: editor
      directGrants:
        - user: alice@example.com
          role: owner
  - name: public-docs
    spec:
      anonymousAccess:
        enabled: true
        role: viewer
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workspaces.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestManifestClientLoad(t *testing.T) {
	client, err := NewManifestClient(writeManifest(t, testManifest))
	require.NoError(t, err)

	ws, err := client.GetWorkspace(context.Background(), "ml-research")
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, "ML Research", ws.DisplayName)
	require.Len(t, ws.Spec.RoleBindings, 1)
	assert.Equal(t, RoleEditor, ws.Spec.RoleBindings[0].Role)
	require.Len(t, ws.Spec.DirectGrants, 1)
	assert.Equal(t, "alice@example.com", ws.Spec.DirectGrants[0].User)

	docs, err := client.GetWorkspace(context.Background(), "public-docs")
	require.NoError(t, err)
	require.NotNil(t, docs.Spec.AnonymousAccess)
	assert.True(t, docs.Spec.AnonymousAccess.Enabled)
}

func TestManifestClientMissingWorkspace(t *testing.T) {
	client, err := NewManifestClient(writeManifest(t, testManifest))
	require.NoError(t, err)

	ws, err := client.GetWorkspace(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, ws)
}

func TestManifestClientList(t *testing.T) {
	client, err := NewManifestClient(writeManifest(t, testManifest))
	require.NoError(t, err)

	list, err := client.ListWorkspaces(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ml-research", list[0].Name)
	assert.Equal(t, "public-docs", list[1].Name)
}

func TestManifestClientRejectsBadFiles(t *testing.T) {
	_, err := NewManifestClient(writeManifest(t, "workspaces: [{displayName: no name}]"))
	assert.Error(t, err)

	_, err = NewManifestClient(writeManifest(t, `
workspaces:
  - name: dup
  - name: dup
`))
	assert.Error(t, err)

	_, err = NewManifestClient(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestManifestClientReloadKeepsPreviousOnError(t *testing.T) {
	path := writeManifest(t, testManifest)
	client, err := NewManifestClient(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("workspaces: [{name: ''}]"), 0o600))
	assert.Error(t, client.Reload())

	ws, err := client.GetWorkspace(context.Background(), "ml-research")
	require.NoError(t, err)
	assert.NotNil(t, ws)
}
