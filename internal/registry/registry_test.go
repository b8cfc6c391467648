package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhilosopherRex/snapper/internal/lifecycle"
	"github.com/PhilosopherRex/snapper/internal/manifest"
)

func testManifest(id string) *manifest.Manifest {
	return &manifest.Manifest{
		ID:          id,
		Name:        "Test App",
		Entry:       "./index.js",
		Permissions: []manifest.Permission{manifest.PermStorageRead},
		OpenClaw:    manifest.OpenClaw{MinVersion: "1.0.0"},
	}
}

func TestRegister_And_Accessors(t *testing.T) {
	r := New()
	app, err := r.Register(testManifest("a-app"))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateRegistered, app.State())
	assert.True(t, r.Has("a-app"))
	assert.Equal(t, 1, r.Count())

	got, ok := r.Get("a-app")
	require.True(t, ok)
	assert.Same(t, app, got)
}

func TestRegister_DuplicateID(t *testing.T) {
	r := New()
	_, err := r.Register(testManifest("dup"))
	require.NoError(t, err)
	_, err = r.Register(testManifest("dup"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DUPLICATE_ID")
}

func TestGetAll_InsertionOrder(t *testing.T) {
	r := New()
	ids := []string{"c", "a", "b"}
	for _, id := range ids {
		_, err := r.Register(testManifest(id))
		require.NoError(t, err)
	}
	all := r.GetAll()
	require.Len(t, all, 3)
	for i, id := range ids {
		assert.Equal(t, id, all[i].ID())
	}
}

func TestUnregister(t *testing.T) {
	r := New()
	_, err := r.Register(testManifest("gone"))
	require.NoError(t, err)
	assert.True(t, r.Unregister("gone"))
	assert.False(t, r.Has("gone"))
	assert.False(t, r.Unregister("gone"))
}

func TestClear(t *testing.T) {
	r := New()
	_, _ = r.Register(testManifest("x"))
	_, _ = r.Register(testManifest("y"))
	r.Clear()
	assert.Equal(t, 0, r.Count())
}

func writeManifest(t *testing.T, dir, id string) {
	t.Helper()
	appDir := filepath.Join(dir, id)
	require.NoError(t, os.MkdirAll(appDir, 0o755))
	content := `{
		"id": "` + id + `",
		"name": "App ` + id + `",
		"entry": "./index.js",
		"permissions": [],
		"openclaw": {"minVersion": "1.0.0"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "snap.json"), []byte(content), 0o644))
}

func TestDiscover_SkipsMissingAndEmptyDirs(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "found-app")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "no-manifest"), 0o755))

	result := Discover(root, filepath.Join(root, "does-not-exist"))
	require.Len(t, result.Manifests, 1)
	assert.Equal(t, "found-app", result.Manifests[0].Manifest.ID)
	assert.Empty(t, result.Errors)
}

func TestDiscover_CollectsParseErrors(t *testing.T) {
	root := t.TempDir()
	badDir := filepath.Join(root, "broken")
	require.NoError(t, os.MkdirAll(badDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(badDir, "snap.json"), []byte("not json"), 0o644))

	result := Discover(root)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, badDir, result.Errors[0].Dir)
	assert.Empty(t, result.Manifests)
}
