package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const triangleOBJ = "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"

func TestAssetManagerIndexesAndLoads(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "models"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models", "tri.obj"), []byte(triangleOBJ), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("not a model"), 0o644))

	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(dir))
	defer am.Shutdown()

	indexed := am.Assets()
	require.Len(t, indexed, 1)
	assert.Equal(t, AssetTypeModel, indexed[0].Type)

	shape, err := am.LoadShape("models/tri.obj")
	require.NoError(t, err)
	assert.Equal(t, "tri", shape.Name)
	assert.Len(t, shape.Indices, 3)

	_, err = am.LoadShape("readme.txt")
	assert.Error(t, err)
}

func TestAssetManagerReportsChanges(t *testing.T) {
	dir := t.TempDir()
	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(dir))
	defer am.Shutdown()

	path := filepath.Join(dir, "new.obj")
	require.NoError(t, os.WriteFile(path, []byte(triangleOBJ), 0o644))

	select {
	case changed := <-am.Changes():
		assert.Equal(t, path, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	assert.Eventually(t, func() bool { return len(am.Assets()) == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestAssetManagerShutdownTwice(t *testing.T) {
	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Shutdown())
	assert.Error(t, am.Shutdown())
}
