package loaders

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `# unit quad
o quad
v -0.5 -0.5 0
v 0.5 -0.5 0
v 0.5 0.5 0
v -0.5 0.5 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestParseOBJQuad(t *testing.T) {
	shape, err := ParseOBJ("file", strings.NewReader(quadOBJ))
	require.NoError(t, err)

	assert.Equal(t, "quad", shape.Name)
	assert.Len(t, shape.Vertices, 4)
	assert.Equal(t, []uint16{0, 1, 2, 0, 2, 3}, shape.Indices)
	assert.Equal(t, math.NewVec3(1, 1, 0), shape.Vertices[2].Texcoord)
	assert.Equal(t, math.NewVec3(0, 0, 1), shape.Vertices[0].Normal)
}

func TestParseOBJGeneratesNormals(t *testing.T) {
	src := `
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3
f -4 -2 -1
`
	shape, err := ParseOBJ("tri", strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, "tri", shape.Name)
	// Both triangles share a plane, so shared corners collapse.
	assert.Len(t, shape.Vertices, 4)
	assert.Len(t, shape.Indices, 6)
	for _, v := range shape.Vertices {
		assert.True(t, v.Normal.Compare(math.NewVec3(0, 0, 1), 1e-6), "normal %v", v.Normal)
	}
}

func TestParseOBJErrors(t *testing.T) {
	_, err := ParseOBJ("empty", strings.NewReader("v 0 0 0\n"))
	assert.ErrorIs(t, err, core.ErrInvalidLayout)

	_, err = ParseOBJ("bad", strings.NewReader("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n"))
	assert.ErrorIs(t, err, core.ErrOutOfRange)

	_, err = ParseOBJ("bad", strings.NewReader("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n"))
	assert.ErrorIs(t, err, core.ErrOutOfRange)

	_, err = ParseOBJ("bad", strings.NewReader("v 0 zero 0\n"))
	assert.Error(t, err)

	_, err = ParseOBJ("bad", strings.NewReader("v 0 0 0\nf 1 1\n"))
	assert.Error(t, err)
}

func TestModelLoaderNamesShapeAfterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tile.obj")
	require.NoError(t, os.WriteFile(path, []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"), 0o644))

	shape, err := (&ModelLoader{}).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tile", shape.Name)
	assert.Equal(t, 1, shape.TriangleCount())

	_, err = (&ModelLoader{}).Load(filepath.Join(t.TempDir(), "missing.obj"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
