package systems

import (
	"testing"

	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCube(t *testing.T) {
	cube, err := GenerateCube("box", 2, 4, 6, 1, 1)
	require.NoError(t, err)

	assert.Equal(t, "box", cube.Name)
	assert.Len(t, cube.Vertices, 24)
	assert.Len(t, cube.Indices, 36)
	assert.Equal(t, 12, cube.TriangleCount())
	for _, i := range cube.Indices {
		assert.Less(t, int(i), len(cube.Vertices))
	}

	ext := cube.Extents()
	assert.Equal(t, math.NewVec3(-1, -2, -3), ext.Min)
	assert.Equal(t, math.NewVec3(1, 2, 3), ext.Max)

	// Every vertex of a face shares the face normal.
	for f := 0; f < 6; f++ {
		n := cube.Vertices[f*4].Normal
		for c := 1; c < 4; c++ {
			assert.Equal(t, n, cube.Vertices[f*4+c].Normal)
		}
	}
}

func TestGenerateCubeDefaultsZeroSizes(t *testing.T) {
	cube, err := GenerateCube("", 0, 0, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultShapeName, cube.Name)
	ext := cube.Extents()
	assert.Equal(t, math.NewVec3(0.5, 0.5, 0.5), ext.Max)
}

func TestGeneratePlane(t *testing.T) {
	plane, err := GeneratePlane("floor", 4, 2, 2, 1, 1, 1)
	require.NoError(t, err)

	assert.Len(t, plane.Vertices, 8)
	assert.Equal(t, []uint16{0, 1, 2, 0, 3, 1, 4, 5, 6, 4, 7, 5}, plane.Indices)
	ext := plane.Extents()
	assert.Equal(t, math.NewVec3(-2, -1, 0), ext.Min)
	assert.Equal(t, math.NewVec3(2, 1, 0), ext.Max)
	for _, v := range plane.Vertices {
		assert.Equal(t, math.NewVec3(0, 0, 1), v.Normal)
	}
}

func TestGeneratePlaneIndexOverflow(t *testing.T) {
	_, err := GeneratePlane("big", 1, 1, MaxPlaneSegments, MaxPlaneSegments, 1, 1)
	require.NoError(t, err)

	_, err = GeneratePlane("too big", 1, 1, MaxPlaneSegments+1, MaxPlaneSegments, 1, 1)
	assert.ErrorIs(t, err, core.ErrIndexOverflow)
}
