package metadata

import (
	"github.com/spaghettifunk/multibatch/engine/math"
)

/**
 * @brief The vertices and triangle list indices of one shape, as produced by
 * a generator or a model loader and consumed by the shape registry. Indices
 * are local to Vertices.
 */
type ShapeData struct {
	/** @brief The name the shape is registered under. */
	Name string
	/** @brief The vertices of the shape. */
	Vertices []math.Vertex
	/** @brief Three indices per triangle. */
	Indices []uint16
}

// Extents returns the axis-aligned bounds of the shape.
func (s *ShapeData) Extents() math.Extents3D {
	return math.GeometryExtents(s.Vertices)
}

// TriangleCount returns the number of triangles of the shape.
func (s *ShapeData) TriangleCount() int {
	return len(s.Indices) / 3
}
