package systems

import (
	"fmt"

	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/math"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
)

/** @brief The name given to generated shapes created without one. */
const DefaultShapeName string = "default"

/** @brief The largest number of segments per axis a plane can have with 16-bit indices. */
const MaxPlaneSegments uint32 = 128

/**
 * @brief Generates a plane on the xy axes, facing +z.
 *
 * @param name The name of the generated shape.
 * @param width The overall width of the plane. Must be non-zero.
 * @param height The overall height of the plane. Must be non-zero.
 * @param xSegmentCount The number of segments along the x-axis in the plane. Must be non-zero.
 * @param ySegmentCount The number of segments along the y-axis in the plane. Must be non-zero.
 * @param tileX The number of times the texture should tile across the plane on the x-axis. Must be non-zero.
 * @param tileY The number of times the texture should tile across the plane on the y-axis. Must be non-zero.
 * @return The shape data, ready to be appended to a shape registry.
 */
func GeneratePlane(name string, width, height float32, xSegmentCount, ySegmentCount uint32, tileX, tileY float32) (*metadata.ShapeData, error) {
	if width == 0 {
		core.LogWarn("Width must be nonzero. Defaulting to one.")
		width = 1.0
	}
	if height == 0 {
		core.LogWarn("Height must be nonzero. Defaulting to one.")
		height = 1.0
	}
	if xSegmentCount < 1 {
		core.LogWarn("xSegmentCount must be a positive number. Defaulting to one.")
		xSegmentCount = 1
	}
	if ySegmentCount < 1 {
		core.LogWarn("ySegmentCount must be a positive number. Defaulting to one.")
		ySegmentCount = 1
	}
	if tileX == 0 {
		tileX = 1.0
	}
	if tileY == 0 {
		tileY = 1.0
	}
	if uint64(xSegmentCount)*uint64(ySegmentCount)*4 > uint64(MaxPlaneSegments)*uint64(MaxPlaneSegments)*4 {
		return nil, fmt.Errorf("%w: %dx%d plane segments", core.ErrIndexOverflow, xSegmentCount, ySegmentCount)
	}

	shape := &metadata.ShapeData{
		Name:     nameOrDefault(name),
		Vertices: make([]math.Vertex, xSegmentCount*ySegmentCount*4), // 4 verts per segment
		Indices:  make([]uint16, xSegmentCount*ySegmentCount*6),      // 6 indices per segment
	}

	segWidth := width / float32(xSegmentCount)
	segHeight := height / float32(ySegmentCount)
	halfWidth := width * 0.5
	halfHeight := height * 0.5
	normal := math.NewVec3(0, 0, 1)
	for y := uint32(0); y < ySegmentCount; y++ {
		for x := uint32(0); x < xSegmentCount; x++ {
			minX := (float32(x) * segWidth) - halfWidth
			minY := (float32(y) * segHeight) - halfHeight
			maxX := minX + segWidth
			maxY := minY + segHeight
			minUVX := (float32(x) / float32(xSegmentCount)) * tileX
			minUVY := (float32(y) / float32(ySegmentCount)) * tileY
			maxUVX := (float32(x+1) / float32(xSegmentCount)) * tileX
			maxUVY := (float32(y+1) / float32(ySegmentCount)) * tileY

			vOffset := ((y * xSegmentCount) + x) * 4
			v := shape.Vertices[vOffset : vOffset+4]
			v[0] = math.Vertex{Position: math.NewVec3(minX, minY, 0), Normal: normal, Texcoord: math.NewVec3(minUVX, minUVY, 0)}
			v[1] = math.Vertex{Position: math.NewVec3(maxX, maxY, 0), Normal: normal, Texcoord: math.NewVec3(maxUVX, maxUVY, 0)}
			v[2] = math.Vertex{Position: math.NewVec3(minX, maxY, 0), Normal: normal, Texcoord: math.NewVec3(minUVX, maxUVY, 0)}
			v[3] = math.Vertex{Position: math.NewVec3(maxX, minY, 0), Normal: normal, Texcoord: math.NewVec3(maxUVX, minUVY, 0)}

			iOffset := ((y * xSegmentCount) + x) * 6
			quadIndices(shape.Indices[iOffset:iOffset+6], uint16(vOffset))
		}
	}
	return shape, nil
}

/**
 * @brief Generates an axis-aligned box centred on the origin, with four
 * vertices per face so every face has its own normal.
 *
 * @param name The name of the generated shape.
 * @param width The width of the cube (x). Must be non-zero.
 * @param height The height of the cube (y). Must be non-zero.
 * @param depth The depth of the cube (z). Must be non-zero.
 * @param tileX The number of times the texture should tile across each face on the x-axis.
 * @param tileY The number of times the texture should tile across each face on the y-axis.
 */
func GenerateCube(name string, width, height, depth, tileX, tileY float32) (*metadata.ShapeData, error) {
	if width == 0 {
		core.LogWarn("Width must be nonzero. Defaulting to one.")
		width = 1.0
	}
	if height == 0 {
		core.LogWarn("Height must be nonzero. Defaulting to one.")
		height = 1.0
	}
	if depth == 0 {
		core.LogWarn("Depth must be nonzero. Defaulting to one.")
		depth = 1
	}
	if tileX == 0 {
		tileX = 1.0
	}
	if tileY == 0 {
		tileY = 1.0
	}

	minX, maxX := -width*0.5, width*0.5
	minY, maxY := -height*0.5, height*0.5
	minZ, maxZ := -depth*0.5, depth*0.5

	// Corner positions of each face in the order
	// (min uv, max uv, min u max v, max u min v).
	faces := []struct {
		corners [4]math.Vec3
		normal  math.Vec3
	}{
		// Front
		{[4]math.Vec3{{X: minX, Y: minY, Z: maxZ}, {X: maxX, Y: maxY, Z: maxZ}, {X: minX, Y: maxY, Z: maxZ}, {X: maxX, Y: minY, Z: maxZ}}, math.NewVec3(0, 0, 1)},
		// Back
		{[4]math.Vec3{{X: maxX, Y: minY, Z: minZ}, {X: minX, Y: maxY, Z: minZ}, {X: maxX, Y: maxY, Z: minZ}, {X: minX, Y: minY, Z: minZ}}, math.NewVec3(0, 0, -1)},
		// Left
		{[4]math.Vec3{{X: minX, Y: minY, Z: minZ}, {X: minX, Y: maxY, Z: maxZ}, {X: minX, Y: maxY, Z: minZ}, {X: minX, Y: minY, Z: maxZ}}, math.NewVec3(-1, 0, 0)},
		// Right
		{[4]math.Vec3{{X: maxX, Y: minY, Z: maxZ}, {X: maxX, Y: maxY, Z: minZ}, {X: maxX, Y: maxY, Z: maxZ}, {X: maxX, Y: minY, Z: minZ}}, math.NewVec3(1, 0, 0)},
		// Bottom
		{[4]math.Vec3{{X: maxX, Y: minY, Z: maxZ}, {X: minX, Y: minY, Z: minZ}, {X: maxX, Y: minY, Z: minZ}, {X: minX, Y: minY, Z: maxZ}}, math.NewVec3(0, -1, 0)},
		// Top
		{[4]math.Vec3{{X: minX, Y: maxY, Z: maxZ}, {X: maxX, Y: maxY, Z: minZ}, {X: minX, Y: maxY, Z: minZ}, {X: maxX, Y: maxY, Z: maxZ}}, math.NewVec3(0, 1, 0)},
	}
	uvs := [4]math.Vec3{{X: 0, Y: 0}, {X: tileX, Y: tileY}, {X: 0, Y: tileY}, {X: tileX, Y: 0}}

	shape := &metadata.ShapeData{
		Name:     nameOrDefault(name),
		Vertices: make([]math.Vertex, 0, 4*6), // 4 verts per side, 6 sides
		Indices:  make([]uint16, 6*6),         // 6 indices per side
	}
	for i, f := range faces {
		for c := range f.corners {
			shape.Vertices = append(shape.Vertices, math.Vertex{Position: f.corners[c], Normal: f.normal, Texcoord: uvs[c]})
		}
		quadIndices(shape.Indices[i*6:i*6+6], uint16(i*4))
	}
	return shape, nil
}

// Two triangles over the corners (0, 1, 2) and (0, 3, 1) of a quad.
func quadIndices(dst []uint16, base uint16) {
	dst[0] = base + 0
	dst[1] = base + 1
	dst[2] = base + 2
	dst[3] = base + 0
	dst[4] = base + 3
	dst[5] = base + 1
}

func nameOrDefault(name string) string {
	if len(name) > 0 {
		return name
	}
	return DefaultShapeName
}
