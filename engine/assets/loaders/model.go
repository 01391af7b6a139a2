package loaders

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/math"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
)

// ModelLoader reads Wavefront OBJ files into shape data. Polygons are
// triangulated as fans, identical corners share one vertex and faces
// without normals get a generated face normal.
type ModelLoader struct{}

func (ml *ModelLoader) Load(path string) (*metadata.ShapeData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	shape, err := ParseOBJ(name, file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	core.LogDebug("loaded model %s: %d vertices, %d triangles", path, len(shape.Vertices), shape.TriangleCount())
	return shape, nil
}

type objCorner struct {
	position, texcoord, normal int
}

// ParseOBJ parses the OBJ text in r. An "o" statement renames the shape.
func ParseOBJ(name string, r io.Reader) (*metadata.ShapeData, error) {
	var (
		positions []math.Vec3
		normals   []math.Vec3
		texcoords []math.Vec3
		corners   []objCorner
	)

	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}
		parts := strings.Fields(line)
		switch parts[0] {
		case "v":
			v, err := parseFloats(parts[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNumber, err)
			}
			positions = append(positions, math.NewVec3(v[0], v[1], v[2]))
		case "vn":
			v, err := parseFloats(parts[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNumber, err)
			}
			normals = append(normals, math.NewVec3(v[0], v[1], v[2]).Normalized())
		case "vt":
			v, err := parseFloats(parts[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNumber, err)
			}
			tc := math.NewVec3(v[0], v[1], 0)
			if len(v) > 2 {
				tc.Z = v[2]
			}
			texcoords = append(texcoords, tc)
		case "f":
			if len(parts) < 4 {
				return nil, fmt.Errorf("line %d: face with %d corners", lineNumber, len(parts)-1)
			}
			face := make([]objCorner, 0, len(parts)-1)
			for _, p := range parts[1:] {
				c, err := parseCorner(p, len(positions), len(texcoords), len(normals))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNumber, err)
				}
				face = append(face, c)
			}
			for i := 1; i+1 < len(face); i++ {
				corners = append(corners, face[0], face[i], face[i+1])
			}
		case "o":
			if len(parts) > 1 {
				name = strings.Join(parts[1:], " ")
			}
		default:
			// Groups, materials and smoothing groups do not affect geometry.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(corners) == 0 {
		return nil, fmt.Errorf("%w: model %q has no faces", core.ErrInvalidLayout, name)
	}
	return buildShape(name, corners, positions, texcoords, normals)
}

func buildShape(name string, corners []objCorner, positions, texcoords, normals []math.Vec3) (*metadata.ShapeData, error) {
	vertexOf := func(c objCorner) math.Vertex {
		v := math.Vertex{Position: positions[c.position]}
		if c.texcoord >= 0 {
			v.Texcoord = texcoords[c.texcoord]
		}
		if c.normal >= 0 {
			v.Normal = normals[c.normal]
		}
		return v
	}

	hasNormals := true
	for _, c := range corners {
		if c.normal < 0 {
			hasNormals = false
			break
		}
	}

	var vertices []math.Vertex
	indices := make([]uint32, len(corners))
	if hasNormals {
		seen := make(map[objCorner]uint32, len(corners))
		for i, c := range corners {
			idx, ok := seen[c]
			if !ok {
				idx = uint32(len(vertices))
				seen[c] = idx
				vertices = append(vertices, vertexOf(c))
			}
			indices[i] = idx
		}
	} else {
		// One vertex per corner so each triangle can carry its own normal,
		// then collapse the corners that ended up identical.
		vertices = make([]math.Vertex, len(corners))
		for i, c := range corners {
			vertices[i] = vertexOf(c)
			indices[i] = uint32(i)
		}
		math.GeometryGenerateNormals(vertices, indices)
		vertices = math.GeometryDeduplicateVertices(vertices, indices)
	}

	if len(vertices) > 1<<16 {
		return nil, fmt.Errorf("%w: model %q has %d vertices", core.ErrIndexOverflow, name, len(vertices))
	}
	shape := &metadata.ShapeData{
		Name:     name,
		Vertices: vertices,
		Indices:  make([]uint16, len(indices)),
	}
	for i, idx := range indices {
		shape.Indices[i] = uint16(idx)
	}
	return shape, nil
}

func parseFloats(fields []string, want int) ([]float32, error) {
	if len(fields) < want {
		return nil, fmt.Errorf("expected at least %d values, got %d", want, len(fields))
	}
	out := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", f)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// parseCorner reads "v", "v/vt", "v//vn" or "v/vt/vn". OBJ indices are
// 1-based and negative ones count back from the last element read so far.
// Missing texcoord and normal references come back as -1.
func parseCorner(s string, positions, texcoords, normals int) (objCorner, error) {
	refs := strings.Split(s, "/")
	if len(refs) > 3 {
		return objCorner{}, fmt.Errorf("invalid face corner %q", s)
	}
	c := objCorner{position: -1, texcoord: -1, normal: -1}
	counts := []int{positions, texcoords, normals}
	out := []*int{&c.position, &c.texcoord, &c.normal}
	for i, ref := range refs {
		if ref == "" {
			if i == 0 {
				return objCorner{}, fmt.Errorf("invalid face corner %q", s)
			}
			continue
		}
		n, err := strconv.Atoi(ref)
		if err != nil {
			return objCorner{}, fmt.Errorf("invalid face corner %q", s)
		}
		switch {
		case n > 0:
			n--
		case n < 0:
			n += counts[i]
		default:
			return objCorner{}, fmt.Errorf("%w: index 0 in face corner %q", core.ErrOutOfRange, s)
		}
		if n < 0 || n >= counts[i] {
			return objCorner{}, fmt.Errorf("%w: face corner %q", core.ErrOutOfRange, s)
		}
		*out[i] = n
	}
	return c, nil
}
