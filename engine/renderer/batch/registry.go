package batch

import (
	"fmt"

	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/math"
	"github.com/spaghettifunk/multibatch/engine/renderer"
	"github.com/spaghettifunk/multibatch/engine/renderer/buffer"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
)

const (
	// POSITION_SLOT and NORMAL_SLOT are the per-vertex attribute slots the
	// shared geometry is bound to. Instance attributes start after them.
	POSITION_SLOT uint32 = 0
	NORMAL_SLOT   uint32 = 1
	GEOMETRY_SLOTS       = 2

	MAX_INDEX = 1<<16 - 1
)

/**
 * @brief A shape registered in the shared geometry buffers.
 */
type Shape struct {
	/** @brief The position of the shape in the registry. */
	Index int
	Name  string
	/** @brief Number of indices making up the shape. */
	ElementCount uint32
	/** @brief First index of the shape in the shared index buffer. */
	ElementOffset uint32
	/** @brief Value added to every index. Indices are biased when the shape is appended, so this stays 0. */
	VertexOffset uint32
}

// VertexFields is the record layout of the shared vertex buffer.
func VertexFields() []buffer.Field {
	return []buffer.Field{buffer.Vec3("position"), buffer.Vec3("normal"), buffer.Vec3("texcoord")}
}

/**
 * @brief The shared geometry store: the concatenated vertices and indices of
 * every shape. Shapes are appended during setup; once a batch table is built
 * over the registry it is sealed and accepts no more geometry.
 */
type Registry struct {
	vertices *buffer.PackedBuffer
	indices  *buffer.PackedBuffer
	shapes   []Shape
	sealed   bool
}

func NewRegistry(backend renderer.RendererBackend) (*Registry, error) {
	vertices, err := buffer.NewPackedBuffer(backend, VertexFields(), 0, buffer.Options{
		Type:     metadata.RENDERBUFFER_TYPE_VERTEX,
		Usage:    metadata.BUFFER_USAGE_STATIC,
		Layout:   buffer.LayoutPacked,
		Growable: true,
	})
	if err != nil {
		return nil, err
	}
	indices, err := buffer.NewPackedBuffer(backend, []buffer.Field{buffer.Uint16("index")}, 0, buffer.Options{
		Type:     metadata.RENDERBUFFER_TYPE_INDEX,
		Usage:    metadata.BUFFER_USAGE_STATIC,
		Growable: true,
	})
	if err != nil {
		return nil, err
	}
	return &Registry{vertices: vertices, indices: indices}, nil
}

// AppendShape copies the geometry of a shape after the geometry already
// registered. Indices are local to vertices and are rebased onto the shared
// vertex buffer.
func (r *Registry) AppendShape(name string, vertices []math.Vertex, indices []uint16) (Shape, error) {
	if r.sealed {
		return Shape{}, fmt.Errorf("%w: cannot append shape %q", core.ErrRegistrySealed, name)
	}
	if len(vertices) == 0 || len(indices) == 0 {
		return Shape{}, fmt.Errorf("%w: shape %q has no geometry", core.ErrInvalidLayout, name)
	}

	base := r.vertices.Len()
	records := make([][]buffer.Value, len(indices))
	for i, idx := range indices {
		if int(idx) >= len(vertices) {
			return Shape{}, fmt.Errorf("%w: shape %q index %d references vertex %d of %d", core.ErrOutOfRange, name, i, idx, len(vertices))
		}
		biased := uint32(idx) + base
		if biased > MAX_INDEX {
			return Shape{}, fmt.Errorf("%w: shape %q index %d becomes %d", core.ErrIndexOverflow, name, i, biased)
		}
		v := buffer.U16(biased)
		records[i] = []buffer.Value{&v}
	}

	vertexRecords := make([][]buffer.Value, len(vertices))
	for i := range vertices {
		v := &vertices[i]
		vertexRecords[i] = []buffer.Value{&v.Position, &v.Normal, &v.Texcoord}
	}
	if _, err := r.vertices.Append(vertexRecords...); err != nil {
		return Shape{}, err
	}
	first, err := r.indices.Append(records...)
	if err != nil {
		return Shape{}, err
	}

	shape := Shape{
		Index:         len(r.shapes),
		Name:          name,
		ElementCount:  uint32(len(indices)),
		ElementOffset: first,
	}
	r.shapes = append(r.shapes, shape)
	core.LogDebug("registered shape %q: %d vertices, %d indices at %d", name, len(vertices), len(indices), first)
	return shape, nil
}

// Seal stops the registry from accepting geometry.
func (r *Registry) Seal() {
	r.sealed = true
}

func (r *Registry) Sealed() bool {
	return r.sealed
}

func (r *Registry) Shapes() []Shape {
	return append([]Shape(nil), r.shapes...)
}

func (r *Registry) Shape(i int) (Shape, error) {
	if i < 0 || i >= len(r.shapes) {
		return Shape{}, fmt.Errorf("%w: shape %d of %d", core.ErrOutOfRange, i, len(r.shapes))
	}
	return r.shapes[i], nil
}

// ShapeByName looks a shape up by the name it was appended with.
func (r *Registry) ShapeByName(name string) (Shape, bool) {
	for _, s := range r.shapes {
		if s.Name == name {
			return s, true
		}
	}
	return Shape{}, false
}

func (r *Registry) VertexCount() uint32 {
	return r.vertices.Len()
}

func (r *Registry) IndexCount() uint32 {
	return r.indices.Len()
}

// Vertex reads back vertex i of the shared vertex buffer.
func (r *Registry) Vertex(i uint32) (math.Vertex, error) {
	var v math.Vertex
	if i >= r.vertices.Len() {
		return v, fmt.Errorf("%w: vertex %d of %d", core.ErrOutOfRange, i, r.vertices.Len())
	}
	if err := r.vertices.MapRange(i, 1, metadata.MAP_ACCESS_READ); err != nil {
		return v, err
	}
	defer r.vertices.Unmap()
	err := r.vertices.ReadRecord(i, []buffer.Value{&v.Position, &v.Normal, &v.Texcoord})
	return v, err
}

// Indices reads back the biased indices of a shape.
func (r *Registry) Indices(s Shape) ([]uint16, error) {
	if err := r.indices.MapRange(s.ElementOffset, s.ElementCount, metadata.MAP_ACCESS_READ); err != nil {
		return nil, err
	}
	defer r.indices.Unmap()
	out := make([]uint16, s.ElementCount)
	for i := range out {
		var idx buffer.U16
		if err := r.indices.ReadField(s.ElementOffset+uint32(i), 0, &idx); err != nil {
			return nil, err
		}
		out[i] = uint16(idx)
	}
	return out, nil
}

// geometryAttributes are the per-vertex slots reading the shared vertex buffer.
func (r *Registry) geometryAttributes() []metadata.VertexAttribute {
	attributes := make([]metadata.VertexAttribute, 0, GEOMETRY_SLOTS)
	for i, slot := range []uint32{POSITION_SLOT, NORMAL_SLOT} {
		f := r.vertices.Fields()[i]
		attributes = append(attributes, metadata.VertexAttribute{
			Slot:       slot,
			Buffer:     r.vertices.Handle(),
			Offset:     r.vertices.Offset(i),
			Stride:     r.vertices.AttribStride(i),
			Kind:       f.Kind,
			Components: f.Components,
		})
	}
	return attributes
}

func (r *Registry) indexBuffer() *metadata.RenderBuffer {
	return r.indices.Handle()
}

func (r *Registry) isMapped() bool {
	return r.vertices.IsMapped() || r.indices.IsMapped()
}

// Destroy releases the geometry buffers.
func (r *Registry) Destroy() error {
	if err := r.vertices.Destroy(); err != nil {
		return err
	}
	return r.indices.Destroy()
}
