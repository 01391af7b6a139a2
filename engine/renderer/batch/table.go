package batch

import (
	"fmt"

	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/math"
	"github.com/spaghettifunk/multibatch/engine/renderer"
	"github.com/spaghettifunk/multibatch/engine/renderer/buffer"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
)

// BatchSpec declares one batch: which registered shape it draws and how
// many instances of it can be queued at most.
type BatchSpec struct {
	Shape    int
	Capacity uint32
}

/**
 * @brief Instance accounting for one shape.
 */
type Batch struct {
	Shape Shape
	/** @brief Maximum number of instances, fixed at construction. */
	Capacity uint32
	/** @brief Number of instances currently queued. */
	Size uint32
	/** @brief First record of the batch in the shared instance buffer. */
	Offset uint32
}

func commandField() buffer.Field {
	return buffer.Field{Name: "command", Kind: metadata.ATTRIBUTE_KIND_UINT32, Components: 5}
}

/**
 * @brief The instance batch table: per shape batches, the shared instance
 * attribute buffer they index into and the indirect command table with one
 * command per batch.
 *
 * A batch's size and its command's instance count always agree: every
 * mutation writes the instance data first, then the command, and only then
 * updates the size. Table is not safe for concurrent use; mutations must
 * complete before Render is called.
 */
type Table struct {
	backend   renderer.RendererBackend
	registry  *Registry
	batches   []Batch
	instances *buffer.PackedBuffer
	commands  *buffer.PackedBuffer
	layout    *metadata.VertexLayout
}

// NewTable builds a table over a populated registry and seals it. fields is
// the per-instance record layout.
func NewTable(backend renderer.RendererBackend, registry *Registry, fields []buffer.Field, layout buffer.Layout, specs []BatchSpec) (*Table, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no batches", core.ErrInvalidCapacity)
	}
	if registry.VertexCount() == 0 {
		return nil, fmt.Errorf("%w: registry holds no geometry", core.ErrInvalidLayout)
	}

	capacities := make([]uint64, len(specs))
	for i, s := range specs {
		capacities[i] = uint64(s.Capacity)
	}
	total := math.Sum(capacities)
	if total == 0 || total > uint64(^uint32(0)) {
		return nil, fmt.Errorf("%w: total capacity %d", core.ErrInvalidCapacity, total)
	}
	offsets := math.ExclusivePrefixSum(capacities)

	t := &Table{
		backend:  backend,
		registry: registry,
		batches:  make([]Batch, len(specs)),
	}
	for i, s := range specs {
		shape, err := registry.Shape(s.Shape)
		if err != nil {
			return nil, err
		}
		t.batches[i] = Batch{Shape: shape, Capacity: s.Capacity, Offset: uint32(offsets[i])}
	}
	registry.Seal()

	var err error
	t.instances, err = buffer.NewPackedBuffer(backend, fields, uint32(total), buffer.Options{
		Type:   metadata.RENDERBUFFER_TYPE_INSTANCE,
		Usage:  metadata.BUFFER_USAGE_STREAM,
		Layout: layout,
	})
	if err != nil {
		return nil, err
	}
	t.commands, err = buffer.NewPackedBuffer(backend, []buffer.Field{commandField()}, uint32(len(specs)), buffer.Options{
		Type:   metadata.RENDERBUFFER_TYPE_INDIRECT,
		Usage:  metadata.BUFFER_USAGE_DYNAMIC,
		Layout: buffer.LayoutInterleaved,
	})
	if err != nil {
		t.instances.Destroy()
		return nil, err
	}
	if err := t.writeCommands(); err != nil {
		t.Destroy()
		return nil, err
	}

	t.layout = &metadata.VertexLayout{
		Attributes:  registry.geometryAttributes(),
		IndexBuffer: registry.indexBuffer(),
		IndexType:   metadata.INDEX_TYPE_UINT16,
	}
	core.LogInfo("batch table built: %d batches, %d instance records of %d bytes", len(specs), total, t.instances.Stride())
	return t, nil
}

func (t *Table) command(i int) metadata.DrawIndexedIndirectCommand {
	b := t.batches[i]
	return metadata.DrawIndexedIndirectCommand{
		Count:         b.Shape.ElementCount,
		InstanceCount: b.Size,
		FirstIndex:    b.Shape.ElementOffset,
		BaseVertex:    b.Shape.VertexOffset,
		BaseInstance:  b.Offset,
	}
}

// writeCommands rewrites the whole command table from the batches.
func (t *Table) writeCommands() error {
	if err := t.commands.Map(metadata.MAP_ACCESS_WRITE); err != nil {
		return err
	}
	for i := range t.batches {
		cmd := t.command(i)
		if err := t.commands.WriteField(uint32(i), 0, &cmd); err != nil {
			t.commands.Unmap()
			return err
		}
	}
	return t.commands.Unmap()
}

func (t *Table) writeCommand(i int, instanceCount uint32) error {
	cmd := t.command(i)
	cmd.InstanceCount = instanceCount
	if err := t.commands.MapRange(uint32(i), 1, metadata.MAP_ACCESS_WRITE); err != nil {
		return err
	}
	if err := t.commands.WriteField(uint32(i), 0, &cmd); err != nil {
		t.commands.Unmap()
		return err
	}
	return t.commands.Unmap()
}

func (t *Table) writeInstances(first uint32, records [][]buffer.Value) error {
	if err := t.instances.MapRange(first, uint32(len(records)), metadata.MAP_ACCESS_WRITE); err != nil {
		return err
	}
	for k, values := range records {
		if err := t.instances.WriteRecord(first+uint32(k), values); err != nil {
			t.instances.Unmap()
			return err
		}
	}
	return t.instances.Unmap()
}

func (t *Table) checkBatch(i int) error {
	if i < 0 || i >= len(t.batches) {
		return fmt.Errorf("%w: batch %d of %d", core.ErrOutOfRange, i, len(t.batches))
	}
	return nil
}

// PushInstance queues one instance of batch i with the given per-field
// values. A full batch fails with ErrCapacityExceeded and is left unchanged.
func (t *Table) PushInstance(i int, values ...buffer.Value) error {
	if err := t.checkBatch(i); err != nil {
		return err
	}
	b := &t.batches[i]
	if b.Size == b.Capacity {
		return fmt.Errorf("%w: batch %d (%s) holds %d instances", core.ErrCapacityExceeded, i, b.Shape.Name, b.Capacity)
	}
	if err := t.writeInstances(b.Offset+b.Size, [][]buffer.Value{values}); err != nil {
		return err
	}
	if err := t.writeCommand(i, b.Size+1); err != nil {
		return err
	}
	b.Size++
	return nil
}

// ResetBatch empties batch i. The instance bytes are left in place; the
// command's instance count keeps them from being drawn.
func (t *Table) ResetBatch(i int) error {
	if err := t.checkBatch(i); err != nil {
		return err
	}
	if err := t.writeCommand(i, 0); err != nil {
		return err
	}
	t.batches[i].Size = 0
	return nil
}

// ResetAll empties every batch.
func (t *Table) ResetAll() error {
	sizes := make([]uint32, len(t.batches))
	for i := range t.batches {
		sizes[i] = t.batches[i].Size
		t.batches[i].Size = 0
	}
	if err := t.writeCommands(); err != nil {
		for i := range t.batches {
			t.batches[i].Size = sizes[i]
		}
		return err
	}
	return nil
}

// OverwriteRange rewrites instances [start, start+len(records)) of batch i.
// The range may extend past the current size, which then grows to cover it,
// but it may not leave a gap after the last queued instance.
func (t *Table) OverwriteRange(i int, start uint32, records ...[]buffer.Value) error {
	if err := t.checkBatch(i); err != nil {
		return err
	}
	b := &t.batches[i]
	if start > b.Size {
		return fmt.Errorf("%w: overwrite at %d leaves a gap after %d instances", core.ErrOutOfRange, start, b.Size)
	}
	if len(records) == 0 {
		return nil
	}
	end := uint64(start) + uint64(len(records))
	if end > uint64(b.Capacity) {
		return fmt.Errorf("%w: batch %d (%s) holds %d instances, overwrite ends at %d", core.ErrCapacityExceeded, i, b.Shape.Name, b.Capacity, end)
	}
	if err := t.writeInstances(b.Offset+start, records); err != nil {
		return err
	}
	if uint32(end) > b.Size {
		if err := t.writeCommand(i, uint32(end)); err != nil {
			return err
		}
		b.Size = uint32(end)
	}
	return nil
}

// ReadInstance decodes instance k of batch i into dst, one value per field.
func (t *Table) ReadInstance(i int, k uint32, dst ...buffer.Value) error {
	if err := t.checkBatch(i); err != nil {
		return err
	}
	b := t.batches[i]
	if k >= b.Size {
		return fmt.Errorf("%w: instance %d of %d", core.ErrOutOfRange, k, b.Size)
	}
	if err := t.instances.MapRange(b.Offset+k, 1, metadata.MAP_ACCESS_READ); err != nil {
		return err
	}
	if err := t.instances.ReadRecord(b.Offset+k, dst); err != nil {
		t.instances.Unmap()
		return err
	}
	return t.instances.Unmap()
}

// Command decodes the indirect command of batch i from the command table.
func (t *Table) Command(i int) (metadata.DrawIndexedIndirectCommand, error) {
	var cmd metadata.DrawIndexedIndirectCommand
	if err := t.checkBatch(i); err != nil {
		return cmd, err
	}
	if err := t.commands.MapRange(uint32(i), 1, metadata.MAP_ACCESS_READ); err != nil {
		return cmd, err
	}
	if err := t.commands.ReadField(uint32(i), 0, &cmd); err != nil {
		t.commands.Unmap()
		return cmd, err
	}
	return cmd, t.commands.Unmap()
}

func (t *Table) Batch(i int) (Batch, error) {
	if err := t.checkBatch(i); err != nil {
		return Batch{}, err
	}
	return t.batches[i], nil
}

func (t *Table) Batches() []Batch {
	return append([]Batch(nil), t.batches...)
}

// Len is the number of batches, one indirect command each.
func (t *Table) Len() int {
	return len(t.batches)
}

// Instances is the number of queued instances across all batches.
func (t *Table) Instances() uint64 {
	var n uint64
	for _, b := range t.batches {
		n += uint64(b.Size)
	}
	return n
}

// Fields is the per-instance record layout.
func (t *Table) Fields() []buffer.Field {
	return t.instances.Fields()
}

// VertexLayout returns a copy of the layout the renderer binds.
func (t *Table) VertexLayout() metadata.VertexLayout {
	layout := *t.layout
	layout.Attributes = append([]metadata.VertexAttribute(nil), t.layout.Attributes...)
	return layout
}

func (t *Table) isMapped() bool {
	return t.instances.IsMapped() || t.commands.IsMapped() || t.registry.isMapped()
}

// Destroy releases the instance and command buffers. The registry is owned
// by the caller.
func (t *Table) Destroy() error {
	if err := t.instances.Destroy(); err != nil {
		return err
	}
	return t.commands.Destroy()
}
