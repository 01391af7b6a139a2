package buffer

import (
	"fmt"

	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/renderer"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
)

type Options struct {
	Type   metadata.RenderBufferType
	Usage  metadata.BufferUsage
	Layout Layout
	// Growable buffers start empty and grow on Append. Otherwise the full
	// capacity is reserved at construction and never changes.
	Growable bool
}

/**
 * @brief A buffer of uniform records made of several typed fields, laid out
 * either interleaved or field-major according to Options.Layout.
 *
 * All reads and writes go through a scoped mapping opened with Map or
 * MapRange and closed with Unmap. While a mapping is open no other buffer
 * operation is accepted. A PackedBuffer is not safe for concurrent use.
 */
type PackedBuffer struct {
	backend renderer.RendererBackend
	handle  *metadata.RenderBuffer
	opts    Options

	fields []Field
	// in-record offset of every field, interleaved layout only
	recordOffsets []uint32
	stride        uint32
	capacity      uint32
	length        uint32

	mapping   []byte
	mapBase   uint64
	mapStart  uint32
	mapCount  uint32
	mapAccess metadata.MapAccess
	mapped    bool
}

// NewPackedBuffer creates a buffer for capacity records of fields. Growable
// buffers may pass a capacity of 0 and allocate on the first Append.
func NewPackedBuffer(backend renderer.RendererBackend, fields []Field, capacity uint32, opts Options) (*PackedBuffer, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", core.ErrInvalidLayout)
	}
	b := &PackedBuffer{
		backend:       backend,
		opts:          opts,
		fields:        append([]Field(nil), fields...),
		recordOffsets: make([]uint32, len(fields)),
	}
	for i, f := range b.fields {
		if err := f.validate(); err != nil {
			return nil, err
		}
		b.recordOffsets[i] = b.stride
		if opts.Layout == LayoutInterleaved && b.stride%f.Align() != 0 {
			core.LogWarn("field %q starts at unaligned record offset %d", f.Name, b.stride)
		}
		b.stride += f.Size()
	}

	if opts.Growable {
		if capacity > 0 {
			if err := b.reserve(capacity); err != nil {
				return nil, err
			}
		}
		return b, nil
	}

	if capacity == 0 {
		return nil, fmt.Errorf("%w: fixed buffer needs a non-zero capacity", core.ErrInvalidCapacity)
	}
	handle, err := backend.RenderBufferCreate(opts.Type, opts.Usage, uint64(b.stride)*uint64(capacity))
	if err != nil {
		return nil, err
	}
	b.handle = handle
	b.capacity = capacity
	b.length = capacity
	return b, nil
}

// Stride is the byte size of one record.
func (b *PackedBuffer) Stride() uint32 {
	return b.stride
}

// Offset returns the byte offset of field i. For interleaved buffers this is
// the offset within a record, for packed buffers the start of the field's
// sub-array.
func (b *PackedBuffer) Offset(i int) uint64 {
	if b.opts.Layout == LayoutInterleaved {
		return uint64(b.recordOffsets[i])
	}
	return uint64(b.recordOffsets[i]) * uint64(b.capacity)
}

// AttribStride is the distance in bytes between two consecutive values of
// field i, the stride a vertex fetch reading the field has to use.
func (b *PackedBuffer) AttribStride(i int) uint32 {
	if b.opts.Layout == LayoutInterleaved {
		return b.stride
	}
	return b.fields[i].Size()
}

func (b *PackedBuffer) Fields() []Field {
	return b.fields
}

func (b *PackedBuffer) Layout() Layout {
	return b.opts.Layout
}

func (b *PackedBuffer) Capacity() uint32 {
	return b.capacity
}

// Len is the number of valid records: the appended ones for growable
// buffers, the full capacity otherwise.
func (b *PackedBuffer) Len() uint32 {
	return b.length
}

// Handle is the backend buffer, nil for a growable buffer nothing was
// appended to yet.
func (b *PackedBuffer) Handle() *metadata.RenderBuffer {
	return b.handle
}

func (b *PackedBuffer) IsMapped() bool {
	return b.mapped
}

// byteOffset of field f of record r from the start of the buffer.
func (b *PackedBuffer) byteOffset(r uint32, f int) uint64 {
	if b.opts.Layout == LayoutInterleaved {
		return uint64(r)*uint64(b.stride) + uint64(b.recordOffsets[f])
	}
	return b.Offset(f) + uint64(r)*uint64(b.fields[f].Size())
}

// span returns the byte range holding records [start, start+count).
func (b *PackedBuffer) span(start, count uint32) (uint64, uint64) {
	if b.opts.Layout == LayoutInterleaved {
		return uint64(start) * uint64(b.stride), uint64(count) * uint64(b.stride)
	}
	last := len(b.fields) - 1
	first := b.byteOffset(start, 0)
	end := b.byteOffset(start+count, last)
	return first, end - first
}

// Map opens a mapping over every record.
func (b *PackedBuffer) Map(access metadata.MapAccess) error {
	return b.MapRange(0, b.capacity, access)
}

// MapRange opens a mapping over records [start, start+count). In packed
// layout the mapped bytes cover the enclosing span of all field sub-arrays,
// but only records inside the window may be accessed.
func (b *PackedBuffer) MapRange(start, count uint32, access metadata.MapAccess) error {
	if b.mapped {
		return fmt.Errorf("%w: buffer already mapped", core.ErrMapUnmapMisuse)
	}
	if count == 0 || uint64(start)+uint64(count) > uint64(b.capacity) {
		return fmt.Errorf("%w: map range [%d, %d) of capacity %d", core.ErrOutOfRange, start, uint64(start)+uint64(count), b.capacity)
	}
	offset, size := b.span(start, count)
	data, err := b.backend.RenderBufferMapMemory(b.handle, offset, size, access)
	if err != nil {
		return err
	}
	b.mapping = data
	b.mapBase = offset
	b.mapStart = start
	b.mapCount = count
	b.mapAccess = access
	b.mapped = true
	return nil
}

// Unmap closes the open mapping.
func (b *PackedBuffer) Unmap() error {
	if !b.mapped {
		return fmt.Errorf("%w: buffer not mapped", core.ErrMapUnmapMisuse)
	}
	b.mapping = nil
	b.mapped = false
	return b.backend.RenderBufferUnmapMemory(b.handle)
}

func (b *PackedBuffer) check(r uint32, f int, v Value, write bool) ([]byte, error) {
	if !b.mapped {
		return nil, fmt.Errorf("%w: access outside of a mapping", core.ErrMapUnmapMisuse)
	}
	if write && !b.mapAccess.CanWrite() {
		return nil, fmt.Errorf("%w: write through a read-only mapping", core.ErrMapUnmapMisuse)
	}
	if !write && !b.mapAccess.CanRead() {
		return nil, fmt.Errorf("%w: read through a write-only mapping", core.ErrMapUnmapMisuse)
	}
	if r < b.mapStart || r >= b.mapStart+b.mapCount {
		return nil, fmt.Errorf("%w: record %d outside mapped range [%d, %d)", core.ErrOutOfRange, r, b.mapStart, b.mapStart+b.mapCount)
	}
	if f < 0 || f >= len(b.fields) {
		return nil, fmt.Errorf("%w: field %d of %d", core.ErrOutOfRange, f, len(b.fields))
	}
	size := b.fields[f].Size()
	if v.Size() != int(size) {
		return nil, fmt.Errorf("%w: field %q holds %d bytes, value has %d", core.ErrFieldMismatch, b.fields[f].Name, size, v.Size())
	}
	at := b.byteOffset(r, f) - b.mapBase
	return b.mapping[at : at+uint64(size)], nil
}

// WriteField stores v into field f of record r.
func (b *PackedBuffer) WriteField(r uint32, f int, v Value) error {
	dst, err := b.check(r, f, v, true)
	if err != nil {
		return err
	}
	v.Encode(dst)
	return nil
}

// ReadField decodes field f of record r into v.
func (b *PackedBuffer) ReadField(r uint32, f int, v Value) error {
	src, err := b.check(r, f, v, false)
	if err != nil {
		return err
	}
	v.Decode(src)
	return nil
}

func (b *PackedBuffer) checkArity(values []Value) error {
	if len(values) != len(b.fields) {
		return fmt.Errorf("%w: %d values for %d fields", core.ErrFieldMismatch, len(values), len(b.fields))
	}
	return nil
}

// WriteRecord stores one value per field into record r. Nothing is written
// unless every value matches its field.
func (b *PackedBuffer) WriteRecord(r uint32, values []Value) error {
	if err := b.checkArity(values); err != nil {
		return err
	}
	dst := make([][]byte, len(values))
	for f, v := range values {
		d, err := b.check(r, f, v, true)
		if err != nil {
			return err
		}
		dst[f] = d
	}
	for f, v := range values {
		v.Encode(dst[f])
	}
	return nil
}

// ReadRecord decodes every field of record r into values.
func (b *PackedBuffer) ReadRecord(r uint32, values []Value) error {
	if err := b.checkArity(values); err != nil {
		return err
	}
	for f, v := range values {
		if err := b.ReadField(r, f, v); err != nil {
			return err
		}
	}
	return nil
}

// Append writes records after the last valid one, growing the storage of a
// growable buffer when needed. It returns the index of the first appended
// record.
func (b *PackedBuffer) Append(records ...[]Value) (uint32, error) {
	if b.mapped {
		return 0, fmt.Errorf("%w: append while mapped", core.ErrMapUnmapMisuse)
	}
	first := b.length
	if len(records) == 0 {
		return first, nil
	}
	for _, rec := range records {
		if err := b.checkArity(rec); err != nil {
			return 0, err
		}
	}
	need := uint64(b.length) + uint64(len(records))
	if need > uint64(^uint32(0)) {
		return 0, fmt.Errorf("%w: %d records", core.ErrCapacityExceeded, need)
	}
	if uint32(need) > b.capacity {
		if !b.opts.Growable {
			return 0, fmt.Errorf("%w: buffer holds %d records", core.ErrCapacityExceeded, b.capacity)
		}
		if err := b.reserve(grownCapacity(b.capacity, uint32(need))); err != nil {
			return 0, err
		}
	}

	if err := b.MapRange(first, uint32(len(records)), metadata.MAP_ACCESS_WRITE); err != nil {
		return 0, err
	}
	for i, rec := range records {
		if err := b.WriteRecord(first+uint32(i), rec); err != nil {
			b.Unmap()
			return 0, err
		}
	}
	if err := b.Unmap(); err != nil {
		return 0, err
	}
	b.length = uint32(need)
	return first, nil
}

// grownCapacity is the larger of need and twice capacity, clamped to the
// largest record count a buffer can address.
func grownCapacity(capacity, need uint32) uint32 {
	return uint32(min(max(uint64(need), uint64(capacity)*2), uint64(^uint32(0))))
}

// reserve reallocates the storage for capacity records and moves the valid
// records over. In packed layout every field sub-array is relocated since its
// start depends on the capacity.
func (b *PackedBuffer) reserve(capacity uint32) error {
	handle, err := b.backend.RenderBufferCreate(b.opts.Type, b.opts.Usage, uint64(b.stride)*uint64(capacity))
	if err != nil {
		return err
	}
	if b.handle != nil && b.length > 0 {
		if err := b.relocate(handle, capacity); err != nil {
			b.backend.RenderBufferDestroy(handle)
			return err
		}
	}
	if b.handle != nil {
		b.backend.RenderBufferDestroy(b.handle)
	}
	core.LogDebug("%s buffer grown from %d to %d records", b.opts.Type, b.capacity, capacity)
	b.handle = handle
	b.capacity = capacity
	return nil
}

func (b *PackedBuffer) relocate(to *metadata.RenderBuffer, capacity uint32) error {
	src, err := b.backend.RenderBufferMapMemory(b.handle, 0, b.handle.TotalSize, metadata.MAP_ACCESS_READ)
	if err != nil {
		return err
	}
	defer b.backend.RenderBufferUnmapMemory(b.handle)
	dst, err := b.backend.RenderBufferMapMemory(to, 0, to.TotalSize, metadata.MAP_ACCESS_WRITE)
	if err != nil {
		return err
	}
	defer b.backend.RenderBufferUnmapMemory(to)

	if b.opts.Layout == LayoutInterleaved {
		copy(dst, src[:uint64(b.length)*uint64(b.stride)])
		return nil
	}
	for i, f := range b.fields {
		n := uint64(b.length) * uint64(f.Size())
		from := uint64(b.recordOffsets[i]) * uint64(b.capacity)
		at := uint64(b.recordOffsets[i]) * uint64(capacity)
		copy(dst[at:at+n], src[from:from+n])
	}
	return nil
}

// Destroy releases the backend storage.
func (b *PackedBuffer) Destroy() error {
	if b.mapped {
		return fmt.Errorf("%w: destroy while mapped", core.ErrMapUnmapMisuse)
	}
	if b.handle != nil {
		b.backend.RenderBufferDestroy(b.handle)
		b.handle = nil
	}
	b.capacity = 0
	b.length = 0
	return nil
}
