package memory

import (
	"testing"

	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapIsExclusive(t *testing.T) {
	b := New()
	buf, err := b.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_VERTEX, metadata.BUFFER_USAGE_STATIC, 32)
	require.NoError(t, err)

	data, err := b.RenderBufferMapMemory(buf, 8, 8, metadata.MAP_ACCESS_WRITE)
	require.NoError(t, err)
	assert.Len(t, data, 8)
	copy(data, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	_, err = b.RenderBufferMapMemory(buf, 0, 4, metadata.MAP_ACCESS_READ)
	assert.ErrorIs(t, err, core.ErrMapUnmapMisuse)
	require.NoError(t, b.RenderBufferUnmapMemory(buf))
	assert.ErrorIs(t, b.RenderBufferUnmapMemory(buf), core.ErrMapUnmapMisuse)

	raw, err := b.Bytes(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, raw[8:16])
}

func TestMapOutOfBounds(t *testing.T) {
	b := New()
	buf, err := b.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_INDEX, metadata.BUFFER_USAGE_STATIC, 16)
	require.NoError(t, err)
	_, err = b.RenderBufferMapMemory(buf, 8, 9, metadata.MAP_ACCESS_WRITE)
	assert.ErrorIs(t, err, core.ErrOutOfRange)

	_, err = b.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_INDEX, metadata.BUFFER_USAGE_STATIC, 0)
	assert.ErrorIs(t, err, core.ErrInvalidCapacity)
}

func TestStrictPanics(t *testing.T) {
	b := New()
	b.Strict = true
	buf, err := b.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_VERTEX, metadata.BUFFER_USAGE_STATIC, 4)
	require.NoError(t, err)
	assert.Panics(t, func() { b.RenderBufferUnmapMemory(buf) })
}

type fixture struct {
	backend    *Backend
	vertices   *metadata.RenderBuffer
	indices    *metadata.RenderBuffer
	instances  *metadata.RenderBuffer
	commands   *metadata.RenderBuffer
	layout     *metadata.VertexLayout
	submission *metadata.MultiDrawSubmission
}

func newFixture(t *testing.T, commands ...metadata.DrawIndexedIndirectCommand) *fixture {
	t.Helper()
	f := &fixture{backend: New()}
	var err error
	f.vertices, err = f.backend.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_VERTEX, metadata.BUFFER_USAGE_STATIC, 4*12)
	require.NoError(t, err)
	f.indices, err = f.backend.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_INDEX, metadata.BUFFER_USAGE_STATIC, 6*2)
	require.NoError(t, err)
	f.instances, err = f.backend.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_INSTANCE, metadata.BUFFER_USAGE_DYNAMIC, 3*16)
	require.NoError(t, err)
	size := uint64(len(commands)) * uint64(metadata.DRAW_INDEXED_INDIRECT_COMMAND_SIZE)
	f.commands, err = f.backend.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_INDIRECT, metadata.BUFFER_USAGE_DYNAMIC, size)
	require.NoError(t, err)

	data, err := f.backend.RenderBufferMapMemory(f.commands, 0, size, metadata.MAP_ACCESS_WRITE)
	require.NoError(t, err)
	for i, c := range commands {
		c.Encode(data[i*int(metadata.DRAW_INDEXED_INDIRECT_COMMAND_SIZE):])
	}
	require.NoError(t, f.backend.RenderBufferUnmapMemory(f.commands))

	f.layout = &metadata.VertexLayout{
		Attributes: []metadata.VertexAttribute{
			{Slot: 0, Buffer: f.vertices, Stride: 12, Kind: metadata.ATTRIBUTE_KIND_FLOAT32, Components: 3},
			{Slot: 2, Buffer: f.instances, Stride: 16, Kind: metadata.ATTRIBUTE_KIND_FLOAT32, Components: 4, Divisor: 1},
		},
		IndexBuffer: f.indices,
		IndexType:   metadata.INDEX_TYPE_UINT16,
	}
	f.submission = &metadata.MultiDrawSubmission{
		Layout:    f.layout,
		Commands:  f.commands,
		DrawCount: uint32(len(commands)),
		Stride:    metadata.DRAW_INDEXED_INDIRECT_COMMAND_SIZE,
	}
	return f
}

func TestMultiDrawRecordsSubmission(t *testing.T) {
	f := newFixture(t,
		metadata.DrawIndexedIndirectCommand{Count: 3, InstanceCount: 2, FirstIndex: 0, BaseInstance: 0},
		metadata.DrawIndexedIndirectCommand{Count: 3, InstanceCount: 1, FirstIndex: 3, BaseInstance: 2},
	)
	require.NoError(t, f.backend.MultiDrawIndexedIndirect(f.submission))

	sub, ok := f.backend.LastSubmission()
	require.True(t, ok)
	require.Len(t, sub.Commands, 2)
	assert.Equal(t, uint32(2), sub.Commands[0].InstanceCount)
	assert.Equal(t, uint32(2), sub.Commands[1].BaseInstance)
	assert.Equal(t, uint64(3), sub.Instances())
	assert.Len(t, sub.Layout.Attributes, 2)
	assert.Same(t, f.layout, f.backend.BoundLayout())

	f.backend.Reset()
	assert.Empty(t, f.backend.Submissions())
}

func TestMultiDrawValidatesFetches(t *testing.T) {
	f := newFixture(t, metadata.DrawIndexedIndirectCommand{Count: 3, InstanceCount: 4})
	assert.ErrorIs(t, f.backend.MultiDrawIndexedIndirect(f.submission), core.ErrOutOfRange)

	f = newFixture(t, metadata.DrawIndexedIndirectCommand{Count: 6, FirstIndex: 3, InstanceCount: 1})
	assert.ErrorIs(t, f.backend.MultiDrawIndexedIndirect(f.submission), core.ErrOutOfRange)

	// empty batches are skipped whatever they point at
	f = newFixture(t, metadata.DrawIndexedIndirectCommand{Count: 6, FirstIndex: 300})
	assert.NoError(t, f.backend.MultiDrawIndexedIndirect(f.submission))
}

func TestMultiDrawWhileMapped(t *testing.T) {
	f := newFixture(t, metadata.DrawIndexedIndirectCommand{Count: 3, InstanceCount: 1})
	_, err := f.backend.RenderBufferMapMemory(f.instances, 0, 16, metadata.MAP_ACCESS_WRITE)
	require.NoError(t, err)
	assert.ErrorIs(t, f.backend.MultiDrawIndexedIndirect(f.submission), core.ErrMapUnmapMisuse)
	require.NoError(t, f.backend.RenderBufferUnmapMemory(f.instances))

	_, err = f.backend.RenderBufferMapMemory(f.commands, 0, 4, metadata.MAP_ACCESS_READ)
	require.NoError(t, err)
	assert.ErrorIs(t, f.backend.MultiDrawIndexedIndirect(f.submission), core.ErrMapUnmapMisuse)
}

func TestDestroy(t *testing.T) {
	f := newFixture(t, metadata.DrawIndexedIndirectCommand{})
	assert.Equal(t, 4, f.backend.Live())
	f.backend.RenderBufferDestroy(f.vertices)
	assert.Equal(t, 3, f.backend.Live())
	assert.ErrorIs(t, f.backend.VertexLayoutBind(f.layout), core.ErrOutOfRange)
}
