package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributeFormat(t *testing.T) {
	cases := []struct {
		kind       metadata.AttributeKind
		components uint32
		want       vk.Format
	}{
		{metadata.ATTRIBUTE_KIND_FLOAT32, 3, vk.FormatR32g32b32Sfloat},
		{metadata.ATTRIBUTE_KIND_FLOAT32, 4, vk.FormatR32g32b32a32Sfloat},
		{metadata.ATTRIBUTE_KIND_FLOAT64, 2, vk.FormatR64g64Sfloat},
		{metadata.ATTRIBUTE_KIND_INT32, 1, vk.FormatR32Sint},
		{metadata.ATTRIBUTE_KIND_UINT16, 2, vk.FormatR16g16Uint},
	}
	for _, c := range cases {
		got, err := AttributeFormat(c.kind, c.components)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "%d x %s", c.components, c.kind)
	}

	_, err := AttributeFormat(metadata.ATTRIBUTE_KIND_FLOAT32, 5)
	assert.ErrorIs(t, err, core.ErrSlotAssignment)
	_, err = AttributeFormat(metadata.ATTRIBUTE_KIND_FLOAT32, 0)
	assert.ErrorIs(t, err, core.ErrSlotAssignment)
}

func TestVertexInputState(t *testing.T) {
	layout := &metadata.VertexLayout{
		Attributes: []metadata.VertexAttribute{
			{Slot: 3, Offset: 16, Stride: 64, Kind: metadata.ATTRIBUTE_KIND_FLOAT32, Components: 4, Divisor: 1},
			{Slot: 0, Offset: 0, Stride: 12, Kind: metadata.ATTRIBUTE_KIND_FLOAT32, Components: 3},
			{Slot: 2, Offset: 0, Stride: 64, Kind: metadata.ATTRIBUTE_KIND_FLOAT32, Components: 4, Divisor: 1},
		},
	}

	bindings, attributes, err := VertexInputState(layout)
	require.NoError(t, err)
	require.Len(t, bindings, 3)
	require.Len(t, attributes, 3)

	assert.Equal(t, uint32(0), bindings[0].Binding)
	assert.Equal(t, uint32(12), bindings[0].Stride)
	assert.Equal(t, vk.VertexInputRateVertex, bindings[0].InputRate)

	assert.Equal(t, uint32(2), bindings[1].Binding)
	assert.Equal(t, vk.VertexInputRateInstance, bindings[1].InputRate)
	assert.Equal(t, uint32(3), bindings[2].Binding)
	assert.Equal(t, uint32(64), bindings[2].Stride)

	for i := range attributes {
		assert.Equal(t, bindings[i].Binding, attributes[i].Location)
		assert.Equal(t, bindings[i].Binding, attributes[i].Binding)
		assert.Equal(t, uint32(0), attributes[i].Offset)
	}
	assert.Equal(t, vk.FormatR32g32b32Sfloat, attributes[0].Format)

	// The layout itself is left untouched.
	assert.Equal(t, uint32(3), layout.Attributes[0].Slot)
}

func TestVertexInputStateRejectsWideSlots(t *testing.T) {
	layout := &metadata.VertexLayout{
		Attributes: []metadata.VertexAttribute{
			{Slot: 2, Stride: 64, Kind: metadata.ATTRIBUTE_KIND_FLOAT32, Components: 16},
		},
	}
	_, _, err := VertexInputState(layout)
	assert.ErrorIs(t, err, core.ErrSlotAssignment)
}

func TestBufferUsage(t *testing.T) {
	usage, err := bufferUsage(metadata.RENDERBUFFER_TYPE_INDIRECT)
	require.NoError(t, err)
	assert.NotZero(t, usage&vk.BufferUsageIndirectBufferBit)

	usage, err = bufferUsage(metadata.RENDERBUFFER_TYPE_INSTANCE)
	require.NoError(t, err)
	assert.NotZero(t, usage&vk.BufferUsageVertexBufferBit)

	_, err = bufferUsage(metadata.RENDERBUFFER_TYPE_UNKNOWN)
	assert.ErrorIs(t, err, core.ErrInvalidLayout)
}

func TestVulkanSafeStrings(t *testing.T) {
	in := []string{"a", "b\x00", ""}
	out := VulkanSafeStrings(in)
	assert.Equal(t, []string{"a\x00", "b\x00", "\x00"}, out)
	assert.Equal(t, "a", in[0])
	assert.Equal(t, 3, FindFirstZeroInByteArray([]byte{'a', 'b', 'c', 0, 'd'}))
	assert.Equal(t, 2, FindFirstZeroInByteArray([]byte{'a', 'b'}))
}

func TestLockPoolSerializesGroups(t *testing.T) {
	pool := NewVulkanLockPool()
	counter := 0
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			pool.SafeCall(BufferManagement, func() error {
				counter++
				return nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, 8, counter)

	// A call in one group can run inside a call in another.
	err := pool.SafeCall(MemoryManagement, func() error {
		return pool.SafeQueueCall(0, func() error {
			return pool.SafeCall(BufferManagement, func() error { return nil })
		})
	})
	assert.NoError(t, err)
}
