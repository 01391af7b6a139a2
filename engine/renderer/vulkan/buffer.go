package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
)

// VulkanBuffer is the internal data of a metadata.RenderBuffer created by
// the Vulkan backend. Memory is always host visible and coherent so mapped
// writes need no explicit flush.
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Usage  vk.BufferUsageFlagBits
	Size   uint64

	mapped bool
}

func bufferUsage(bufferType metadata.RenderBufferType) (vk.BufferUsageFlagBits, error) {
	usage := vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit
	switch bufferType {
	case metadata.RENDERBUFFER_TYPE_VERTEX, metadata.RENDERBUFFER_TYPE_INSTANCE:
		usage |= vk.BufferUsageVertexBufferBit
	case metadata.RENDERBUFFER_TYPE_INDEX:
		usage |= vk.BufferUsageIndexBufferBit
	case metadata.RENDERBUFFER_TYPE_INDIRECT:
		usage |= vk.BufferUsageIndirectBufferBit
	default:
		return 0, fmt.Errorf("%w: unsupported buffer type %s", core.ErrInvalidLayout, bufferType)
	}
	return usage, nil
}

func NewVulkanBuffer(context *VulkanContext, bufferType metadata.RenderBufferType, size uint64) (*VulkanBuffer, error) {
	usage, err := bufferUsage(bufferType)
	if err != nil {
		return nil, err
	}
	vb := &VulkanBuffer{
		Usage: usage,
		Size:  size,
	}

	err = context.Pool.SafeCall(BufferManagement, func() error {
		bufferInfo := vk.BufferCreateInfo{
			SType:       vk.StructureTypeBufferCreateInfo,
			Size:        vk.DeviceSize(size),
			Usage:       vk.BufferUsageFlags(usage),
			SharingMode: vk.SharingModeExclusive,
		}
		var handle vk.Buffer
		if err := vulkanError("vkCreateBuffer", vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &handle)); err != nil {
			return err
		}
		vb.Handle = handle
		return nil
	})
	if err != nil {
		return nil, err
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, vb.Handle, &requirements)
	requirements.Deref()

	properties := uint32(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	memoryType, ok := context.FindMemoryIndex(requirements.MemoryTypeBits, properties)
	if !ok {
		vb.Destroy(context)
		return nil, fmt.Errorf("no host visible memory type for a %d byte %s buffer", size, bufferType)
	}

	err = context.Pool.SafeCall(MemoryManagement, func() error {
		allocateInfo := vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  requirements.Size,
			MemoryTypeIndex: memoryType,
		}
		var memory vk.DeviceMemory
		if err := vulkanError("vkAllocateMemory", vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory)); err != nil {
			return err
		}
		vb.Memory = memory
		return vulkanError("vkBindBufferMemory", vk.BindBufferMemory(context.Device.LogicalDevice, vb.Handle, vb.Memory, 0))
	})
	if err != nil {
		vb.Destroy(context)
		return nil, err
	}
	return vb, nil
}

// Map returns size bytes at offset, aliasing the buffer memory until Unmap.
func (vb *VulkanBuffer) Map(context *VulkanContext, offset, size uint64) ([]byte, error) {
	if vb.mapped {
		return nil, fmt.Errorf("%w: buffer is already mapped", core.ErrMapUnmapMisuse)
	}
	if size == 0 || offset+size > vb.Size {
		return nil, fmt.Errorf("%w: map [%d, %d) of a %d byte buffer", core.ErrOutOfRange, offset, offset+size, vb.Size)
	}
	var ptr unsafe.Pointer
	err := context.Pool.SafeCall(MemoryManagement, func() error {
		return vulkanError("vkMapMemory", vk.MapMemory(context.Device.LogicalDevice, vb.Memory, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &ptr))
	})
	if err != nil {
		return nil, err
	}
	vb.mapped = true
	return unsafe.Slice((*byte)(ptr), size), nil
}

func (vb *VulkanBuffer) Unmap(context *VulkanContext) error {
	if !vb.mapped {
		return fmt.Errorf("%w: buffer is not mapped", core.ErrMapUnmapMisuse)
	}
	context.Pool.SafeCall(MemoryManagement, func() error {
		vk.UnmapMemory(context.Device.LogicalDevice, vb.Memory)
		return nil
	})
	vb.mapped = false
	return nil
}

func (vb *VulkanBuffer) IsMapped() bool { return vb.mapped }

func (vb *VulkanBuffer) Destroy(context *VulkanContext) {
	if vb.mapped {
		vb.Unmap(context)
	}
	context.Pool.SafeCall(BufferManagement, func() error {
		if vb.Handle != vk.NullBuffer {
			vk.DestroyBuffer(context.Device.LogicalDevice, vb.Handle, context.Allocator)
			vb.Handle = vk.NullBuffer
		}
		return nil
	})
	context.Pool.SafeCall(MemoryManagement, func() error {
		if vb.Memory != vk.NullDeviceMemory {
			vk.FreeMemory(context.Device.LogicalDevice, vb.Memory, context.Allocator)
			vb.Memory = vk.NullDeviceMemory
		}
		return nil
	})
	vb.Size = 0
}
