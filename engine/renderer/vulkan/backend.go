package vulkan

import (
	"errors"
	"fmt"
	"math"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/renderer"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
)

var _ renderer.RendererBackend = (*VulkanRenderer)(nil)

var errNotRecording = errors.New("no command buffer is recording")

// VulkanRenderer issues multi-draw submissions into a command buffer. The
// command buffer is either supplied by the host with SetCommandBuffer, or
// owned by the renderer between BeginFrame and EndFrame. In both cases the
// host is responsible for the render pass and for a graphics pipeline whose
// vertex input state comes from VertexInputState.
type VulkanRenderer struct {
	FrameNumber uint64

	// Called right after the frame command buffer begins and right before
	// it ends. Hosts use them to begin and end their render pass and to bind
	// their pipeline.
	OnBeginFrame func(cb vk.CommandBuffer) error
	OnEndFrame   func(cb vk.CommandBuffer) error

	context  *VulkanContext
	layout   *metadata.VertexLayout
	external vk.CommandBuffer
	inFrame  bool
}

func New(appName string, debug bool) (*VulkanRenderer, error) {
	context, err := NewHeadlessContext(appName, debug)
	if err != nil {
		return nil, err
	}
	return &VulkanRenderer{context: context}, nil
}

func (vr *VulkanRenderer) Context() *VulkanContext { return vr.context }

// MaxVertexSlots reports how many attribute slots the device exposes.
func (vr *VulkanRenderer) MaxVertexSlots() uint32 {
	return vr.context.Device.MaxVertexInputAttributes
}

// SetCommandBuffer makes the renderer record into cb, which the host has
// already begun. Passing nil reverts to the renderer's own frame buffer.
func (vr *VulkanRenderer) SetCommandBuffer(cb vk.CommandBuffer) {
	vr.external = cb
}

func (vr *VulkanRenderer) commandBuffer() (vk.CommandBuffer, error) {
	if vr.external != nil {
		return vr.external, nil
	}
	if vr.inFrame {
		return vr.context.CommandBuffer.Handle, nil
	}
	return nil, errNotRecording
}

func (vr *VulkanRenderer) BeginFrame() error {
	if vr.inFrame {
		return fmt.Errorf("frame %d already began", vr.FrameNumber)
	}
	if !vr.context.Fence.FenceWait(vr.context, math.MaxUint64) {
		return fmt.Errorf("in-flight fence wait failure")
	}
	cb := vr.context.CommandBuffer
	if err := cb.Reset(); err != nil {
		return err
	}
	if err := cb.Begin(true, false); err != nil {
		return err
	}
	vr.inFrame = true
	if vr.OnBeginFrame != nil {
		if err := vr.OnBeginFrame(cb.Handle); err != nil {
			cb.End()
			vr.inFrame = false
			return err
		}
	}
	return nil
}

func (vr *VulkanRenderer) EndFrame() error {
	if !vr.inFrame {
		return errNotRecording
	}
	vr.inFrame = false
	cb := vr.context.CommandBuffer
	if vr.OnEndFrame != nil {
		if err := vr.OnEndFrame(cb.Handle); err != nil {
			cb.End()
			return err
		}
	}
	if err := cb.End(); err != nil {
		return err
	}
	if err := vr.context.Fence.FenceReset(vr.context); err != nil {
		return err
	}
	if err := cb.Submit(vr.context, vr.context.Fence); err != nil {
		return err
	}
	vr.FrameNumber++
	return nil
}

func internalBuffer(buffer *metadata.RenderBuffer) (*VulkanBuffer, error) {
	if buffer == nil {
		return nil, fmt.Errorf("%w: nil buffer", core.ErrOutOfRange)
	}
	vb, ok := buffer.InternalData.(*VulkanBuffer)
	if !ok || vb.Handle == vk.NullBuffer {
		return nil, fmt.Errorf("%w: buffer %s is not a live Vulkan buffer", core.ErrOutOfRange, buffer.ID)
	}
	return vb, nil
}

func (vr *VulkanRenderer) RenderBufferCreate(bufferType metadata.RenderBufferType, usage metadata.BufferUsage, totalSize uint64) (*metadata.RenderBuffer, error) {
	if totalSize == 0 {
		return nil, fmt.Errorf("%w: zero sized %s buffer", core.ErrInvalidCapacity, bufferType)
	}
	vb, err := NewVulkanBuffer(vr.context, bufferType, totalSize)
	if err != nil {
		return nil, err
	}
	buffer := metadata.NewRenderBuffer(bufferType, usage, totalSize)
	buffer.InternalData = vb
	core.LogDebug("created %s buffer %s (%d bytes)", bufferType, buffer.ID, totalSize)
	return buffer, nil
}

func (vr *VulkanRenderer) RenderBufferDestroy(buffer *metadata.RenderBuffer) {
	vb, err := internalBuffer(buffer)
	if err != nil {
		return
	}
	vb.Destroy(vr.context)
	buffer.InternalData = nil
}

func (vr *VulkanRenderer) RenderBufferMapMemory(buffer *metadata.RenderBuffer, offset, size uint64, access metadata.MapAccess) ([]byte, error) {
	vb, err := internalBuffer(buffer)
	if err != nil {
		return nil, err
	}
	return vb.Map(vr.context, offset, size)
}

func (vr *VulkanRenderer) RenderBufferUnmapMemory(buffer *metadata.RenderBuffer) error {
	vb, err := internalBuffer(buffer)
	if err != nil {
		return err
	}
	return vb.Unmap(vr.context)
}

func (vr *VulkanRenderer) VertexLayoutBind(layout *metadata.VertexLayout) error {
	if layout == nil {
		return fmt.Errorf("%w: nil vertex layout", core.ErrInvalidLayout)
	}
	for _, a := range layout.Attributes {
		if a.Slot >= vr.MaxVertexSlots() {
			return fmt.Errorf("%w: slot %d, device has %d", core.ErrSlotAssignment, a.Slot, vr.MaxVertexSlots())
		}
		if _, err := AttributeFormat(a.Kind, a.Components); err != nil {
			return err
		}
		vb, err := internalBuffer(a.Buffer)
		if err != nil {
			return err
		}
		if vb.IsMapped() {
			return fmt.Errorf("%w: slot %d reads a mapped buffer", core.ErrMapUnmapMisuse, a.Slot)
		}
	}
	if _, err := internalBuffer(layout.IndexBuffer); err != nil {
		return err
	}
	vr.layout = layout
	return nil
}

func (vr *VulkanRenderer) MultiDrawIndexedIndirect(submission *metadata.MultiDrawSubmission) error {
	cb, err := vr.commandBuffer()
	if err != nil {
		return err
	}
	if submission.Layout != nil && submission.Layout != vr.layout {
		if err := vr.VertexLayoutBind(submission.Layout); err != nil {
			return err
		}
	}
	if vr.layout == nil {
		return fmt.Errorf("%w: no vertex layout bound", core.ErrInvalidLayout)
	}
	commands, err := internalBuffer(submission.Commands)
	if err != nil {
		return err
	}
	if commands.IsMapped() {
		return fmt.Errorf("%w: command buffer is mapped", core.ErrMapUnmapMisuse)
	}
	if submission.DrawCount > 1 && submission.Stride < metadata.DRAW_INDEXED_INDIRECT_COMMAND_SIZE {
		return fmt.Errorf("%w: command stride %d", core.ErrInvalidLayout, submission.Stride)
	}
	if submission.DrawCount > vr.context.Device.MaxDrawIndirectCount {
		return fmt.Errorf("%w: %d draws, device accepts %d", core.ErrCapacityExceeded, submission.DrawCount, vr.context.Device.MaxDrawIndirectCount)
	}

	for _, a := range vr.layout.Attributes {
		vb, err := internalBuffer(a.Buffer)
		if err != nil {
			return err
		}
		vk.CmdBindVertexBuffers(cb, a.Slot, 1, []vk.Buffer{vb.Handle}, []vk.DeviceSize{vk.DeviceSize(a.Offset)})
	}
	index, err := internalBuffer(vr.layout.IndexBuffer)
	if err != nil {
		return err
	}
	indexType := vk.IndexTypeUint16
	if vr.layout.IndexType == metadata.INDEX_TYPE_UINT32 {
		indexType = vk.IndexTypeUint32
	}
	vk.CmdBindIndexBuffer(cb, index.Handle, 0, indexType)

	if submission.DrawCount == 0 {
		return nil
	}
	vk.CmdDrawIndexedIndirect(cb, commands.Handle, vk.DeviceSize(submission.Offset), submission.DrawCount, submission.Stride)
	return nil
}

func (vr *VulkanRenderer) Shutdown() {
	if vr.context == nil {
		return
	}
	vr.context.Destroy()
	vr.context = nil
	vr.layout = nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
