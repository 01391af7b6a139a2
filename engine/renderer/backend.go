package renderer

import "github.com/spaghettifunk/multibatch/engine/renderer/metadata"

// RendererBackend is the GPU capability the batching core drives. It creates
// buffers, grants scoped exclusive access to byte ranges of them, binds a
// vertex layout and issues a single multi-draw indirect submission.
//
// All calls happen on the thread that owns the graphics context.
type RendererBackend interface {
	// RenderBufferCreate allocates a buffer of totalSize bytes.
	RenderBufferCreate(bufferType metadata.RenderBufferType, usage metadata.BufferUsage, totalSize uint64) (*metadata.RenderBuffer, error)
	RenderBufferDestroy(buffer *metadata.RenderBuffer)
	// RenderBufferMapMemory maps size bytes at offset and returns them as a
	// slice aliasing the buffer memory. Only one mapping per buffer may be
	// open; the slice must not be used after RenderBufferUnmapMemory.
	RenderBufferMapMemory(buffer *metadata.RenderBuffer, offset, size uint64, access metadata.MapAccess) ([]byte, error)
	RenderBufferUnmapMemory(buffer *metadata.RenderBuffer) error
	// VertexLayoutBind makes layout the source of vertex fetch for the next draw.
	VertexLayoutBind(layout *metadata.VertexLayout) error
	// MultiDrawIndexedIndirect performs submission.DrawCount indexed,
	// instanced draws described by the command buffer, in one call.
	MultiDrawIndexedIndirect(submission *metadata.MultiDrawSubmission) error
}

// FrameRecorder is implemented by backends that record draws into a
// per-frame command stream. The engine brackets every Render with it.
type FrameRecorder interface {
	BeginFrame() error
	EndFrame() error
}

// VertexSlotLimiter is implemented by backends whose device exposes fewer
// attribute slots than metadata.DEFAULT_MAX_VERTEX_SLOTS may assume.
type VertexSlotLimiter interface {
	MaxVertexSlots() uint32
}

// Shutdowner is implemented by backends holding device resources beyond
// their buffers.
type Shutdowner interface {
	Shutdown()
}
