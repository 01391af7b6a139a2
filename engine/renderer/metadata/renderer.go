package metadata

import (
	"github.com/google/uuid"
)

type RenderBufferType int

const (
	/** @brief Buffer is use is unknown. Default, but usually invalid. */
	RENDERBUFFER_TYPE_UNKNOWN RenderBufferType = iota
	/** @brief Buffer is used for per-vertex data. */
	RENDERBUFFER_TYPE_VERTEX
	/** @brief Buffer is used for index data. */
	RENDERBUFFER_TYPE_INDEX
	/** @brief Buffer is used for per-instance attribute data. */
	RENDERBUFFER_TYPE_INSTANCE
	/** @brief Buffer holds indirect draw commands read by the driver. */
	RENDERBUFFER_TYPE_INDIRECT
)

func (t RenderBufferType) String() string {
	switch t {
	case RENDERBUFFER_TYPE_VERTEX:
		return "vertex"
	case RENDERBUFFER_TYPE_INDEX:
		return "index"
	case RENDERBUFFER_TYPE_INSTANCE:
		return "instance"
	case RENDERBUFFER_TYPE_INDIRECT:
		return "indirect"
	}
	return "unknown"
}

/** @brief A hint describing how often the contents of a buffer change. */
type BufferUsage int

const (
	/** @brief Written once, drawn many times. */
	BUFFER_USAGE_STATIC BufferUsage = iota
	/** @brief Rewritten occasionally. */
	BUFFER_USAGE_DYNAMIC
	/** @brief Rewritten every frame. */
	BUFFER_USAGE_STREAM
)

/** @brief The kind of access requested when mapping a buffer range. */
type MapAccess uint8

const (
	MAP_ACCESS_READ MapAccess = 1 << iota
	MAP_ACCESS_WRITE

	MAP_ACCESS_READ_WRITE = MAP_ACCESS_READ | MAP_ACCESS_WRITE
)

func (a MapAccess) CanRead() bool  { return a&MAP_ACCESS_READ != 0 }
func (a MapAccess) CanWrite() bool { return a&MAP_ACCESS_WRITE != 0 }

type RenderBuffer struct {
	/** @brief Unique identifier, used for logging and backend bookkeeping. */
	ID uuid.UUID
	/** @brief The type of buffer, which typically determines its use. */
	RenderBufferType RenderBufferType
	/** @brief The usage hint the buffer was created with. */
	Usage BufferUsage
	/** @brief The total size of the buffer in bytes. */
	TotalSize uint64
	/** @brief Contains internal data for the renderer-API-specific buffer. */
	InternalData interface{}
}

func NewRenderBuffer(bufferType RenderBufferType, usage BufferUsage, totalSize uint64) *RenderBuffer {
	return &RenderBuffer{
		ID:               uuid.New(),
		RenderBufferType: bufferType,
		Usage:            usage,
		TotalSize:        totalSize,
	}
}
