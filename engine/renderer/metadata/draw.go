package metadata

import "encoding/binary"

/** @brief The size in bytes of one DrawIndexedIndirectCommand as read by the driver. */
const DRAW_INDEXED_INDIRECT_COMMAND_SIZE uint32 = 20

/**
 * @brief One indexed, instanced draw as consumed by the graphics driver from
 * an indirect buffer. The field order and width are the driver's wire format
 * (VkDrawIndexedIndirectCommand / DrawElementsIndirectCommand) and must not
 * change.
 */
type DrawIndexedIndirectCommand struct {
	/** @brief Number of indices to draw. */
	Count uint32
	/** @brief Number of instances to draw. */
	InstanceCount uint32
	/** @brief First index within the index buffer. */
	FirstIndex uint32
	/** @brief Value added to every index before fetching the vertex. */
	BaseVertex uint32
	/** @brief First instance; offsets every per-instance attribute fetch. */
	BaseInstance uint32
}

func (c DrawIndexedIndirectCommand) Size() int { return int(DRAW_INDEXED_INDIRECT_COMMAND_SIZE) }

func (c DrawIndexedIndirectCommand) Encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:], c.Count)
	binary.LittleEndian.PutUint32(dst[4:], c.InstanceCount)
	binary.LittleEndian.PutUint32(dst[8:], c.FirstIndex)
	binary.LittleEndian.PutUint32(dst[12:], c.BaseVertex)
	binary.LittleEndian.PutUint32(dst[16:], c.BaseInstance)
}

func (c *DrawIndexedIndirectCommand) Decode(src []byte) {
	c.Count = binary.LittleEndian.Uint32(src[0:])
	c.InstanceCount = binary.LittleEndian.Uint32(src[4:])
	c.FirstIndex = binary.LittleEndian.Uint32(src[8:])
	c.BaseVertex = binary.LittleEndian.Uint32(src[12:])
	c.BaseInstance = binary.LittleEndian.Uint32(src[16:])
}

/**
 * @brief A single multi-draw submission: DrawCount commands read from
 * Commands, Stride bytes apart, using Layout for vertex fetch.
 */
type MultiDrawSubmission struct {
	Layout    *VertexLayout
	Commands  *RenderBuffer
	Offset    uint64
	DrawCount uint32
	Stride    uint32
}
