package metadata

/** @brief The numeric type of every component of an attribute. */
type AttributeKind uint8

const (
	ATTRIBUTE_KIND_FLOAT32 AttributeKind = iota
	ATTRIBUTE_KIND_FLOAT64
	ATTRIBUTE_KIND_INT32
	ATTRIBUTE_KIND_UINT32
	ATTRIBUTE_KIND_INT16
	ATTRIBUTE_KIND_UINT16
)

// Size returns the byte size of one component.
func (k AttributeKind) Size() uint32 {
	switch k {
	case ATTRIBUTE_KIND_FLOAT64:
		return 8
	case ATTRIBUTE_KIND_INT16, ATTRIBUTE_KIND_UINT16:
		return 2
	}
	return 4
}

// IsFloat reports whether the hardware reads the component as a floating
// point value. Everything else is read as an integer.
func (k AttributeKind) IsFloat() bool {
	return k == ATTRIBUTE_KIND_FLOAT32 || k == ATTRIBUTE_KIND_FLOAT64
}

func (k AttributeKind) String() string {
	switch k {
	case ATTRIBUTE_KIND_FLOAT32:
		return "float32"
	case ATTRIBUTE_KIND_FLOAT64:
		return "float64"
	case ATTRIBUTE_KIND_INT32:
		return "int32"
	case ATTRIBUTE_KIND_UINT32:
		return "uint32"
	case ATTRIBUTE_KIND_INT16:
		return "int16"
	case ATTRIBUTE_KIND_UINT16:
		return "uint16"
	}
	return "unknown"
}

// ParseAttributeKind is the inverse of AttributeKind.String.
func ParseAttributeKind(s string) (AttributeKind, bool) {
	for k := ATTRIBUTE_KIND_FLOAT32; k <= ATTRIBUTE_KIND_UINT16; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

/** @brief The number of bytes one hardware attribute slot holds (4 x 32-bit components). */
const VERTEX_SLOT_SIZE uint32 = 16

/** @brief The number of attribute slots every supported device provides. */
const DEFAULT_MAX_VERTEX_SLOTS uint32 = 16

/**
 * @brief Describes how one hardware attribute slot fetches its data.
 */
type VertexAttribute struct {
	/** @brief The hardware attribute slot (shader location). */
	Slot uint32
	/** @brief The buffer the slot reads from. */
	Buffer *RenderBuffer
	/** @brief Byte offset of the first element within Buffer. */
	Offset uint64
	/** @brief Byte distance between consecutive elements. */
	Stride uint32
	/** @brief Numeric type of each component. */
	Kind AttributeKind
	/** @brief Number of components read by the slot (1-4). */
	Components uint32
	/** @brief 0 advances per vertex, 1 advances once per instance. */
	Divisor uint32
}

/** @brief The index element type of an index buffer. */
type IndexType uint8

const (
	INDEX_TYPE_UINT16 IndexType = iota
	INDEX_TYPE_UINT32
)

/**
 * @brief Everything the vertex fetch stage needs for one multi-draw: the
 * attribute slots and the index buffer.
 */
type VertexLayout struct {
	Attributes  []VertexAttribute
	IndexBuffer *RenderBuffer
	IndexType   IndexType
}

// AttributeBySlot returns the attribute bound to slot, if any.
func (l *VertexLayout) AttributeBySlot(slot uint32) (VertexAttribute, bool) {
	for _, a := range l.Attributes {
		if a.Slot == slot {
			return a, true
		}
	}
	return VertexAttribute{}, false
}
