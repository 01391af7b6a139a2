package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
	"golang.org/x/exp/slices"
)

var attributeFormats = map[metadata.AttributeKind][4]vk.Format{
	metadata.ATTRIBUTE_KIND_FLOAT32: {vk.FormatR32Sfloat, vk.FormatR32g32Sfloat, vk.FormatR32g32b32Sfloat, vk.FormatR32g32b32a32Sfloat},
	metadata.ATTRIBUTE_KIND_FLOAT64: {vk.FormatR64Sfloat, vk.FormatR64g64Sfloat, vk.FormatR64g64b64Sfloat, vk.FormatR64g64b64a64Sfloat},
	metadata.ATTRIBUTE_KIND_INT32:   {vk.FormatR32Sint, vk.FormatR32g32Sint, vk.FormatR32g32b32Sint, vk.FormatR32g32b32a32Sint},
	metadata.ATTRIBUTE_KIND_UINT32:  {vk.FormatR32Uint, vk.FormatR32g32Uint, vk.FormatR32g32b32Uint, vk.FormatR32g32b32a32Uint},
	metadata.ATTRIBUTE_KIND_INT16:   {vk.FormatR16Sint, vk.FormatR16g16Sint, vk.FormatR16g16b16Sint, vk.FormatR16g16b16a16Sint},
	metadata.ATTRIBUTE_KIND_UINT16:  {vk.FormatR16Uint, vk.FormatR16g16Uint, vk.FormatR16g16b16Uint, vk.FormatR16g16b16a16Uint},
}

// AttributeFormat maps a slot's component kind and count to the Vulkan
// vertex format the slot is declared with.
func AttributeFormat(kind metadata.AttributeKind, components uint32) (vk.Format, error) {
	formats, ok := attributeFormats[kind]
	if !ok || components < 1 || components > 4 {
		return vk.FormatUndefined, fmt.Errorf("%w: no vertex format for %d x %s", core.ErrSlotAssignment, components, kind)
	}
	return formats[components-1], nil
}

/**
 * @brief Translates a vertex layout into the vertex input state a pipeline
 * must be created with. Every slot gets its own binding with the same
 * number, so attribute offsets are always zero and the per-slot byte offset
 * is applied when the buffers are bound.
 */
func VertexInputState(layout *metadata.VertexLayout) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription, error) {
	attributes := make([]metadata.VertexAttribute, len(layout.Attributes))
	copy(attributes, layout.Attributes)
	slices.SortFunc(attributes, func(a, b metadata.VertexAttribute) int { return int(a.Slot) - int(b.Slot) })

	bindings := make([]vk.VertexInputBindingDescription, 0, len(attributes))
	descriptions := make([]vk.VertexInputAttributeDescription, 0, len(attributes))
	for _, a := range attributes {
		format, err := AttributeFormat(a.Kind, a.Components)
		if err != nil {
			return nil, nil, err
		}
		rate := vk.VertexInputRateVertex
		if a.Divisor > 0 {
			rate = vk.VertexInputRateInstance
		}
		bindings = append(bindings, vk.VertexInputBindingDescription{
			Binding:   a.Slot,
			Stride:    a.Stride,
			InputRate: rate,
		})
		descriptions = append(descriptions, vk.VertexInputAttributeDescription{
			Location: a.Slot,
			Binding:  a.Slot,
			Format:   format,
			Offset:   0,
		})
	}
	return bindings, descriptions, nil
}
