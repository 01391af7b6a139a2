package batch

import (
	"fmt"

	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
)

// SlotOverflow reports an instance field whose slot range runs into the base
// slot assigned to the next field. It is a warning: the binding is applied.
type SlotOverflow struct {
	Field string
	// Index of the field in the instance record.
	Index int
	Slot  uint32
	Width uint32
	// Next is the base slot of field Index+1.
	Next uint32
}

func (o SlotOverflow) String() string {
	return fmt.Sprintf("field %q spans slots [%d, %d) but the next field starts at slot %d", o.Field, o.Slot, o.Slot+o.Width, o.Next)
}

/**
 * @brief Maps the fields of the instance record onto hardware attribute
 * slots. A field wider than one slot takes as many consecutive slots as
 * needed, each reading the next 16 bytes of the field.
 */
type Binder struct {
	table    *Table
	maxSlots uint32
}

// NewBinder returns a binder for table on a device exposing maxSlots
// attribute slots. A maxSlots of 0 selects the default.
func NewBinder(table *Table, maxSlots uint32) *Binder {
	if maxSlots == 0 {
		maxSlots = metadata.DEFAULT_MAX_VERTEX_SLOTS
	}
	return &Binder{table: table, maxSlots: maxSlots}
}

// Attributes computes the slot bindings for an assignment of one base slot per
// instance field, along with any overflow into a neighbouring field.
func (b *Binder) Attributes(slots []uint32) ([]metadata.VertexAttribute, []SlotOverflow, error) {
	fields := b.table.instances.Fields()
	if len(slots) != len(fields) {
		return nil, nil, fmt.Errorf("%w: %d slots for %d fields", core.ErrSlotAssignment, len(slots), len(fields))
	}

	var attributes []metadata.VertexAttribute
	var overflows []SlotOverflow
	for i, f := range fields {
		width := f.Slots()
		if slots[i] < GEOMETRY_SLOTS {
			return nil, nil, fmt.Errorf("%w: field %q assigned to geometry slot %d", core.ErrSlotAssignment, f.Name, slots[i])
		}
		if uint64(slots[i])+uint64(width) > uint64(b.maxSlots) {
			return nil, nil, fmt.Errorf("%w: field %q needs slots [%d, %d), device has %d", core.ErrSlotAssignment, f.Name, slots[i], uint64(slots[i])+uint64(width), b.maxSlots)
		}

		perSlot := f.SlotComponents()
		for k := uint32(0); k < width; k++ {
			attributes = append(attributes, metadata.VertexAttribute{
				Slot:       slots[i] + k,
				Buffer:     b.table.instances.Handle(),
				Offset:     b.table.instances.Offset(i) + uint64(metadata.VERTEX_SLOT_SIZE*k),
				Stride:     b.table.instances.AttribStride(i),
				Kind:       f.Kind,
				Components: min(perSlot, f.Components-k*perSlot),
				Divisor:    1,
			})
		}

		if i+1 < len(fields) && slots[i]+width > slots[i+1] {
			overflows = append(overflows, SlotOverflow{Field: f.Name, Index: i, Slot: slots[i], Width: width, Next: slots[i+1]})
		}
	}
	return attributes, overflows, nil
}

// Bind applies a slot assignment to the table's vertex layout and binds it.
// Overflows are logged and returned; only structural errors stop the binding.
func (b *Binder) Bind(slots []uint32) ([]SlotOverflow, error) {
	attributes, overflows, err := b.Attributes(slots)
	if err != nil {
		return nil, err
	}
	for _, o := range overflows {
		core.LogWarn("attribute slot overflow: %s", o)
	}

	if b.table.isMapped() {
		return overflows, fmt.Errorf("%w: binding while a batch buffer is mapped", core.ErrMapUnmapMisuse)
	}

	layout := *b.table.layout
	bound := make([]metadata.VertexAttribute, 0, len(layout.Attributes)+len(attributes))
	for _, a := range layout.Attributes {
		if a.Divisor == 0 {
			bound = append(bound, a)
		}
	}
	// Slots shared by two fields keep the later binding.
	for _, a := range attributes {
		replaced := false
		for j := range bound {
			if bound[j].Slot == a.Slot {
				bound[j] = a
				replaced = true
			}
		}
		if !replaced {
			bound = append(bound, a)
		}
	}
	layout.Attributes = bound
	if err := b.table.backend.VertexLayoutBind(&layout); err != nil {
		return overflows, err
	}
	b.table.layout = &layout
	return overflows, nil
}
