package buffer

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/math"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
)

// Layout selects how the fields of a record are arranged in memory.
type Layout uint8

const (
	// LayoutInterleaved stores the fields of one record next to each other.
	LayoutInterleaved Layout = iota
	// LayoutPacked stores each field in its own contiguous sub-array: all of
	// field 0, then all of field 1, and so on.
	LayoutPacked
)

func (l Layout) String() string {
	if l == LayoutPacked {
		return "packed"
	}
	return "interleaved"
}

// ParseLayout is the inverse of Layout.String.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "packed", "":
		return LayoutPacked, nil
	case "interleaved":
		return LayoutInterleaved, nil
	}
	return LayoutPacked, fmt.Errorf("%w: unknown layout %q", core.ErrInvalidLayout, s)
}

// Field describes one typed member of a record.
type Field struct {
	Name       string
	Kind       metadata.AttributeKind
	Components uint32
}

// Size is the byte size of one value of the field.
func (f Field) Size() uint32 {
	return f.Kind.Size() * f.Components
}

// Align is the natural alignment of the field's components.
func (f Field) Align() uint32 {
	return f.Kind.Size()
}

// Slots is the number of 4-component hardware attribute slots the field
// spans when bound as a vertex attribute.
func (f Field) Slots() uint32 {
	return math.CeilDiv(f.Size(), metadata.VERTEX_SLOT_SIZE)
}

// SlotComponents is how many components one hardware slot reads for this
// field: four 32-bit values, two 64-bit values, or at most four 16-bit values.
func (f Field) SlotComponents() uint32 {
	return min(4, metadata.VERTEX_SLOT_SIZE/f.Kind.Size())
}

func (f Field) validate() error {
	if f.Components == 0 || f.Components > 16 {
		return fmt.Errorf("%w: field %q has %d components", core.ErrInvalidLayout, f.Name, f.Components)
	}
	if f.Kind > metadata.ATTRIBUTE_KIND_UINT16 {
		return fmt.Errorf("%w: field %q has unknown kind %d", core.ErrInvalidLayout, f.Name, f.Kind)
	}
	if f.Kind.Size() == 2 && f.Components > 4 {
		// One slot reads at most four components, so wider 16-bit fields
		// cannot be expressed in Slots() slots.
		return fmt.Errorf("%w: 16-bit field %q wider than 4 components", core.ErrInvalidLayout, f.Name)
	}
	return nil
}

func Float(name string) Field {
	return Field{Name: name, Kind: metadata.ATTRIBUTE_KIND_FLOAT32, Components: 1}
}

func Vec2(name string) Field {
	return Field{Name: name, Kind: metadata.ATTRIBUTE_KIND_FLOAT32, Components: 2}
}

func Vec3(name string) Field {
	return Field{Name: name, Kind: metadata.ATTRIBUTE_KIND_FLOAT32, Components: 3}
}

func Vec4(name string) Field {
	return Field{Name: name, Kind: metadata.ATTRIBUTE_KIND_FLOAT32, Components: 4}
}

func Mat4(name string) Field {
	return Field{Name: name, Kind: metadata.ATTRIBUTE_KIND_FLOAT32, Components: 16}
}

func IVec4(name string) Field {
	return Field{Name: name, Kind: metadata.ATTRIBUTE_KIND_INT32, Components: 4}
}

func Uint32(name string) Field {
	return Field{Name: name, Kind: metadata.ATTRIBUTE_KIND_UINT32, Components: 1}
}

func Uint16(name string) Field {
	return Field{Name: name, Kind: metadata.ATTRIBUTE_KIND_UINT16, Components: 1}
}

// Value is a fixed-size datum that can be stored in a field. Decode is
// usually implemented on a pointer receiver, so pointers are passed.
type Value interface {
	Size() int
	Encode(dst []byte)
	Decode(src []byte)
}

// Scalar values for single-component fields.
type (
	F32 float32
	I32 int32
	U32 uint32
	U16 uint16
)

func (v F32) Size() int          { return 4 }
func (v F32) Encode(dst []byte)  { binary.LittleEndian.PutUint32(dst, math32.Float32bits(float32(v))) }
func (v *F32) Decode(src []byte) { *v = F32(math32.Float32frombits(binary.LittleEndian.Uint32(src))) }

func (v I32) Size() int          { return 4 }
func (v I32) Encode(dst []byte)  { binary.LittleEndian.PutUint32(dst, uint32(v)) }
func (v *I32) Decode(src []byte) { *v = I32(binary.LittleEndian.Uint32(src)) }

func (v U32) Size() int          { return 4 }
func (v U32) Encode(dst []byte)  { binary.LittleEndian.PutUint32(dst, uint32(v)) }
func (v *U32) Decode(src []byte) { *v = U32(binary.LittleEndian.Uint32(src)) }

func (v U16) Size() int          { return 2 }
func (v U16) Encode(dst []byte)  { binary.LittleEndian.PutUint16(dst, uint16(v)) }
func (v *U16) Decode(src []byte) { *v = U16(binary.LittleEndian.Uint16(src)) }

// Int4 is a 4-component signed integer vector, e.g. for ids or flags.
type Int4 [4]int32

func (v Int4) Size() int { return 16 }

func (v Int4) Encode(dst []byte) {
	for i, c := range v {
		binary.LittleEndian.PutUint32(dst[i*4:], uint32(c))
	}
}

func (v *Int4) Decode(src []byte) {
	for i := range v {
		v[i] = int32(binary.LittleEndian.Uint32(src[i*4:]))
	}
}
