package math

import (
	"encoding/binary"

	"github.com/chewxy/math32"
)

// The methods below let vectors and matrices be stored as fields of a
// packed GPU buffer. Values are written little-endian, which is what the
// graphics driver reads on every platform the engine targets.

func putFloats(dst []byte, values ...float32) {
	for i, f := range values {
		binary.LittleEndian.PutUint32(dst[i*4:], math32.Float32bits(f))
	}
}

func getFloat(src []byte, i int) float32 {
	return math32.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
}

func (v Vec2) Size() int { return 8 }

func (v Vec2) Encode(dst []byte) { putFloats(dst, v.X, v.Y) }

func (v *Vec2) Decode(src []byte) {
	v.X, v.Y = getFloat(src, 0), getFloat(src, 1)
}

func (v Vec3) Size() int { return 12 }

func (v Vec3) Encode(dst []byte) { putFloats(dst, v.X, v.Y, v.Z) }

func (v *Vec3) Decode(src []byte) {
	v.X, v.Y, v.Z = getFloat(src, 0), getFloat(src, 1), getFloat(src, 2)
}

func (v Vec4) Size() int { return 16 }

func (v Vec4) Encode(dst []byte) { putFloats(dst, v.X, v.Y, v.Z, v.W) }

func (v *Vec4) Decode(src []byte) {
	v.X, v.Y, v.Z, v.W = getFloat(src, 0), getFloat(src, 1), getFloat(src, 2), getFloat(src, 3)
}

func (mt Mat4) Size() int { return 64 }

func (mt Mat4) Encode(dst []byte) { putFloats(dst, mt.Data[:]...) }

func (mt *Mat4) Decode(src []byte) {
	for i := range mt.Data {
		mt.Data[i] = getFloat(src, i)
	}
}
