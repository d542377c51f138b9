package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Float32sToBytes packs values little endian, the layout WGSL expects.
func Float32sToBytes(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func BytesToFloat32s(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

func Uint32sToBytes(values []uint32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

func BytesToUint32s(buf []byte) []uint32 {
	out := make([]uint32, len(buf)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return out
}

func Mat4ToBytes(m mgl32.Mat4) []byte {
	return Float32sToBytes(m[:])
}

// Uniform is a fixed-size uniform block written field by field at byte
// offsets, then flushed whole.
type Uniform struct {
	buf []byte
}

// NewUniform allocates a block rounded up to 16 bytes.
func NewUniform(size int) *Uniform {
	if size%16 != 0 {
		size += 16 - size%16
	}
	return &Uniform{buf: make([]byte, size)}
}

func (u *Uniform) Bytes() []byte {
	return u.buf
}

func (u *Uniform) Size() int {
	return len(u.buf)
}

func (u *Uniform) PutFloat(offset int, v float32) *Uniform {
	binary.LittleEndian.PutUint32(u.buf[offset:], math.Float32bits(v))
	return u
}

func (u *Uniform) PutUint(offset int, v uint32) *Uniform {
	binary.LittleEndian.PutUint32(u.buf[offset:], v)
	return u
}

func (u *Uniform) PutBool(offset int, v bool) *Uniform {
	f := float32(0)
	if v {
		f = 1
	}
	return u.PutFloat(offset, f)
}

func (u *Uniform) PutVec2(offset int, x, y float32) *Uniform {
	u.PutFloat(offset, x)
	return u.PutFloat(offset+4, y)
}

func (u *Uniform) PutVec4(offset int, v [4]float32) *Uniform {
	for i, f := range v {
		u.PutFloat(offset+i*4, f)
	}
	return u
}

func (u *Uniform) PutMat4(offset int, m mgl32.Mat4) *Uniform {
	copy(u.buf[offset:], Mat4ToBytes(m))
	return u
}
