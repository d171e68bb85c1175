package rabbit

import (
	"math"

	"github.com/snowfight-game/core/internal/bitio"
)

// WriteU8/WriteU16/WriteU32/WriteU64 and their Read counterparts encode the
// schema's named integer widths (§6) as Rabbit varints of n=1/2/4/8 bytes.
// Tags, booleans, and floats bypass the varint framing entirely (they are
// fixed-width per §4.2), which is why they have their own helpers below.

func WriteU8(w *bitio.Writer, v uint8)   { WriteUint(w, uint64(v), 1) }
func WriteU16(w *bitio.Writer, v uint16) { WriteUint(w, uint64(v), 2) }
func WriteU32(w *bitio.Writer, v uint32) { WriteUint(w, uint64(v), 4) }
func WriteU64(w *bitio.Writer, v uint64) { WriteUint(w, v, 8) }

func ReadU8(r *bitio.Reader) (uint8, error) {
	v, err := ReadUint(r, 1)
	return uint8(v), err
}

func ReadU16(r *bitio.Reader) (uint16, error) {
	v, err := ReadUint(r, 2)
	return uint16(v), err
}

func ReadU32(r *bitio.Reader) (uint32, error) {
	v, err := ReadUint(r, 4)
	return uint32(v), err
}

func ReadU64(r *bitio.Reader) (uint64, error) {
	return ReadUint(r, 8)
}

// WriteVariant writes a closed-union discriminator in the minimal bit width
// needed to distinguish its variants (§4.2 "Booleans and tags").
func WriteVariant(w *bitio.Writer, tag uint64, width uint) {
	w.Push(tag, width)
}

// ReadVariant reads a discriminator written by WriteVariant.
func ReadVariant(r *bitio.Reader, width uint) (uint64, error) {
	return r.Pop(width)
}

// WriteBool writes a single-bit boolean.
func WriteBool(w *bitio.Writer, v bool) {
	w.PushBool(v)
}

// ReadBool reads a single-bit boolean.
func ReadBool(r *bitio.Reader) (bool, error) {
	return r.PopBool()
}

// WriteFloat32 encodes the IEEE-754 bit pattern of v as a fixed 32-bit
// field, least-significant bit first (§4.2 "Float 32/64").
func WriteFloat32(w *bitio.Writer, v float32) {
	w.Push(uint64(math.Float32bits(v)), 32)
}

// ReadFloat32 decodes a float32 written by WriteFloat32.
func ReadFloat32(r *bitio.Reader) (float32, error) {
	bits, err := r.Pop(32)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(bits)), nil
}

// WriteFloat64 encodes the IEEE-754 bit pattern of v as a fixed 64-bit
// field, least-significant bit first.
func WriteFloat64(w *bitio.Writer, v float64) {
	w.Push(math.Float64bits(v), 64)
}

// ReadFloat64 decodes a float64 written by WriteFloat64.
func ReadFloat64(r *bitio.Reader) (float64, error) {
	bits, err := r.Pop(64)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}
