// Package rabbit implements the non-self-describing bit-packed wire codec
// ("Rabbit") used to encode every application message: variable-length
// unsigned/signed integers, fixed-width IEEE-754 floats, and the composite
// message schema built on top of them (see messages.go).
package rabbit

import (
	"math/bits"

	"github.com/snowfight-game/core/internal/bitio"
)

// byteLen returns the smallest number of bytes needed to hold value, with
// value == 0 requiring 1 byte.
func byteLen(value uint64) int {
	if value == 0 {
		return 1
	}
	return (bits.Len64(value) + 7) / 8
}

// ceilLog2 returns ceil(log2(n)) for n >= 1, with n == 1 yielding 0.
func ceilLog2(n int) uint {
	if n <= 1 {
		return 0
	}
	return uint(bits.Len(uint(n - 1)))
}

// WriteUint encodes value as an n-byte-wide Rabbit unsigned integer: a
// ceil(log2(n))-bit prefix holding (m-1), where m is the smallest byte
// count that represents value, followed by the low m bytes of value,
// least-significant byte first.
func WriteUint(w *bitio.Writer, value uint64, n int) {
	m := byteLen(value)
	if m > n {
		m = n
	}
	k := ceilLog2(n)
	w.Push(uint64(m-1), k)
	for i := 0; i < m; i++ {
		w.Push((value>>(8*uint(i)))&0xff, 8)
	}
}

// ReadUint decodes a Rabbit unsigned integer written by WriteUint for the
// same width n, zero-extending the stored bytes to a uint64.
func ReadUint(r *bitio.Reader, n int) (uint64, error) {
	k := ceilLog2(n)
	mMinus1, err := r.Pop(k)
	if err != nil {
		return 0, err
	}
	m := int(mMinus1) + 1

	var value uint64
	for i := 0; i < m; i++ {
		b, err := r.Pop(8)
		if err != nil {
			return 0, err
		}
		value |= b << (8 * uint(i))
	}
	return value, nil
}

// zigzagEncode maps a signed n-byte-wide value onto the unsigned domain so
// that small magnitudes (positive or negative) stay small: zz(x) = (x<<1) ^
// (x>>(8n-1)) on the two's-complement representation.
func zigzagEncode(value int64, n int) uint64 {
	width := uint(8 * n)
	zz := (uint64(value) << 1) ^ uint64(value>>63)
	if width < 64 {
		zz &= (uint64(1) << width) - 1
	}
	return zz
}

func zigzagDecode(zz uint64, n int) int64 {
	signExt := -(int64(zz & 1))
	return int64(zz>>1) ^ signExt
}

// WriteInt encodes a signed n-byte-wide integer as its zig-zagged unsigned
// Rabbit encoding.
func WriteInt(w *bitio.Writer, value int64, n int) {
	WriteUint(w, zigzagEncode(value, n), n)
}

// ReadInt decodes a signed n-byte-wide integer written by WriteInt.
func ReadInt(r *bitio.Reader, n int) (int64, error) {
	zz, err := ReadUint(r, n)
	if err != nil {
		return 0, err
	}
	return zigzagDecode(zz, n), nil
}
