package bitio

import "github.com/pkg/errors"

// ErrEndOfStream is returned by Pop when fewer than k bits remain.
var ErrEndOfStream = errors.New("bitio: end of stream")

// Reader consumes bits from a byte slice in the same LSB-first order a
// Writer produced them.
type Reader struct {
	data  []byte
	byte  int // index of the next byte to read a bit from
	nbits uint // bits already consumed from data[byte], 0..7
}

// NewReader wraps data for bit-at-a-time consumption.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining reports the number of unconsumed bits.
func (r *Reader) Remaining() int {
	return len(r.data)*8 - (r.byte*8 + int(r.nbits))
}

// Pop consumes the next k bits (0..64) and returns them packed LSB-first
// into the low bits of the result. It fails with ErrEndOfStream if fewer
// than k bits remain, leaving the reader positioned at the start of the
// failed call.
func (r *Reader) Pop(k uint) (uint64, error) {
	if uint(r.Remaining()) < k {
		return 0, ErrEndOfStream
	}
	var value uint64
	for i := uint(0); i < k; i++ {
		bit := (r.data[r.byte] >> r.nbits) & 1
		value |= uint64(bit) << i
		r.nbits++
		if r.nbits == 8 {
			r.byte++
			r.nbits = 0
		}
	}
	return value, nil
}

// PopBool consumes a single bit as a bool.
func (r *Reader) PopBool() (bool, error) {
	v, err := r.Pop(1)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}
