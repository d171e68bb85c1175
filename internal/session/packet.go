// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package session implements the per-peer UDP session: handshake, chunked
// sequence multiplexing, selective reliability, acknowledgement, and
// liveness detection, on top of the wire packet layout below.
package session

import "encoding/binary"

const (
	// FlagREL marks a chunk that requires acknowledgement.
	FlagREL uint8 = 1 << 0
	// FlagACK marks a packet as an acknowledgement echo of (sequence, chunk).
	FlagACK uint8 = 1 << 1
	// FlagFIN marks the last chunk of a sequence.
	FlagFIN uint8 = 1 << 2
	// FlagEND marks a connection-termination packet.
	FlagEND uint8 = 1 << 3

	flagReservedMask = 0xF0

	// MaxPayload is the largest chunk payload carried by one datagram.
	MaxPayload = 504
	// MaxChunks is the largest number of chunks one sequence may span.
	MaxChunks = 256

	headerSize = 4
	// MinDatagram and MaxDatagram bound a well-formed packet on the wire.
	MinDatagram = headerSize
	MaxDatagram = headerSize + MaxPayload
)

// Header is the fixed 4-byte packet header (§6).
type Header struct {
	Flags    uint8
	Chunk    uint8
	Sequence uint16
}

// Packet is a decoded datagram: header plus chunk payload.
type Packet struct {
	Header
	Payload []byte
}

// Encode renders p as a wire datagram.
func (p Packet) Encode() []byte {
	buf := make([]byte, headerSize+len(p.Payload))
	buf[0] = p.Flags
	buf[1] = p.Chunk
	binary.BigEndian.PutUint16(buf[2:4], p.Sequence)
	copy(buf[4:], p.Payload)
	return buf
}

// DecodePacket parses a received datagram. It returns ErrMalformedPacket for
// any of the conditions §7 assigns to MalformedPacket: short header,
// reserved flag bits set, or an oversized payload.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < headerSize {
		return Packet{}, ErrMalformedPacket
	}
	if len(data) > MaxDatagram {
		return Packet{}, ErrMalformedPacket
	}
	flags := data[0]
	if flags&flagReservedMask != 0 {
		return Packet{}, ErrMalformedPacket
	}
	p := Packet{
		Header: Header{
			Flags:    flags,
			Chunk:    data[1],
			Sequence: binary.BigEndian.Uint16(data[2:4]),
		},
	}
	if len(data) > headerSize {
		p.Payload = append([]byte(nil), data[headerSize:]...)
	}
	return p, nil
}

func controlPacket(flag uint8) []byte {
	return Packet{Header: Header{Flags: flag}}.Encode()
}

// ackPacket builds the ACK echo for an inbound reliable chunk.
func ackPacket(sequence uint16, chunk uint8) []byte {
	return Packet{Header: Header{Flags: FlagACK, Chunk: chunk, Sequence: sequence}}.Encode()
}
