package transport

import "github.com/golang/snappy"

// compressPayload and decompressPayload implement SPEC_FULL.md's
// compression component: a whole-payload snappy transform applied before
// chunking on the way out, and after reassembly completes on the way in.
// This is transparent to the session layer — the compressed bytes are
// exactly what gets split into chunks and reassembled, so there is no wire
// change, only what's inside the payload.
func compressPayload(payload []byte) []byte {
	return snappy.Encode(nil, payload)
}

func decompressPayload(payload []byte) ([]byte, error) {
	return snappy.Decode(nil, payload)
}
