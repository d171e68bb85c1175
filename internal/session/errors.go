package session

import "github.com/pkg/errors"

// Error kinds from spec §7. Each is a package-level sentinel so callers can
// compare with errors.Is after a pkg/errors wrap.
var (
	// ErrMalformedPacket: header too short, reserved flags nonzero, or
	// payload oversized. Caller should drop silently.
	ErrMalformedPacket = errors.New("session: malformed packet")
	// ErrHandshakeFailed: an Init or Challenge whose payload is not a 4-byte
	// nonce, or a handshake packet received out of phase. Caller should drop
	// silently, no wire reply. A mismatched ChallengeResponse is dropped
	// without this error; it is only counted as a handshake failure.
	ErrHandshakeFailed = errors.New("session: handshake failed")
	// ErrPayloadTooLarge: an outbound payload would need more than
	// MaxChunks chunks. Surfaced to the caller; nothing is sent.
	ErrPayloadTooLarge = errors.New("session: payload too large")
	// ErrSessionClosed: the session is already closed.
	ErrSessionClosed = errors.New("session: closed")
)
