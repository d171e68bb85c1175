package session

import (
	"net"
	"time"

	"github.com/pkg/errors"
)

// DefaultRetransmitInterval is the minimum gap between resends of an unacked
// chunk (§4.3 "Retransmission", default 100ms).
const DefaultRetransmitInterval = 100 * time.Millisecond

// IdleTimeout is how long a session tolerates silence before closing (§3
// "Lifecycle").
const IdleTimeout = 15 * time.Second

// ReassemblyGC is how long a completed reassembly entry is kept around to
// suppress duplicate deliveries before eviction (§4.3 "Reassembly garbage
// collection").
const ReassemblyGC = 30 * time.Second

// Sender writes an encoded datagram to a specific remote address. It is the
// seam between a Session and the shared Socket I/O adapter (§4.4); the
// adapter owns the one UDP endpoint per process and serializes writes to it.
type Sender interface {
	SendTo(addr *net.UDPAddr, data []byte) error
}

// Metrics is the subset of internal/metrics.Registry a Session reports
// against. It is an interface so sessions can be exercised in tests without
// a prometheus registry, and so a nil Metrics is always safe to use.
type Metrics interface {
	PacketSent()
	PacketReceived()
	ChunkRetransmitted()
	AckSent()
	HandshakeFailure()
	SessionTimedOut()
	PayloadDelivered()
	DecodeErrorObserved()
}

type chunkKey struct {
	sequence uint16
	chunk    uint8
}

type unackedEntry struct {
	datagram   []byte
	lastSend   time.Time
	retryCount int
}

type reassemblyEntry struct {
	chunks      map[uint8][]byte
	finIndex    int // -1 until FIN observed
	completed   bool
	completedAt time.Time
	payload     []byte
}

func newReassemblyEntry() *reassemblyEntry {
	return &reassemblyEntry{chunks: make(map[uint8][]byte), finIndex: -1}
}

// Session is per-peer state: handshake phase, sequence reassembly, ACK
// bookkeeping, retransmission, and idle timeout (§3 "Session").
type Session struct {
	Addr *net.UDPAddr
	Role Role

	sender  Sender
	metrics Metrics

	phase Phase

	salt     uint32
	pepper   uint32
	nextSeq  uint16
	lastRecv time.Time

	unacked    map[chunkKey]*unackedEntry
	reassembly map[uint16]*reassemblyEntry

	retransmitInterval time.Duration
}

// NewServerSession creates a session awaiting an Init from addr.
func NewServerSession(addr *net.UDPAddr, sender Sender, metrics Metrics, now time.Time) *Session {
	return newSession(addr, RoleServer, sender, metrics, now)
}

// NewClientSession creates a session and immediately sends Init{salt} to
// addr, as the client view of the handshake requires.
func NewClientSession(addr *net.UDPAddr, sender Sender, metrics Metrics, now time.Time) *Session {
	s := newSession(addr, RoleClient, sender, metrics, now)
	s.salt = randomUint32()
	s.send(controlPayload(encodeNonce(s.salt)))
	return s
}

func newSession(addr *net.UDPAddr, role Role, sender Sender, metrics Metrics, now time.Time) *Session {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Session{
		Addr:               addr,
		Role:               role,
		sender:             sender,
		metrics:            metrics,
		phase:              PhaseInit,
		lastRecv:           now,
		unacked:            make(map[chunkKey]*unackedEntry),
		reassembly:         make(map[uint16]*reassemblyEntry),
		retransmitInterval: DefaultRetransmitInterval,
	}
}

// controlPayload wraps a raw 4-byte handshake body as a plain, unflagged,
// chunk-0/sequence-0 packet datagram (§6 "Handshake payloads").
func controlPayload(body []byte) []byte {
	return Packet{Payload: body}.Encode()
}

// SetRetransmitInterval overrides the default 100ms gap between resends of
// an unacked chunk (§4.3 "Retransmission"); a non-positive value is ignored.
func (s *Session) SetRetransmitInterval(d time.Duration) {
	if d > 0 {
		s.retransmitInterval = d
	}
}

// Phase reports the current handshake phase.
func (s *Session) Phase() Phase { return s.phase }

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool { return s.phase == PhaseClosed }

func (s *Session) send(datagram []byte) {
	if s.sender == nil {
		return
	}
	if err := s.sender.SendTo(s.Addr, datagram); err == nil {
		s.metrics.PacketSent()
	}
}

// Close sends a best-effort END packet (if not already closed) and discards
// session state. It is idempotent (§5 "Cancellation and timeouts").
func (s *Session) Close() {
	if s.phase == PhaseClosed {
		return
	}
	s.send(controlPacket(FlagEND))
	s.teardown()
}

func (s *Session) teardown() {
	s.phase = PhaseClosed
	s.unacked = nil
	s.reassembly = nil
}

// Send encodes an outbound message. L is split into ceil(L/504) chunks; it
// fails with ErrPayloadTooLarge if that exceeds MaxChunks (§4.3 "Outbound
// message path").
func (s *Session) Send(payload []byte, reliable bool, now time.Time) error {
	if s.phase == PhaseClosed {
		return ErrSessionClosed
	}
	n := (len(payload) + MaxPayload - 1) / MaxPayload
	if n == 0 {
		n = 1
	}
	if n > MaxChunks {
		return errors.Wrap(ErrPayloadTooLarge, "session.Send")
	}

	sequence := s.nextSeq
	s.nextSeq++

	for i := 0; i < n; i++ {
		start := i * MaxPayload
		end := start + MaxPayload
		if end > len(payload) {
			end = len(payload)
		}
		var flags uint8
		if i == n-1 {
			flags |= FlagFIN
		}
		if reliable {
			flags |= FlagREL
		}
		pkt := Packet{
			Header:  Header{Flags: flags, Chunk: uint8(i), Sequence: sequence},
			Payload: payload[start:end],
		}
		datagram := pkt.Encode()
		s.send(datagram)
		if reliable {
			s.unacked[chunkKey{sequence, uint8(i)}] = &unackedEntry{
				datagram: datagram,
				lastSend: now,
			}
		}
	}
	return nil
}

// Tick drives retransmission and idle-timeout eviction from the single
// shared periodic timer (§9 "Timers"). It returns true if the session was
// closed by this call (idle timeout).
func (s *Session) Tick(now time.Time) (timedOut bool) {
	if s.phase == PhaseClosed {
		return false
	}
	if now.Sub(s.lastRecv) >= IdleTimeout {
		s.teardown()
		s.metrics.SessionTimedOut()
		return true
	}
	for _, entry := range s.unacked {
		if now.Sub(entry.lastSend) >= s.retransmitInterval {
			s.send(entry.datagram)
			entry.lastSend = now
			entry.retryCount++
			s.metrics.ChunkRetransmitted()
		}
	}
	for seq, entry := range s.reassembly {
		if entry.completed && now.Sub(entry.completedAt) >= ReassemblyGC {
			delete(s.reassembly, seq)
		}
	}
	return false
}

// HandleInbound decodes and processes one received datagram (§4.3 "Inbound packet
// handling"). It returns a non-nil payload exactly when a sequence has just
// completed reassembly and should be handed to the codec decode path.
func (s *Session) HandleInbound(data []byte, now time.Time) ([]byte, error) {
	if s.phase == PhaseClosed {
		return nil, ErrSessionClosed
	}
	pkt, err := DecodePacket(data)
	if err != nil {
		return nil, err
	}
	s.lastRecv = now
	s.metrics.PacketReceived()

	if pkt.Flags&FlagEND != 0 {
		s.teardown()
		return nil, nil
	}

	if s.phase != PhaseVerified {
		return s.handleHandshake(pkt, now)
	}
	return s.handleData(pkt, now)
}

func (s *Session) handleHandshake(pkt Packet, now time.Time) ([]byte, error) {
	switch s.Role {
	case RoleServer:
		return s.handleHandshakeServer(pkt)
	default:
		return s.handleHandshakeClient(pkt, now)
	}
}

func (s *Session) handleHandshakeServer(pkt Packet) ([]byte, error) {
	switch s.phase {
	case PhaseInit:
		salt, ok := decodeNonce(pkt.Payload)
		if !ok {
			s.metrics.HandshakeFailure()
			return nil, errors.Wrap(ErrHandshakeFailed, "expected Init")
		}
		s.salt = salt
		s.pepper = randomUint32()
		s.phase = PhaseChallenged
		s.send(controlPayload(encodeNonce(s.pepper)))
		return nil, nil
	case PhaseChallenged:
		seasoning, ok := decodeNonce(pkt.Payload)
		if !ok || seasoning != s.salt^s.pepper {
			s.metrics.HandshakeFailure()
			return nil, nil // drop; do not emit error packets (§4.3)
		}
		s.phase = PhaseVerified
		return nil, nil
	default:
		s.metrics.HandshakeFailure()
		return nil, errors.Wrap(ErrHandshakeFailed, "unexpected phase")
	}
}

func (s *Session) handleHandshakeClient(pkt Packet, now time.Time) ([]byte, error) {
	switch s.phase {
	case PhaseInit:
		pepper, ok := decodeNonce(pkt.Payload)
		if !ok {
			s.metrics.HandshakeFailure()
			return nil, errors.Wrap(ErrHandshakeFailed, "expected Challenge")
		}
		s.pepper = pepper
		s.phase = PhaseChallenged
		s.send(controlPayload(encodeNonce(s.salt ^ s.pepper)))
		return nil, nil
	case PhaseChallenged:
		// The client optimistically treats the arrival of the first
		// post-handshake packet as entering Verified (§4.3 "Client view"),
		// then lets that same packet flow through the data path below.
		s.phase = PhaseVerified
		return s.handleData(pkt, now)
	default:
		s.metrics.HandshakeFailure()
		return nil, errors.Wrap(ErrHandshakeFailed, "unexpected phase")
	}
}

func (s *Session) handleData(pkt Packet, now time.Time) ([]byte, error) {
	if pkt.Flags&FlagACK != 0 {
		delete(s.unacked, chunkKey{pkt.Sequence, pkt.Chunk})
		return nil, nil
	}

	if pkt.Flags&FlagREL != 0 {
		s.send(ackPacket(pkt.Sequence, pkt.Chunk))
		s.metrics.AckSent()
	}

	entry := s.reassembly[pkt.Sequence]
	if entry == nil {
		entry = newReassemblyEntry()
		s.reassembly[pkt.Sequence] = entry
	}
	if entry.completed {
		return nil, nil // duplicate after delivery
	}

	if _, seen := entry.chunks[pkt.Chunk]; !seen {
		entry.chunks[pkt.Chunk] = pkt.Payload
	}
	if pkt.Flags&FlagFIN != 0 {
		entry.finIndex = int(pkt.Chunk)
	}

	if entry.finIndex < 0 {
		return nil, nil
	}
	for i := 0; i <= entry.finIndex; i++ {
		if _, ok := entry.chunks[uint8(i)]; !ok {
			return nil, nil
		}
	}

	var payload []byte
	for i := 0; i <= entry.finIndex; i++ {
		payload = append(payload, entry.chunks[uint8(i)]...)
	}
	entry.completed = true
	entry.completedAt = now
	entry.payload = payload
	entry.chunks = nil
	s.metrics.PayloadDelivered()
	return payload, nil
}

type noopMetrics struct{}

func (noopMetrics) PacketSent()          {}
func (noopMetrics) PacketReceived()      {}
func (noopMetrics) ChunkRetransmitted()  {}
func (noopMetrics) AckSent()             {}
func (noopMetrics) HandshakeFailure()    {}
func (noopMetrics) SessionTimedOut()     {}
func (noopMetrics) PayloadDelivered()    {}
func (noopMetrics) DecodeErrorObserved() {}
