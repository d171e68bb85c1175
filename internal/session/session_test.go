package session

import (
	"net"
	"testing"
	"time"
)

type fakeSender struct {
	sent []Packet
}

func (f *fakeSender) SendTo(addr *net.UDPAddr, data []byte) error {
	pkt, err := DecodePacket(data)
	if err != nil {
		return err
	}
	f.sent = append(f.sent, pkt)
	return nil
}

func (f *fakeSender) countWithFlag(flag uint8) int {
	n := 0
	for _, p := range f.sent {
		if p.Flags&flag != 0 {
			n++
		}
	}
	return n
}

func (f *fakeSender) last() Packet {
	return f.sent[len(f.sent)-1]
}

func testAddr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
}

func newVerifiedSession(role Role, sender Sender, now time.Time) *Session {
	s := newSession(testAddr(9000), role, sender, nil, now)
	s.phase = PhaseVerified
	return s
}

func TestHandshakeAcceptsMatchingSeasoningAndRejectsMismatch(t *testing.T) {
	now := time.Now()
	sender := &fakeSender{}
	server := NewServerSession(testAddr(1), sender, nil, now)

	initPkt := Packet{Payload: encodeNonce(0xA5A5A5A5)}.Encode()
	if _, err := server.HandleInbound(initPkt, now); err != nil {
		t.Fatalf("Init: unexpected error: %v", err)
	}
	if server.phase != PhaseChallenged {
		t.Fatalf("phase after Init = %v, want Challenged", server.phase)
	}

	// Pin the server-chosen pepper to the spec's worked example so the
	// expected seasoning (0xFFFFFFFF) is reproducible.
	server.pepper = 0x5A5A5A5A

	wrong := Packet{Payload: encodeNonce(0x12345678)}.Encode()
	if _, err := server.HandleInbound(wrong, now); err != nil {
		t.Fatalf("wrong ChallengeResponse: unexpected error: %v", err)
	}
	if server.phase != PhaseChallenged {
		t.Fatalf("phase after wrong seasoning = %v, want still Challenged", server.phase)
	}

	correct := Packet{Payload: encodeNonce(0xFFFFFFFF)}.Encode()
	if _, err := server.HandleInbound(correct, now); err != nil {
		t.Fatalf("correct ChallengeResponse: unexpected error: %v", err)
	}
	if server.phase != PhaseVerified {
		t.Fatalf("phase after correct seasoning = %v, want Verified", server.phase)
	}
}

func TestClientServerHandshakeEndToEnd(t *testing.T) {
	now := time.Now()

	clientSender := &fakeSender{}
	client := NewClientSession(testAddr(1), clientSender, nil, now) // captures outbound Init
	if client.phase != PhaseInit {
		t.Fatalf("client phase = %v, want Init (awaiting Challenge)", client.phase)
	}
	initDatagram := clientSender.last().Encode()

	serverSender := &fakeSender{}
	server := NewServerSession(testAddr(2), serverSender, nil, now)
	if _, err := server.HandleInbound(initDatagram, now); err != nil {
		t.Fatalf("server HandleInbound(Init): %v", err)
	}
	if server.phase != PhaseChallenged {
		t.Fatalf("server phase = %v, want Challenged", server.phase)
	}
	challengeDatagram := serverSender.last().Encode()

	if _, err := client.HandleInbound(challengeDatagram, now); err != nil {
		t.Fatalf("client HandleInbound(Challenge): %v", err)
	}
	if client.phase != PhaseChallenged {
		t.Fatalf("client phase = %v, want Challenged", client.phase)
	}
	responseDatagram := clientSender.last().Encode()

	if _, err := server.HandleInbound(responseDatagram, now); err != nil {
		t.Fatalf("server HandleInbound(ChallengeResponse): %v", err)
	}
	if server.phase != PhaseVerified {
		t.Fatalf("server phase = %v, want Verified", server.phase)
	}

	// Client enters Verified only once the first post-handshake packet
	// arrives; simulate the server's reliable Connect message.
	if err := server.Send([]byte("connect-payload"), true, now); err != nil {
		t.Fatalf("server Send: %v", err)
	}
	connectDatagram := serverSender.last().Encode()

	payload, err := client.HandleInbound(connectDatagram, now)
	if err != nil {
		t.Fatalf("client HandleInbound(first data packet): %v", err)
	}
	if client.phase != PhaseVerified {
		t.Fatalf("client phase = %v, want Verified", client.phase)
	}
	if string(payload) != "connect-payload" {
		t.Fatalf("payload = %q, want %q", payload, "connect-payload")
	}
}

func TestReliableChunkingAndRetransmit(t *testing.T) {
	now := time.Now()
	senderSide := &fakeSender{}
	sender := newVerifiedSession(RoleServer, senderSide, now)

	payload := make([]byte, 800) // > 504, splits into 2 chunks
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := sender.Send(payload, true, now); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(senderSide.sent) != 2 {
		t.Fatalf("datagrams sent = %d, want 2", len(senderSide.sent))
	}
	chunk0 := senderSide.sent[0].Encode()
	chunk1 := senderSide.sent[1].Encode()

	receiverSide := &fakeSender{}
	receiver := newVerifiedSession(RoleServer, receiverSide, now)

	// Simulate the first datagram (chunk 0) being dropped: only chunk 1
	// arrives at the receiver.
	payloadOut, err := receiver.HandleInbound(chunk1, now)
	if err != nil {
		t.Fatalf("HandleInbound chunk1: %v", err)
	}
	if payloadOut != nil {
		t.Fatalf("reassembly completed before chunk 0 arrived")
	}

	// The receiver's ACK for chunk 1 reaches the sender, leaving only
	// chunk 0 unacked.
	if _, err := sender.HandleInbound(receiverSide.last().Encode(), now); err != nil {
		t.Fatalf("sender HandleInbound(ACK chunk1): %v", err)
	}

	// Sender's next retransmit tick resends unacked chunk 0.
	later := now.Add(DefaultRetransmitInterval)
	senderSide.sent = nil
	sender.Tick(later)
	if len(senderSide.sent) != 1 {
		t.Fatalf("retransmitted datagrams = %d, want 1", len(senderSide.sent))
	}
	if senderSide.sent[0].Encode()[1] != 0 {
		t.Fatalf("retransmitted chunk index = %d, want 0", senderSide.sent[0].Chunk)
	}

	payloadOut, err = receiver.HandleInbound(chunk0, later)
	if err != nil {
		t.Fatalf("HandleInbound chunk0: %v", err)
	}
	if string(payloadOut) != string(payload) {
		t.Fatalf("reassembled payload mismatch")
	}

	// Further delivery of either chunk after completion must not redeliver.
	payloadOut, err = receiver.HandleInbound(chunk0, later)
	if err != nil {
		t.Fatalf("duplicate HandleInbound chunk0: %v", err)
	}
	if payloadOut != nil {
		t.Fatalf("duplicate chunk after completion redelivered payload")
	}
}

func TestDuplicateSuppression(t *testing.T) {
	now := time.Now()
	receiverSide := &fakeSender{}
	receiver := newVerifiedSession(RoleServer, receiverSide, now)

	pkt := Packet{
		Header:  Header{Flags: FlagREL | FlagFIN, Chunk: 0, Sequence: 1},
		Payload: []byte("hello"),
	}
	datagram := pkt.Encode()

	deliveries := 0
	for i := 0; i < 3; i++ {
		payload, err := receiver.HandleInbound(datagram, now)
		if err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
		if payload != nil {
			deliveries++
		}
	}
	if deliveries != 1 {
		t.Fatalf("deliveries = %d, want 1", deliveries)
	}
	if got := receiverSide.countWithFlag(FlagACK); got != 3 {
		t.Fatalf("ACKs echoed = %d, want 3", got)
	}
}

func TestIdleTimeout(t *testing.T) {
	now := time.Now()
	sender := &fakeSender{}
	s := newVerifiedSession(RoleServer, sender, now)

	if timedOut := s.Tick(now.Add(IdleTimeout - time.Second)); timedOut {
		t.Fatalf("session timed out early")
	}
	if timedOut := s.Tick(now.Add(IdleTimeout)); !timedOut {
		t.Fatalf("session did not time out at IdleTimeout")
	}
	if !s.Closed() {
		t.Fatalf("session not closed after idle timeout")
	}
	if err := s.Send([]byte("x"), false, now.Add(IdleTimeout)); err != ErrSessionClosed {
		t.Fatalf("Send on closed session error = %v, want ErrSessionClosed", err)
	}
}

func TestMalformedDatagramDropped(t *testing.T) {
	now := time.Now()
	sender := &fakeSender{}
	s := newVerifiedSession(RoleServer, sender, now)
	before := s.lastRecv

	_, err := s.HandleInbound([]byte{0x00, 0x01, 0x02}, now.Add(time.Second))
	if err != ErrMalformedPacket {
		t.Fatalf("error = %v, want ErrMalformedPacket", err)
	}
	if s.lastRecv != before {
		t.Fatalf("lastRecv updated on malformed packet")
	}
	if s.Closed() {
		t.Fatalf("session closed by a malformed packet")
	}
}

func TestPayloadTooLarge(t *testing.T) {
	now := time.Now()
	sender := &fakeSender{}
	s := newVerifiedSession(RoleServer, sender, now)

	huge := make([]byte, (MaxChunks+1)*MaxPayload)
	if err := s.Send(huge, true, now); err == nil {
		t.Fatalf("Send with oversized payload succeeded, want ErrPayloadTooLarge")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	now := time.Now()
	sender := &fakeSender{}
	s := newVerifiedSession(RoleServer, sender, now)

	s.Close()
	if !s.Closed() {
		t.Fatalf("session not closed")
	}
	sentAfterFirstClose := len(sender.sent)
	s.Close() // must not panic or send a second END
	if len(sender.sent) != sentAfterFirstClose {
		t.Fatalf("second Close sent an extra datagram")
	}

	// An END received after local close is dropped silently, not reopened.
	if _, err := s.HandleInbound(controlPacket(FlagEND), now); err != ErrSessionClosed {
		t.Fatalf("HandleInbound after close error = %v, want ErrSessionClosed", err)
	}
}
