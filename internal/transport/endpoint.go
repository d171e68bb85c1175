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

// Package transport binds the single UDP endpoint a process uses and
// demultiplexes datagrams to sessions keyed by remote address (§4.4). It
// performs no interpretation of header flags; that is the session layer's
// job.
package transport

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/snowfight-game/core/internal/session"
)

// DefaultTick is the shared retransmit/idle-timeout poll interval (§4.3
// "no slower than ~100ms, no faster than ~10ms"; §9 "Timers").
const DefaultTick = 100 * time.Millisecond

// recvBufSize is sized for the largest legal datagram (§6: max 508 bytes)
// plus slack; oversized reads are rejected by session.DecodePacket as
// MalformedPacket rather than truncated silently.
const recvBufSize = 2048

// Delivery is a fully reassembled application payload ready for the Rabbit
// decode path, along with the peer it arrived from.
type Delivery struct {
	Addr    *net.UDPAddr
	Payload []byte
}

type outboundRequest struct {
	addr      *net.UDPAddr
	payload   []byte
	reliable  bool
	closeOnly bool
	result    chan error
}

type dialRequest struct {
	addr   *net.UDPAddr
	result chan *session.Session
}

// Endpoint owns one *net.UDPConn and the session.Table keyed off it. All
// session-state mutation happens on the single goroutine running Run,
// giving the single-writer discipline §5 requires without locks.
type Endpoint struct {
	conn     *net.UDPConn
	table    *session.Table
	metrics  session.Metrics
	tick     time.Duration
	compress bool

	outbound chan outboundRequest
	dial     chan dialRequest
}

// NewEndpoint binds a UDP socket at laddr. metrics may be nil. Outbound
// payloads are snappy-compressed by default; call SetCompression(false) to
// match a peer configured with NoComp (SPEC_FULL.md §C "Compression
// component").
func NewEndpoint(laddr *net.UDPAddr, metrics session.Metrics) (*Endpoint, error) {
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, errors.Wrap(err, "transport.NewEndpoint")
	}
	e := &Endpoint{
		conn:     conn,
		metrics:  metrics,
		tick:     DefaultTick,
		compress: true,
		outbound: make(chan outboundRequest),
		dial:     make(chan dialRequest),
	}
	e.table = session.NewTable(e, metrics)
	return e, nil
}

// SetCompression enables or disables the whole-payload snappy transform
// applied to outbound messages and expected on inbound ones.
func (e *Endpoint) SetCompression(on bool) {
	e.compress = on
}

// SetRetransmitInterval overrides the 100ms default shared by the poll tick
// (§9 "Timers") and every session's retransmit gap (§4.3 "Retransmission").
// Call before Run starts.
func (e *Endpoint) SetRetransmitInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	e.tick = d
	e.table.SetRetransmitInterval(d)
}

// LocalAddr reports the bound address.
func (e *Endpoint) LocalAddr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// SendTo implements session.Sender by writing directly to the shared
// socket. The socket is safe for concurrent writes in the Go runtime, but
// Run is still the only goroutine that calls it, preserving §5's
// single-writer discipline for session state (the write itself carries no
// session-state mutation).
func (e *Endpoint) SendTo(addr *net.UDPAddr, data []byte) error {
	_, err := e.conn.WriteToUDP(data, addr)
	if err != nil {
		return errors.Wrap(err, "transport: SendTo")
	}
	return nil
}

// Dial creates a client-role session to addr and registers it in the
// table, blocking until Run's goroutine has done so. The Init packet is
// sent synchronously as part of session construction. Dial must be called
// after Run has started.
func (e *Endpoint) Dial(addr *net.UDPAddr) *session.Session {
	req := dialRequest{addr: addr, result: make(chan *session.Session, 1)}
	e.dial <- req
	return <-req.result
}

// SendMessage hands an application payload to the session already
// established with addr for chunking and transmission (§4.3 "Outbound
// message path"). It fails if no session exists for addr.
func (e *Endpoint) SendMessage(addr *net.UDPAddr, payload []byte, reliable bool) error {
	req := outboundRequest{addr: addr, payload: payload, reliable: reliable, result: make(chan error, 1)}
	e.outbound <- req
	return <-req.result
}

// CloseSession closes addr's session (§5 "application-requested close"),
// routed through the same goroutine that owns the table so callers never
// touch session state directly.
func (e *Endpoint) CloseSession(addr *net.UDPAddr) error {
	req := outboundRequest{addr: addr, result: make(chan error, 1), closeOnly: true}
	e.outbound <- req
	return <-req.result
}

// Run drives the cooperative event loop (§5): a dedicated reader goroutine
// feeds datagrams in, while this goroutine is the single point of session
// mutation, selecting between inbound datagrams, outbound application
// sends, and the shared retransmit/timeout tick. It blocks until ctx is
// canceled or the socket read loop fails fatally.
func (e *Endpoint) Run(ctx context.Context, onDelivery func(Delivery)) error {
	type inbound struct {
		addr *net.UDPAddr
		data []byte
		err  error
	}
	recvCh := make(chan inbound)

	readerCtx, cancelReader := context.WithCancel(ctx)
	defer cancelReader()
	go func() {
		buf := make([]byte, recvBufSize)
		for {
			n, addr, err := e.conn.ReadFromUDP(buf)
			if err != nil {
				select {
				case recvCh <- inbound{err: err}:
				case <-readerCtx.Done():
				}
				return
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case recvCh <- inbound{addr: addr, data: data}:
			case <-readerCtx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-recvCh:
			if in.err != nil {
				return errors.Wrap(in.err, "transport: read failed")
			}
			e.dispatch(in.addr, in.data, time.Now(), onDelivery)
		case now := <-ticker.C:
			e.table.Sweep(now)
		case req := <-e.outbound:
			sess, ok := e.table.Get(req.addr)
			if !ok {
				req.result <- errors.Errorf("transport: no session for %s", req.addr)
				continue
			}
			if req.closeOnly {
				sess.Close()
				e.table.Remove(req.addr)
				req.result <- nil
				continue
			}
			payload := req.payload
			if e.compress {
				payload = compressPayload(payload)
			}
			req.result <- sess.Send(payload, req.reliable, time.Now())
		case req := <-e.dial:
			sess := session.NewClientSession(req.addr, e, e.metrics, time.Now())
			sess.SetRetransmitInterval(e.tick)
			e.table.Put(req.addr, sess)
			req.result <- sess
		}
	}
}

func (e *Endpoint) dispatch(addr *net.UDPAddr, data []byte, now time.Time, onDelivery func(Delivery)) {
	sess := e.table.GetOrCreate(addr, now)
	payload, err := sess.HandleInbound(data, now)
	if err != nil {
		// MalformedPacket and HandshakeFailed are both drop-silently kinds
		// (§7). The only other error is ErrSessionClosed, for a session
		// closed by an END that the next Sweep has not yet evicted; that
		// datagram is dropped too.
		return
	}
	if payload == nil {
		return
	}
	if e.compress {
		decompressed, err := decompressPayload(payload)
		if err != nil {
			// DecodeError: codec-adjacent failure on an otherwise complete
			// payload. Report nothing further upstream; session stays open.
			if e.metrics != nil {
				e.metrics.DecodeErrorObserved()
			}
			return
		}
		payload = decompressed
	}
	if onDelivery != nil {
		onDelivery(Delivery{Addr: addr, Payload: payload})
	}
}

// Close releases the underlying socket.
func (e *Endpoint) Close() error {
	return e.conn.Close()
}

// Table exposes the session table for diagnostics (e.g. active session
// count for internal/metrics).
func (e *Endpoint) Table() *session.Table {
	return e.table
}
