package session

import (
	"net"
	"time"
)

// Table is the session table keyed by remote address (§9 "Session table").
// It owns no socket; callers drive inbound dispatch and the shared tick.
type Table struct {
	sender             Sender
	metrics            Metrics
	byAddr             map[string]*Session
	retransmitInterval time.Duration
}

// NewTable constructs an empty session table. sender is the shared Socket
// I/O adapter every session writes through; metrics may be nil.
func NewTable(sender Sender, metrics Metrics) *Table {
	return &Table{
		sender:             sender,
		metrics:            metrics,
		byAddr:             make(map[string]*Session),
		retransmitInterval: DefaultRetransmitInterval,
	}
}

// SetRetransmitInterval applies d to every session already in the table and
// to every session created afterward by GetOrCreate.
func (t *Table) SetRetransmitInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	t.retransmitInterval = d
	for _, s := range t.byAddr {
		s.SetRetransmitInterval(d)
	}
}

// Get returns the existing session for addr, if any.
func (t *Table) Get(addr *net.UDPAddr) (*Session, bool) {
	s, ok := t.byAddr[addr.String()]
	return s, ok
}

// GetOrCreate returns the existing session for addr, or creates a new
// server-role session pending Init. It does not see the datagram, so a
// session is created for the first datagram from any new address, whether
// or not that datagram is an Init.
func (t *Table) GetOrCreate(addr *net.UDPAddr, now time.Time) *Session {
	key := addr.String()
	if s, ok := t.byAddr[key]; ok {
		return s
	}
	s := NewServerSession(addr, t.sender, t.metrics, now)
	s.SetRetransmitInterval(t.retransmitInterval)
	t.byAddr[key] = s
	return s
}

// Put installs a session under addr, overwriting any existing entry. Used
// by the client side of a Dial, where the session is constructed (and its
// Init already sent) before it has a place in the table.
func (t *Table) Put(addr *net.UDPAddr, s *Session) {
	t.byAddr[addr.String()] = s
}

// Remove drops addr's session from the table without sending anything.
func (t *Table) Remove(addr *net.UDPAddr) {
	delete(t.byAddr, addr.String())
}

// Sweep drives every session's Tick and evicts every session that is now
// closed (by this tick's idle timeout, or earlier by an inbound END or an
// explicit Close), sharing one periodic timer
// across retransmission and liveness checks (§9 "Timers").
func (t *Table) Sweep(now time.Time) {
	for key, s := range t.byAddr {
		s.Tick(now)
		if s.Closed() {
			delete(t.byAddr, key)
		}
	}
}

// Len reports the number of live sessions, for metrics reporting.
func (t *Table) Len() int {
	return len(t.byAddr)
}
