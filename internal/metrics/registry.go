// Package metrics exposes the server's counters and gauges to Prometheus,
// repurposing the teacher's secondary-diagnostics-HTTP-server precedent
// (pprof in the teacher's client) for scraping instead.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry implements session.Metrics and exposes every counter/gauge
// through a dedicated prometheus.Registry (not the global default, so a
// test can construct one without colliding with another test's metrics).
type Registry struct {
	reg *prometheus.Registry

	activeSessions      prometheus.Gauge
	packetsSent         prometheus.Counter
	packetsReceived     prometheus.Counter
	chunksRetransmitted prometheus.Counter
	acksSent            prometheus.Counter
	handshakeFailures   prometheus.Counter
	sessionTimeouts     prometheus.Counter
	payloadsDelivered   prometheus.Counter
	decodeErrors        prometheus.Counter
}

// New constructs a Registry with all metrics registered under the
// "snowfight" namespace.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "snowfight", Name: "active_sessions",
			Help: "Number of sessions currently tracked by the session table.",
		}),
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowfight", Name: "packets_sent_total",
			Help: "Datagrams written to the UDP socket.",
		}),
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowfight", Name: "packets_received_total",
			Help: "Datagrams read from the UDP socket.",
		}),
		chunksRetransmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowfight", Name: "chunks_retransmitted_total",
			Help: "Reliable chunks resent by the retransmit tick.",
		}),
		acksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowfight", Name: "acks_sent_total",
			Help: "ACK echoes sent in response to REL chunks.",
		}),
		handshakeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowfight", Name: "handshake_failures_total",
			Help: "Handshake packets rejected (mismatch or out-of-phase).",
		}),
		sessionTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowfight", Name: "session_timeouts_total",
			Help: "Sessions closed for 15s idle.",
		}),
		payloadsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowfight", Name: "payloads_delivered_total",
			Help: "Reassembled payloads handed to the codec decode path.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snowfight", Name: "decode_errors_total",
			Help: "Codec decode failures on a completed payload.",
		}),
	}
	reg.MustRegister(
		r.activeSessions, r.packetsSent, r.packetsReceived, r.chunksRetransmitted,
		r.acksSent, r.handshakeFailures, r.sessionTimeouts, r.payloadsDelivered,
		r.decodeErrors,
	)
	return r
}

// Handler serves the registered metrics in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// SetActiveSessions reports the current size of a session.Table; the
// session layer has no notion of "total sessions", so this is driven
// externally (cmd/snowfightd reports Table.Len once a second).
func (r *Registry) SetActiveSessions(n int) { r.activeSessions.Set(float64(n)) }

func (r *Registry) PacketSent()          { r.packetsSent.Inc() }
func (r *Registry) PacketReceived()      { r.packetsReceived.Inc() }
func (r *Registry) ChunkRetransmitted()  { r.chunksRetransmitted.Inc() }
func (r *Registry) AckSent()             { r.acksSent.Inc() }
func (r *Registry) HandshakeFailure()    { r.handshakeFailures.Inc() }
func (r *Registry) SessionTimedOut()     { r.sessionTimeouts.Inc() }
func (r *Registry) PayloadDelivered()    { r.payloadsDelivered.Inc() }
func (r *Registry) DecodeErrorObserved() { r.decodeErrors.Inc() }
