package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistryImplementsSessionMetrics(t *testing.T) {
	r := New()
	r.PacketSent()
	r.PacketReceived()
	r.ChunkRetransmitted()
	r.AckSent()
	r.HandshakeFailure()
	r.SessionTimedOut()
	r.PayloadDelivered()
	r.DecodeErrorObserved()
	r.SetActiveSessions(3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"snowfight_active_sessions 3",
		"snowfight_packets_sent_total 1",
		"snowfight_acks_sent_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}
