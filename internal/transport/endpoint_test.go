package transport

import (
	"context"
	"net"
	"testing"
	"time"
)

func mustLoopbackEndpoint(t *testing.T) *Endpoint {
	t.Helper()
	e, err := NewEndpoint(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}, nil)
	if err != nil {
		t.Fatalf("NewEndpoint: %v", err)
	}
	return e
}

func TestEndpointConnectFlowAndMessage(t *testing.T) {
	server := mustLoopbackEndpoint(t)
	defer server.Close()
	client := mustLoopbackEndpoint(t)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientDeliveries := make(chan Delivery, 8)

	go server.Run(ctx, nil)
	go client.Run(ctx, func(d Delivery) { clientDeliveries <- d })

	client.Dial(server.LocalAddr())

	// Retry SendMessage until the server has a session for the client's
	// address (created once the Init datagram is dispatched inside Run's
	// goroutine). Polling this way, rather than reading the table
	// directly, never races with Run's single-writer access to it. The
	// client treats the arrival of this first post-handshake packet as
	// completing its own handshake (§4.3 "Client view"), so there is no
	// need to also wait for Verified before sending.
	deadline := time.Now().Add(2 * time.Second)
	var sendErr error
	for time.Now().Before(deadline) {
		sendErr = server.SendMessage(client.LocalAddr(), []byte("connect-payload"), true)
		if sendErr == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if sendErr != nil {
		t.Fatalf("server SendMessage never succeeded: %v", sendErr)
	}

	select {
	case d := <-clientDeliveries:
		if string(d.Payload) != "connect-payload" {
			t.Fatalf("client delivery = %q, want %q", d.Payload, "connect-payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("client never received server's payload")
	}
}

func TestEndpointSendMessageRejectsUnknownSession(t *testing.T) {
	e := mustLoopbackEndpoint(t)
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx, nil)

	unknown := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}
	if err := e.SendMessage(unknown, []byte("x"), false); err == nil {
		t.Fatalf("SendMessage to unknown session succeeded, want error")
	}
}
