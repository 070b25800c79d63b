package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"duet/domain/identity"
)

func TestConnectorListenerHandshakeAndStream(t *testing.T) {
	serverKP, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate(server): %v", err)
	}
	clientKP, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate(client): %v", err)
	}

	loopback := net.ParseIP("127.0.0.1")

	listener, err := Listen("127.0.0.1:0", loopback, serverKP, &clientKP.Public)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	acceptDone := make(chan error, 1)
	go func() {
		serverConn, err := listener.Accept(ctx)
		if err != nil {
			acceptDone <- err
			return
		}
		stream, err := serverConn.AcceptStream(ctx)
		if err != nil {
			acceptDone <- err
			return
		}
		buf := make([]byte, len("ping"))
		if _, err := stream.Read(buf); err != nil {
			acceptDone <- err
			return
		}
		if string(buf) != "ping" {
			acceptDone <- err
			return
		}
		if _, err := stream.Write([]byte("pong")); err != nil {
			acceptDone <- err
			return
		}
		acceptDone <- nil
	}()

	connector := NewConnector(loopback, clientKP)
	clientConn, err := connector.Connect(ctx, listener.LocalAddr().String(), &serverKP.Public)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer clientConn.Close()

	if !clientConn.PeerKey().Equal(serverKP.Public) {
		t.Fatalf("client observed wrong peer key")
	}

	stream, err := clientConn.OpenStream(ctx)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if _, err := stream.Write([]byte("ping")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, len("pong"))
	if _, err := stream.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "pong" {
		t.Fatalf("got %q, want %q", buf, "pong")
	}

	if err := <-acceptDone; err != nil {
		t.Fatalf("server side: %v", err)
	}
}

func TestConnectRejectsUnexpectedPeer(t *testing.T) {
	serverKP, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate(server): %v", err)
	}
	clientKP, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate(client): %v", err)
	}
	wrongKP, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate(wrong): %v", err)
	}

	loopback := net.ParseIP("127.0.0.1")

	listener, err := Listen("127.0.0.1:0", loopback, serverKP, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go func() {
		_, _ = listener.Accept(ctx)
	}()

	connector := NewConnector(loopback, clientKP)
	if _, err := connector.Connect(ctx, listener.LocalAddr().String(), &wrongKP.Public); err == nil {
		t.Fatalf("expected Connect to reject a server not matching the pinned key")
	}
}

func TestSetExpectedPeerNarrowsAcceptance(t *testing.T) {
	serverKP, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate(server): %v", err)
	}
	allowedKP, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate(allowed): %v", err)
	}
	otherKP, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate(other): %v", err)
	}

	loopback := net.ParseIP("127.0.0.1")

	listener, err := Listen("127.0.0.1:0", loopback, serverKP, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()
	listener.SetExpectedPeer(&allowedKP.Public)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go func() {
		_, _ = listener.Accept(ctx)
	}()

	connector := NewConnector(loopback, otherKP)
	if _, err := connector.Connect(ctx, listener.LocalAddr().String(), nil); err == nil {
		t.Fatalf("expected connection from a non-pinned peer to be rejected")
	}
}
