package rendezvous

import (
	"context"
	"net"
	"testing"
	"time"

	"duet/application"
	"duet/domain/identity"
	"duet/infrastructure/coordination"
	"duet/infrastructure/logging"
)

// fakeConn wires a client-side application.Connection to a server-side one
// over in-memory net.Pipe streams, so the dispatcher and client can be
// exercised without a real QUIC transport.
type fakeConn struct {
	peerKey  identity.PublicKey
	remote   net.Addr
	incoming chan net.Conn
	outgoing chan net.Conn
}

func newFakeConnPair(clientAddr, serverAddr net.Addr, serverKey identity.PublicKey) (client, server *fakeConn) {
	toServer := make(chan net.Conn, 16)
	toClient := make(chan net.Conn, 16)
	client = &fakeConn{peerKey: serverKey, remote: serverAddr, incoming: toClient, outgoing: toServer}
	server = &fakeConn{remote: clientAddr, incoming: toServer, outgoing: toClient}
	return client, server
}

func (f *fakeConn) OpenStream(ctx context.Context) (application.Stream, error) {
	a, b := net.Pipe()
	f.outgoing <- b
	return a, nil
}

func (f *fakeConn) AcceptStream(ctx context.Context) (application.Stream, error) {
	select {
	case conn := <-f.incoming:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeConn) PeerKey() identity.PublicKey { return f.peerKey }
func (f *fakeConn) RemoteAddr() net.Addr        { return f.remote }
func (f *fakeConn) Close() error                { return nil }

type stubAddr string

func (s stubAddr) Network() string { return "udp" }
func (s stubAddr) String() string  { return string(s) }

func TestPairThenClaimOverWire(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pairMgr := coordination.NewPairManager(ctx)
	reqMgr := coordination.NewRequestManager(ctx)
	estMgr := coordination.NewEstablishManager(ctx)
	dispatcher := NewDispatcher(pairMgr, reqMgr, estMgr, logging.NewNop())

	a, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate: %v", err)
	}
	b, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate: %v", err)
	}

	aClient, aServerSide := newFakeConnPair(stubAddr("10.0.0.1:1"), stubAddr("server:1117"), identity.PublicKey{})
	aServerSide.peerKey = a.Public
	go dispatcher.Serve(ctx, aServerSide)
	clientA := NewClient(aClient)

	code, err := clientA.Register(ctx, a.Public)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	bClient, bServerSide := newFakeConnPair(stubAddr("10.0.0.2:2"), stubAddr("server:1117"), identity.PublicKey{})
	bServerSide.peerKey = b.Public
	go dispatcher.Serve(ctx, bServerSide)
	clientB := NewClient(bClient)

	got, err := clientB.Claim(ctx, code, b.Public)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if !got.Equal(a.Public) {
		t.Fatalf("expected to recover A's public key")
	}

	if _, err := clientB.Claim(ctx, code, b.Public); err == nil {
		t.Fatalf("expected second claim of the same code to fail")
	}

	responder, err := clientA.GetRegisterResponse(ctx)
	if err != nil {
		t.Fatalf("GetRegisterResponse: %v", err)
	}
	if !responder.Equal(b.Public) {
		t.Fatalf("expected to learn B claimed the code")
	}
}

func TestRetryBudgetExhaustsAfterConfiguredAttempts(t *testing.T) {
	budget := NewFixedRetryBudget(3, time.Millisecond)
	ctx := context.Background()

	count := 0
	for budget.Next(ctx) {
		count++
	}
	if count != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", count)
	}
}

func TestRetryBudgetStopsOnCancelledContext(t *testing.T) {
	budget := NewFixedRetryBudget(5, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	if !budget.Next(ctx) {
		t.Fatalf("expected first attempt to succeed immediately")
	}
	cancel()
	if budget.Next(ctx) {
		t.Fatalf("expected Next to stop once context is cancelled")
	}
}
