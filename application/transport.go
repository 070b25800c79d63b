package application

import (
	"context"
	"io"
	"net"

	"duet/domain/identity"
)

// Stream is a single bidirectional framed request/response exchange opened
// on a Connection. One stream per request (§4.2/§4.7).
type Stream interface {
	io.ReadWriteCloser
}

// Connection is an established, mutually-authenticated transport session
// with one peer, capable of opening or accepting streams.
type Connection interface {
	OpenStream(ctx context.Context) (Stream, error)
	AcceptStream(ctx context.Context) (Stream, error)
	// PeerKey returns the public key recovered from the peer's verified
	// certificate (§4.1).
	PeerKey() identity.PublicKey
	RemoteAddr() net.Addr
	Close() error
}

// Connector dials out to a remote address, presenting the local identity
// and (optionally) pinning the expected peer key.
type Connector interface {
	Connect(ctx context.Context, addr string, expectedPeer *identity.PublicKey) (Connection, error)
}

// Listener accepts inbound, mutually-authenticated connections.
type Listener interface {
	Accept(ctx context.Context) (Connection, error)
	LocalAddr() net.Addr
	// SetExpectedPeer reconfigures the listener's verifier, swapping from
	// "accept any well-formed self-signed peer" (expectedPeer == nil) to
	// "accept exactly this peer" — used mid-rendezvous per §4.8 step 5.
	SetExpectedPeer(expectedPeer *identity.PublicKey)
	Close() error
}

// PublicAddressDiscoverer learns the local process's public socket address
// via an external STUN probe, used once at startup (§1, out of core scope).
type PublicAddressDiscoverer interface {
	Discover(ctx context.Context) (net.IP, error)
}
