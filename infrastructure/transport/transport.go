// Package transport implements application.Connector/Listener/Connection
// over QUIC, with every connection mutually authenticated by the identity-
// bound certificates in infrastructure/cryptography/certs (§4.1).
package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/quic-go/quic-go"

	"duet/application"
	"duet/domain/errkind"
	"duet/domain/identity"
	"duet/infrastructure/cryptography/certs"
)

// quicConfig keeps keep-alives on so a connection survives the idle gaps
// between sync sessions and coordination pings alike.
var quicConfig = &quic.Config{
	KeepAlivePeriod: 15 * time.Second,
	MaxIdleTimeout:  0,
}

// conn adapts a *quic.Conn to application.Connection.
type conn struct {
	inner   *quic.Conn
	peerKey identity.PublicKey
}

var _ application.Connection = (*conn)(nil)

func newConn(q *quic.Conn) (*conn, error) {
	state := q.ConnectionState().TLS
	key, err := certs.PeerKey(state)
	if err != nil {
		return nil, err
	}
	return &conn{inner: q, peerKey: key}, nil
}

func (c *conn) OpenStream(ctx context.Context) (application.Stream, error) {
	s, err := c.inner.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errkind.ErrConnection, err)
	}
	return s, nil
}

func (c *conn) AcceptStream(ctx context.Context) (application.Stream, error) {
	s, err := c.inner.AcceptStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errkind.ErrConnection, err)
	}
	return s, nil
}

func (c *conn) PeerKey() identity.PublicKey { return c.peerKey }
func (c *conn) RemoteAddr() net.Addr        { return c.inner.RemoteAddr() }
func (c *conn) Close() error                { return c.inner.CloseWithError(0, "") }

// Connector dials out to a peer's coordination or sync listener, presenting
// the local identity's self-signed certificate.
type Connector struct {
	publicAddress net.IP
	identity      identity.KeyPair
}

var _ application.Connector = (*Connector)(nil)

// NewConnector builds a Connector that presents a certificate bound to
// publicAddress and signed by identity.
func NewConnector(publicAddress net.IP, kp identity.KeyPair) *Connector {
	return &Connector{publicAddress: publicAddress, identity: kp}
}

func (c *Connector) Connect(ctx context.Context, addr string, expectedPeer *identity.PublicKey) (application.Connection, error) {
	sendCfg, _, err := certs.GenConfigs(c.publicAddress, c.identity, expectedPeer)
	if err != nil {
		return nil, err
	}
	q, err := quic.DialAddr(ctx, addr, sendCfg, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errkind.ErrConnection, err)
	}
	return newConn(q)
}

// Listener accepts inbound QUIC connections, verifying each against the
// currently expected peer key (nil meaning "accept any well-formed
// self-signed peer", per §4.8's listener-then-pin-peer sequencing).
type Listener struct {
	inner *quic.Listener
	peer  *certs.DynamicPeer
}

var _ application.Listener = (*Listener)(nil)

// Listen opens a QUIC listener on addr, presenting a certificate bound to
// publicAddress and signed by identity. Pass expectedPeer to restrict the
// listener to a single known peer from the start, or nil to accept any
// well-formed self-signed peer; SetExpectedPeer repins it later without
// rebuilding the listener.
func Listen(addr string, publicAddress net.IP, kp identity.KeyPair, expectedPeer *identity.PublicKey) (*Listener, error) {
	peer := certs.NewDynamicPeer(expectedPeer)
	_, recvCfg, err := certs.GenDynamicConfigs(publicAddress, kp, peer)
	if err != nil {
		return nil, err
	}
	l, err := quic.ListenAddr(addr, recvCfg, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errkind.ErrConnection, err)
	}
	return &Listener{inner: l, peer: peer}, nil
}

func (l *Listener) Accept(ctx context.Context) (application.Connection, error) {
	q, err := l.inner.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errkind.ErrConnection, err)
	}
	return newConn(q)
}

func (l *Listener) LocalAddr() net.Addr { return l.inner.Addr() }

// SetExpectedPeer repins the verifier backing this listener's TLS config,
// narrowing (or widening, with nil) acceptance without rebuilding it.
func (l *Listener) SetExpectedPeer(expectedPeer *identity.PublicKey) {
	l.peer.Set(expectedPeer)
}

func (l *Listener) Close() error { return l.inner.Close() }
