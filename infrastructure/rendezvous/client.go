package rendezvous

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"duet/application"
	"duet/domain/errkind"
	"duet/domain/identity"
	"duet/domain/pairing"
	"duet/infrastructure/wire"
)

// Client is the peer-side counterpart dialed against the coordination
// server, turning each application.CoordinationClient call into one stream
// carrying exactly one request and its response (§4.2).
type Client struct {
	conn application.Connection
}

var _ application.CoordinationClient = (*Client)(nil)

// NewClient wraps an already-established connection to the coordination
// server.
func NewClient(conn application.Connection) *Client {
	return &Client{conn: conn}
}

func (c *Client) roundTrip(ctx context.Context, tag wire.Tag, req any) (wire.Envelope, error) {
	stream, err := c.conn.OpenStream(ctx)
	if err != nil {
		return wire.Envelope{}, fmt.Errorf("%w: %v", errkind.ErrConnection, err)
	}
	defer stream.Close()

	if err := wire.WriteMessage(stream, tag, req); err != nil {
		return wire.Envelope{}, err
	}
	return wire.ReadMessage(stream)
}

// Register asks the server to mint a pairing code for device.
func (c *Client) Register(ctx context.Context, device identity.PublicKey) (pairing.Code, error) {
	env, err := c.roundTrip(ctx, wire.TagRegister, nil)
	if err != nil {
		return pairing.Code{}, err
	}
	if err := checkGeneric(env); err != nil {
		return pairing.Code{}, err
	}
	var body registerResponse
	if err := env.Decode(&body); err != nil {
		return pairing.Code{}, err
	}
	return pairing.Parse(body.Code)
}

// Claim consumes code, returning the peer who registered it.
func (c *Client) Claim(ctx context.Context, code pairing.Code, device identity.PublicKey) (identity.PublicKey, error) {
	env, err := c.roundTrip(ctx, wire.TagGetKey, getKeyRequest{Code: code.String()})
	if err != nil {
		return identity.PublicKey{}, err
	}
	if env.Tag == wire.TagNoData {
		return identity.PublicKey{}, errkind.ErrNoData
	}
	if err := checkGeneric(env); err != nil {
		return identity.PublicKey{}, err
	}
	var body getKeyResponse
	if err := env.Decode(&body); err != nil {
		return identity.PublicKey{}, err
	}
	return keyFromWire(body.Key)
}

// GetRegisterResponse learns who claimed this device's pairing code.
func (c *Client) GetRegisterResponse(ctx context.Context) (identity.PublicKey, error) {
	env, err := c.roundTrip(ctx, wire.TagGetRegisterResponse, nil)
	if err != nil {
		return identity.PublicKey{}, err
	}
	if env.Tag == wire.TagNoData {
		return identity.PublicKey{}, errkind.ErrNoData
	}
	if err := checkGeneric(env); err != nil {
		return identity.PublicKey{}, err
	}
	var body getRegisterResponseResponse
	if err := env.Decode(&body); err != nil {
		return identity.PublicKey{}, err
	}
	return keyFromWire(body.Key)
}

// RequestConnection schedules a rendezvous attempt with target at at.
func (c *Client) RequestConnection(ctx context.Context, initiator, target identity.PublicKey, at time.Time) (bool, error) {
	env, err := c.roundTrip(ctx, wire.TagRequestConnection, requestConnectionRequest{Target: keyToWire(target), Time: at.UnixNano()})
	if err != nil {
		return false, err
	}
	if err := checkGeneric(env); err != nil {
		return false, err
	}
	return true, nil
}

// CheckConnection asks the server who, if anyone, wants to connect to this
// device right now, and when the rendezvous is scheduled.
func (c *Client) CheckConnection(ctx context.Context) (identity.PublicKey, time.Time, bool, error) {
	env, err := c.roundTrip(ctx, wire.TagCheckConnection, nil)
	if err != nil {
		return identity.PublicKey{}, time.Time{}, false, err
	}
	if env.Tag == wire.TagNoData {
		return identity.PublicKey{}, time.Time{}, false, nil
	}
	if err := checkGeneric(env); err != nil {
		return identity.PublicKey{}, time.Time{}, false, err
	}
	var body checkConnectionResponse
	if err := env.Decode(&body); err != nil {
		return identity.PublicKey{}, time.Time{}, false, err
	}
	initiator, err := keyFromWire(body.Initiator)
	return initiator, timeFromWire(body.Time), true, err
}

// Ping registers self's address and attempts to learn peer's.
func (c *Client) Ping(ctx context.Context, self, peer identity.PublicKey, addr netip.AddrPort) (netip.AddrPort, bool, error) {
	env, err := c.roundTrip(ctx, wire.TagPing, pingRequest{Target: keyToWire(peer)})
	if err != nil {
		return netip.AddrPort{}, false, err
	}
	if env.Tag == wire.TagNoData {
		return netip.AddrPort{}, false, nil
	}
	if err := checkGeneric(env); err != nil {
		return netip.AddrPort{}, false, err
	}
	var body pingResponse
	if err := env.Decode(&body); err != nil {
		return netip.AddrPort{}, false, err
	}
	peerAddr, err := addrFromWire(body.Addr)
	return peerAddr, true, err
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func checkGeneric(env wire.Envelope) error {
	if env.Tag != wire.TagGeneric {
		return nil
	}
	var body genericError
	if err := env.Decode(&body); err != nil {
		return errkind.ErrServerGeneric
	}
	return fmt.Errorf("%w: %s", errkind.ErrServerGeneric, body.Message)
}
