package application

import (
	"context"
	"net/netip"
	"time"

	"duet/domain/identity"
	"duet/domain/pairing"
)

// PairManager owns the single-pairing-slot state machine on the
// coordination server (§8 S1/S2): a pairing code maps to exactly one
// waiting device until claimed or expired.
type PairManager interface {
	// Begin registers the initiating device under a freshly generated code
	// and returns it.
	Begin(ctx context.Context, device identity.PublicKey) (pairing.Code, error)
	// Claim completes a pairing started with Begin, returning the
	// initiator's public key. Fails if the code is unknown or already
	// claimed.
	Claim(ctx context.Context, code pairing.Code, device identity.PublicKey) (identity.PublicKey, error)
}

// RequestManager tracks pending connection requests between already-paired
// peers (§8 S3), evicting stale entries.
type RequestManager interface {
	// Request records that initiator wants to reach target, returning
	// whether a rendezvous should begin now (target has already asked for
	// initiator) or later (target's request is still pending).
	Request(ctx context.Context, initiator, target identity.PublicKey) (ready bool, err error)
	// Clear removes any pending request between the two peers, called once
	// rendezvous begins or the request expires.
	Clear(ctx context.Context, initiator, target identity.PublicKey)
}

// EstablishManager runs the hole-punching rendezvous handshake (§8 S3/S4):
// each peer pings in with its observed public address, and once both sides
// of a pair are present the manager hands each peer the other's address.
type EstablishManager interface {
	// Ping registers addr as the caller's current observed address for the
	// rendezvous with peer, and returns peer's address once peer has also
	// pinged in. ok is false while still waiting.
	Ping(ctx context.Context, self, peer identity.PublicKey, addr netip.AddrPort) (peerAddr netip.AddrPort, ok bool, err error)
}

// CoordinationClient is the peer-side counterpart dialed against the
// coordination server, wrapping PairManager/RequestManager/EstablishManager
// operations as RPCs (§8).
type CoordinationClient interface {
	Register(ctx context.Context, device identity.PublicKey) (pairing.Code, error)
	Claim(ctx context.Context, code pairing.Code, device identity.PublicKey) (identity.PublicKey, error)
	// GetRegisterResponse polls for who, if anyone, has claimed this
	// device's previously-registered pairing code. Returns ErrNoData while
	// still waiting.
	GetRegisterResponse(ctx context.Context) (identity.PublicKey, error)
	// RequestConnection schedules a rendezvous attempt with target at at.
	RequestConnection(ctx context.Context, initiator, target identity.PublicKey, at time.Time) (ready bool, err error)
	// CheckConnection polls for a peer that has requested a rendezvous with
	// this device, and when. ok is false when nobody is asking right now.
	CheckConnection(ctx context.Context) (initiator identity.PublicKey, at time.Time, ok bool, err error)
	Ping(ctx context.Context, self, peer identity.PublicKey, addr netip.AddrPort) (peerAddr netip.AddrPort, ok bool, err error)
	Close() error
}

// RetryBudget bounds the hole-punching ping loop (§4.8), distinguishing a
// transient miss from giving up.
type RetryBudget interface {
	// Next blocks until the next retry is due or the budget is exhausted,
	// in which case ok is false.
	Next(ctx context.Context) (ok bool)
	Interval() time.Duration
}
