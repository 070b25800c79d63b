// Package rendezvous implements the coordination-server wire protocol
// (§4.6/§4.7): request/response payloads carried over infrastructure/wire,
// a server-side dispatcher wired to the three coordination managers, a
// peer-side client, and the hole-punching handshake (§4.8).
package rendezvous

import (
	"net/netip"
	"time"

	"duet/domain/identity"
	"duet/domain/pairing"
)

// registerResponse carries the freshly minted pairing code.
type registerResponse struct {
	Code string `msgpack:"code"`
}

// getKeyRequest names the pairing code being claimed.
type getKeyRequest struct {
	Code string `msgpack:"code"`
}

// getKeyResponse carries the initiator's public key.
type getKeyResponse struct {
	Key [32]byte `msgpack:"key"`
}

// getRegisterResponseResponse carries the responder's public key.
type getRegisterResponseResponse struct {
	Key [32]byte `msgpack:"key"`
}

// requestConnectionRequest schedules a rendezvous attempt.
type requestConnectionRequest struct {
	Target [32]byte `msgpack:"target"`
	Time   int64    `msgpack:"time"` // unix nanoseconds
}

// checkConnectionResponse carries who wants to connect, and when.
type checkConnectionResponse struct {
	Initiator [32]byte `msgpack:"initiator"`
	Time      int64    `msgpack:"time"`
}

// pingRequest names the peer the caller wants to reach.
type pingRequest struct {
	Target [32]byte `msgpack:"target"`
}

// pingResponse carries the target's externally observed address.
type pingResponse struct {
	Addr string `msgpack:"addr"`
}

// genericError carries a coarse-grained, non-specific failure reason (§7
// server-reported Generic): the server never describes *why* in detail.
type genericError struct {
	Message string `msgpack:"message"`
}

func keyToWire(k identity.PublicKey) [32]byte {
	var out [32]byte
	copy(out[:], k.Bytes())
	return out
}

func keyFromWire(b [32]byte) (identity.PublicKey, error) {
	return identity.PublicKeyFromBytes(b[:])
}

func timeToWire(t time.Time) int64 { return t.UnixNano() }
func timeFromWire(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func addrToWire(a netip.AddrPort) string { return a.String() }
func addrFromWire(s string) (netip.AddrPort, error) {
	return netip.ParseAddrPort(s)
}

// pairingCodeFromWire reverses the Code string carried on the wire.
func pairingCodeFromWire(s string) (pairing.Code, error) {
	return pairing.Parse(s)
}
