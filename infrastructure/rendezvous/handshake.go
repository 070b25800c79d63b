package rendezvous

import (
	"context"
	"net"
	"net/netip"
	"time"

	"duet/application"
	"duet/domain/errkind"
	"duet/domain/identity"
	"duet/domain/rendezvous"
)

// natPunchPackets and natPunchSpacing implement the "~10 UDP packets at
// 1-second spacing" traversal step of §4.8.
const (
	natPunchPackets = 10
	natPunchSpacing = time.Second
)

// Establish runs the full rendezvous handshake against the coordination
// server: schedule, ping loop, and NAT traversal burst. It returns the
// peer's externally observed address once both sides have met at the
// Establish manager.
func Establish(
	ctx context.Context,
	client application.CoordinationClient,
	self, peer identity.PublicKey,
	req rendezvous.ConnectionRequest,
	localAddr netip.AddrPort,
	budget application.RetryBudget,
	punch func(netip.AddrPort) error,
) (netip.AddrPort, error) {
	if req.Missed(time.Now()) {
		return netip.AddrPort{}, errkind.ErrMissedSynchronisation
	}

	if sleepUntil := time.Until(req.ScheduledAt); sleepUntil > 0 {
		timer := time.NewTimer(sleepUntil)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return netip.AddrPort{}, ctx.Err()
		}
	}

	var peerAddr netip.AddrPort
	for budget.Next(ctx) {
		addr, ok, err := client.Ping(ctx, self, peer, localAddr)
		if err != nil {
			return netip.AddrPort{}, err
		}
		if ok {
			peerAddr = addr
			break
		}
	}
	if !peerAddr.IsValid() {
		return netip.AddrPort{}, errkind.ErrPeerNoResponse
	}

	if punch != nil {
		for i := 0; i < natPunchPackets; i++ {
			_ = punch(peerAddr)
			if i < natPunchPackets-1 {
				timer := time.NewTimer(natPunchSpacing)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return peerAddr, ctx.Err()
				}
				timer.Stop()
			}
		}
	}

	return peerAddr, nil
}

// UDPPunch returns a punch function that fires a single, content-irrelevant
// UDP datagram at target from conn, opening a NAT mapping in both
// directions (§4.8 step 5).
func UDPPunch(conn *net.UDPConn) func(netip.AddrPort) error {
	payload := []byte("duet")
	return func(target netip.AddrPort) error {
		_, err := conn.WriteToUDPAddrPort(payload, target)
		return err
	}
}
