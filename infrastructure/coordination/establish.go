package coordination

import (
	"context"
	"net/netip"

	"duet/domain/errkind"
	"duet/domain/identity"
	"duet/infrastructure/boundedmap"
)

// AddressMapSize bounds the Establish manager's map (§4.5).
const AddressMapSize = 1024

type pingCmd struct {
	initiatorKey     identity.PublicKey
	initiatorAddress netip.AddrPort
	target           identity.PublicKey
	resp             chan pingResult
}

type pingResult struct {
	addr netip.AddrPort
	err  error
}

// EstablishManager runs the rendezvous address exchange (§4.6/§4.8). It
// must stay single-owner: each Ping inserts the caller's own address, then
// atomically attempts to remove the target's address, so that whichever
// side's Ping arrives second is the one that completes the match. This
// ordering is what makes two independent ping loops meet exactly once.
type EstablishManager struct {
	cmds chan any
}

// NewEstablishManager starts the manager's owning goroutine, stopped when
// ctx is cancelled.
func NewEstablishManager(ctx context.Context) *EstablishManager {
	m := &EstablishManager{cmds: make(chan any, 32)}
	go m.run(ctx)
	return m
}

func (m *EstablishManager) run(ctx context.Context) {
	addresses := boundedmap.New[identity.PublicKey, netip.AddrPort](AddressMapSize)

	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-m.cmds:
			cmd := raw.(pingCmd)
			addresses.Insert(cmd.initiatorKey, cmd.initiatorAddress)
			addr, ok := addresses.Remove(cmd.target)
			if !ok {
				cmd.resp <- pingResult{err: errkind.ErrNoData}
				continue
			}
			cmd.resp <- pingResult{addr: addr}
		}
	}
}

// Ping records initiatorAddress under initiatorKey, then returns target's
// address if target has already pinged in.
func (m *EstablishManager) Ping(ctx context.Context, initiatorKey identity.PublicKey, initiatorAddress netip.AddrPort, target identity.PublicKey) (netip.AddrPort, error) {
	resp := make(chan pingResult, 1)
	select {
	case m.cmds <- pingCmd{initiatorKey: initiatorKey, initiatorAddress: initiatorAddress, target: target, resp: resp}:
	case <-ctx.Done():
		return netip.AddrPort{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.addr, r.err
	case <-ctx.Done():
		return netip.AddrPort{}, ctx.Err()
	}
}
