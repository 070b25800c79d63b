package coordination

import (
	"context"
	"time"

	"duet/domain/errkind"
	"duet/domain/identity"
	"duet/infrastructure/boundedmap"
)

// RequestMapSize bounds the Request manager's map (§4.5).
const RequestMapSize = 1024

// pendingRequest is what CheckConnection hands back to the responder:
// who wants to connect, and when.
type pendingRequest struct {
	initiator identity.PublicKey
	time      time.Time
}

type requestConnectionCmd struct {
	initiator identity.PublicKey
	target    identity.PublicKey
	time      time.Time
	done      chan struct{}
}

type checkConnectionCmd struct {
	target identity.PublicKey
	resp   chan checkConnectionResult
}

type checkConnectionResult struct {
	req pendingRequest
	err error
}

// RequestManager tracks one outstanding connection request per target peer
// (§4.6): RequestConnection overwrites any existing entry for that target,
// CheckConnection removes and returns it.
type RequestManager struct {
	cmds chan any
}

// NewRequestManager starts the manager's owning goroutine, stopped when ctx
// is cancelled.
func NewRequestManager(ctx context.Context) *RequestManager {
	m := &RequestManager{cmds: make(chan any, 32)}
	go m.run(ctx)
	return m
}

func (m *RequestManager) run(ctx context.Context) {
	requests := boundedmap.New[identity.PublicKey, pendingRequest](RequestMapSize)

	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-m.cmds:
			switch cmd := raw.(type) {
			case requestConnectionCmd:
				requests.Insert(cmd.target, pendingRequest{initiator: cmd.initiator, time: cmd.time})
				close(cmd.done)
			case checkConnectionCmd:
				req, ok := requests.Remove(cmd.target)
				if !ok {
					cmd.resp <- checkConnectionResult{err: errkind.ErrNoData}
					continue
				}
				cmd.resp <- checkConnectionResult{req: req}
			}
		}
	}
}

// RequestConnection schedules a rendezvous: initiator wants to reach target
// at the given time, overwriting any prior pending request for target.
func (m *RequestManager) RequestConnection(ctx context.Context, initiator, target identity.PublicKey, at time.Time) error {
	done := make(chan struct{})
	select {
	case m.cmds <- requestConnectionCmd{initiator: initiator, target: target, time: at, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckConnection removes and returns the pending request addressed to
// target, if any.
func (m *RequestManager) CheckConnection(ctx context.Context, target identity.PublicKey) (initiator identity.PublicKey, scheduledAt time.Time, err error) {
	resp := make(chan checkConnectionResult, 1)
	select {
	case m.cmds <- checkConnectionCmd{target: target, resp: resp}:
	case <-ctx.Done():
		return identity.PublicKey{}, time.Time{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.req.initiator, r.req.time, r.err
	case <-ctx.Done():
		return identity.PublicKey{}, time.Time{}, ctx.Err()
	}
}
