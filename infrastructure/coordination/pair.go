// Package coordination implements the coordination server's three
// single-owner state managers (§4.6): Pair, Request, and Establish. Each
// manager owns its map exclusively inside one goroutine and is driven by a
// buffered command channel with a one-shot reply channel per command,
// replacing the oneshot/mpsc actor pattern the server state machines were
// modeled on.
package coordination

import (
	"context"

	"duet/domain/errkind"
	"duet/domain/identity"
	"duet/domain/pairing"
	"duet/infrastructure/boundedmap"
)

// CodeMapSize bounds the Pair manager's two maps (§4.5).
const CodeMapSize = 1024

type registerCmd struct {
	key  identity.PublicKey
	resp chan pairing.Code
}

type getKeyCmd struct {
	code      pairing.Code
	requestor identity.PublicKey
	resp      chan getKeyResult
}

type getKeyResult struct {
	initiator identity.PublicKey
	err       error
}

type getRegisterResponseCmd struct {
	initiator identity.PublicKey
	resp      chan getRegisterResponseResult
}

type getRegisterResponseResult struct {
	requestor identity.PublicKey
	err       error
}

// PairManager is the coordination server's pairing-code state machine:
// Register mints a code for a waiting device, GetKey consumes it, and
// GetRegisterResponse lets the original device learn who claimed it.
type PairManager struct {
	cmds chan any
}

// NewPairManager starts the manager's owning goroutine, stopped when ctx is
// cancelled.
func NewPairManager(ctx context.Context) *PairManager {
	m := &PairManager{cmds: make(chan any, 16)}
	go m.run(ctx)
	return m
}

func (m *PairManager) run(ctx context.Context) {
	codeMap := boundedmap.New[pairing.Code, identity.PublicKey](CodeMapSize)
	requestorMap := boundedmap.New[identity.PublicKey, identity.PublicKey](CodeMapSize)

	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-m.cmds:
			switch cmd := raw.(type) {
			case registerCmd:
				code, err := pairing.New()
				for err == nil && codeMap.Contains(code) {
					code, err = pairing.New()
				}
				if err == nil {
					codeMap.Insert(code, cmd.key)
				}
				cmd.resp <- code
			case getKeyCmd:
				initiator, ok := codeMap.Remove(cmd.code)
				if !ok {
					cmd.resp <- getKeyResult{err: errkind.ErrNoData}
					continue
				}
				requestorMap.Insert(initiator, cmd.requestor)
				cmd.resp <- getKeyResult{initiator: initiator}
			case getRegisterResponseCmd:
				requestor, ok := requestorMap.Remove(cmd.initiator)
				if !ok {
					cmd.resp <- getRegisterResponseResult{err: errkind.ErrNoData}
					continue
				}
				cmd.resp <- getRegisterResponseResult{requestor: requestor}
			}
		}
	}
}

// Register mints and returns a fresh pairing code bound to key.
func (m *PairManager) Register(ctx context.Context, key identity.PublicKey) (pairing.Code, error) {
	resp := make(chan pairing.Code, 1)
	select {
	case m.cmds <- registerCmd{key: key, resp: resp}:
	case <-ctx.Done():
		return pairing.Code{}, ctx.Err()
	}
	select {
	case code := <-resp:
		return code, nil
	case <-ctx.Done():
		return pairing.Code{}, ctx.Err()
	}
}

// GetKey consumes code, returning the public key that registered it and
// recording requestor as the device that claimed it.
func (m *PairManager) GetKey(ctx context.Context, code pairing.Code, requestor identity.PublicKey) (identity.PublicKey, error) {
	resp := make(chan getKeyResult, 1)
	select {
	case m.cmds <- getKeyCmd{code: code, requestor: requestor, resp: resp}:
	case <-ctx.Done():
		return identity.PublicKey{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.initiator, r.err
	case <-ctx.Done():
		return identity.PublicKey{}, ctx.Err()
	}
}

// GetRegisterResponse returns the public key of whoever claimed initiator's
// pairing code, if any.
func (m *PairManager) GetRegisterResponse(ctx context.Context, initiator identity.PublicKey) (identity.PublicKey, error) {
	resp := make(chan getRegisterResponseResult, 1)
	select {
	case m.cmds <- getRegisterResponseCmd{initiator: initiator, resp: resp}:
	case <-ctx.Done():
		return identity.PublicKey{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.requestor, r.err
	case <-ctx.Done():
		return identity.PublicKey{}, ctx.Err()
	}
}
