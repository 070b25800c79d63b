package rendezvous

import (
	"context"
	"errors"
	"io"

	"duet/application"
	"duet/domain/errkind"
	"duet/domain/identity"
	"duet/infrastructure/coordination"
	"duet/infrastructure/wire"
)

// Dispatcher is the coordination server's connection handler (§4.7): for
// every accepted connection it extracts the peer's public key once, then
// serves one request per opened stream for as long as the connection
// stays up.
type Dispatcher struct {
	pair      *coordination.PairManager
	request   *coordination.RequestManager
	establish *coordination.EstablishManager
	log       application.Logger
}

// NewDispatcher wires a Dispatcher to the three coordination managers.
func NewDispatcher(pair *coordination.PairManager, request *coordination.RequestManager, establish *coordination.EstablishManager, log application.Logger) *Dispatcher {
	return &Dispatcher{pair: pair, request: request, establish: establish, log: log}
}

// Serve handles every stream opened on conn until it closes or ctx is done.
func (d *Dispatcher) Serve(ctx context.Context, conn application.Connection) {
	peerKey := conn.PeerKey()
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				d.log.Debug("coordination connection closed", "peer", peerKey.String(), "err", err.Error())
			}
			return
		}
		go d.serveStream(ctx, stream, peerKey, conn.RemoteAddr().String())
	}
}

func (d *Dispatcher) serveStream(ctx context.Context, stream application.Stream, caller identity.PublicKey, remoteAddr string) {
	defer stream.Close()

	env, err := wire.ReadMessage(stream)
	if err != nil {
		d.log.Warn("failed to read coordination request", "err", err.Error())
		return
	}

	respEnv, err := d.handle(ctx, env, caller, remoteAddr)
	if err != nil {
		d.log.Debug("coordination request failed", "peer", caller.String(), "err", err.Error())
		respEnv, err = wire.Marshal(wire.TagGeneric, genericError{Message: "request failed"})
		if err != nil {
			d.log.Warn("failed to build error response", "err", err.Error())
			return
		}
	}

	if err := wire.WriteEnvelope(stream, respEnv); err != nil {
		d.log.Warn("failed to write coordination response", "err", err.Error())
	}
}

// handle dispatches one request envelope to the appropriate manager and
// builds the response envelope. Errors that are not ErrNoData are surfaced
// to the caller wrapped in a coarse Generic response by the caller of
// handle; ErrNoData becomes the dedicated NoData tag so clients can
// distinguish "not yet" from a real failure.
func (d *Dispatcher) handle(ctx context.Context, req wire.Envelope, caller identity.PublicKey, remoteAddr string) (wire.Envelope, error) {
	switch req.Tag {
	case wire.TagRegister:
		code, err := d.pair.Register(ctx, caller)
		if err != nil {
			return wire.Envelope{}, err
		}
		return wire.Marshal(wire.TagRegister, registerResponse{Code: code.String()})

	case wire.TagGetKey:
		var body getKeyRequest
		if err := req.Decode(&body); err != nil {
			return wire.Envelope{}, err
		}
		code, err := pairingCodeFromWire(body.Code)
		if err != nil {
			return wire.Envelope{}, err
		}
		initiator, err := d.pair.GetKey(ctx, code, caller)
		if errors.Is(err, errkind.ErrNoData) {
			return wire.Marshal(wire.TagNoData, nil)
		}
		if err != nil {
			return wire.Envelope{}, err
		}
		return wire.Marshal(wire.TagGetKey, getKeyResponse{Key: keyToWire(initiator)})

	case wire.TagGetRegisterResponse:
		requestor, err := d.pair.GetRegisterResponse(ctx, caller)
		if errors.Is(err, errkind.ErrNoData) {
			return wire.Marshal(wire.TagNoData, nil)
		}
		if err != nil {
			return wire.Envelope{}, err
		}
		return wire.Marshal(wire.TagGetRegisterResponse, getRegisterResponseResponse{Key: keyToWire(requestor)})

	case wire.TagRequestConnection:
		var body requestConnectionRequest
		if err := req.Decode(&body); err != nil {
			return wire.Envelope{}, err
		}
		target, err := keyFromWire(body.Target)
		if err != nil {
			return wire.Envelope{}, err
		}
		if err := d.request.RequestConnection(ctx, caller, target, timeFromWire(body.Time)); err != nil {
			return wire.Envelope{}, err
		}
		return wire.Marshal(wire.TagRequestConnection, nil)

	case wire.TagCheckConnection:
		initiator, at, err := d.request.CheckConnection(ctx, caller)
		if errors.Is(err, errkind.ErrNoData) {
			return wire.Marshal(wire.TagNoData, nil)
		}
		if err != nil {
			return wire.Envelope{}, err
		}
		return wire.Marshal(wire.TagCheckConnection, checkConnectionResponse{Initiator: keyToWire(initiator), Time: timeToWire(at)})

	case wire.TagPing:
		var body pingRequest
		if err := req.Decode(&body); err != nil {
			return wire.Envelope{}, err
		}
		target, err := keyFromWire(body.Target)
		if err != nil {
			return wire.Envelope{}, err
		}
		callerAddr, err := addrFromWire(remoteAddr)
		if err != nil {
			return wire.Envelope{}, err
		}
		addr, err := d.establish.Ping(ctx, caller, callerAddr, target)
		if errors.Is(err, errkind.ErrNoData) {
			return wire.Marshal(wire.TagNoData, nil)
		}
		if err != nil {
			return wire.Envelope{}, err
		}
		return wire.Marshal(wire.TagPing, pingResponse{Addr: addrToWire(addr)})

	default:
		return wire.Envelope{}, io.ErrUnexpectedEOF
	}
}

