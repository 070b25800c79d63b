package peersync

import (
	"context"
	"fmt"

	"duet/application"
	"duet/domain/errkind"
	"duet/domain/index"
	"duet/infrastructure/wire"
)

// Engine drives both directions of a peer sync exchange against local
// Storage over an established Connection (§4.9 "Sync state machine
// (initiator side)"). One Engine instance is reused across SyncTo and
// SyncFrom calls on the same connection.
type Engine struct {
	storage application.Storage
	cipher  application.FrameCipher
	box     application.Envelope
	log     application.Logger
}

var _ application.SyncEngine = (*Engine)(nil)

// NewEngine builds an Engine over storage, sealing indexes with box and
// streaming file content with cipher.
func NewEngine(storage application.Storage, cipher application.FrameCipher, box application.Envelope, log application.Logger) *Engine {
	return &Engine{storage: storage, cipher: cipher, box: box, log: log}
}

// remoteIndex fetches peer's current index over a fresh stream.
func (e *Engine) remoteIndex(ctx context.Context, peer application.Connection) (*index.Index, error) {
	stream, err := peer.OpenStream(ctx)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := wire.WriteMessage(stream, wire.TagGetIndex, nil); err != nil {
		return nil, err
	}
	env, err := wire.ReadMessage(stream)
	if err != nil {
		return nil, err
	}
	if err := checkGenericResponse(env); err != nil {
		return nil, err
	}
	var resp getIndexResponse
	if err := env.Decode(&resp); err != nil {
		return nil, err
	}
	if len(resp.Sealed) == 0 {
		return index.New(), nil
	}
	return unsealIndex(e.box, resp.Sealed)
}

// SyncTo pushes local changes the peer is missing, per the diff order
// invariant: all Writes and Renames before any Delete.
func (e *Engine) SyncTo(ctx context.Context, peer application.Connection) error {
	local, err := e.storage.Index(ctx)
	if err != nil {
		return err
	}
	remote, err := e.remoteIndex(ctx, peer)
	if err != nil {
		return err
	}

	for _, diff := range local.Difference(remote) {
		if err := e.applyToPeer(ctx, peer, diff); err != nil {
			return err
		}
	}

	sealed, err := sealIndex(e.box, local)
	if err != nil {
		return err
	}
	if err := e.ack(ctx, peer, wire.TagSetIndex, setIndexRequest{Sealed: sealed}); err != nil {
		return err
	}
	return e.ack(ctx, peer, wire.TagComplete, completeRequest{})
}

// SyncFrom pulls remote changes the local copy is missing — the mirror
// image of SyncTo, computed from the peer's perspective: the peer's index
// is the candidate, the local index is the reference.
func (e *Engine) SyncFrom(ctx context.Context, peer application.Connection) error {
	local, err := e.storage.Index(ctx)
	if err != nil {
		return err
	}
	remote, err := e.remoteIndex(ctx, peer)
	if err != nil {
		return err
	}

	for _, diff := range remote.Difference(local) {
		if err := e.applyLocally(ctx, peer, diff); err != nil {
			return err
		}
	}
	return nil
}

// applyToPeer sends one push-direction operation to peer and waits for its
// acknowledgement.
func (e *Engine) applyToPeer(ctx context.Context, peer application.Connection, diff index.IndexDifference) error {
	switch diff.Kind {
	case index.Write:
		return e.pushFile(ctx, peer, diff.Path)
	case index.Rename:
		return e.ack(ctx, peer, wire.TagRename, renameRequest{From: index.HashedPath(diff.From), To: index.HashedPath(diff.To)})
	case index.Delete:
		return e.ack(ctx, peer, wire.TagDelete, deleteRequest{Name: index.HashedPath(diff.Path)})
	default:
		return fmt.Errorf("%w: unknown difference kind", errkind.ErrIo)
	}
}

func (e *Engine) pushFile(ctx context.Context, peer application.Connection, path string) error {
	f, err := e.storage.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	plainLen, err := sizeOf(f)
	if err != nil {
		return err
	}

	stream, err := peer.OpenStream(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := wire.WriteMessage(stream, wire.TagWrite, writeRequest{Name: index.HashedPath(path), Len: CiphertextLength(plainLen)}); err != nil {
		return err
	}
	if err := WriteFrames(stream, e.cipher, f, plainLen); err != nil {
		return err
	}
	env, err := wire.ReadMessage(stream)
	if err != nil {
		return err
	}
	return checkGenericResponse(env)
}

// applyLocally fetches (for Write) or replays (for Rename/Delete) one
// pull-direction operation against local Storage.
func (e *Engine) applyLocally(ctx context.Context, peer application.Connection, diff index.IndexDifference) error {
	switch diff.Kind {
	case index.Write:
		return e.pullFile(ctx, peer, diff.Path)
	case index.Rename:
		return e.storage.Rename(diff.From, diff.To)
	case index.Delete:
		return e.storage.Remove(diff.Path)
	default:
		return fmt.Errorf("%w: unknown difference kind", errkind.ErrIo)
	}
}

func (e *Engine) pullFile(ctx context.Context, peer application.Connection, path string) error {
	stream, err := peer.OpenStream(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := wire.WriteMessage(stream, wire.TagGetFile, getFileRequest{Name: index.HashedPath(path)}); err != nil {
		return err
	}
	env, err := wire.ReadMessage(stream)
	if err != nil {
		return err
	}
	if err := checkGenericResponse(env); err != nil {
		return err
	}
	var resp getFileResponse
	if err := env.Decode(&resp); err != nil {
		return err
	}

	w, err := e.storage.Create(path)
	if err != nil {
		return err
	}
	if err := ReadFrames(w, e.cipher, stream, resp.Len); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ack sends one control request and waits for its Ack (or Generic error).
func (e *Engine) ack(ctx context.Context, peer application.Connection, tag wire.Tag, body any) error {
	stream, err := peer.OpenStream(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := wire.WriteMessage(stream, tag, body); err != nil {
		return err
	}
	env, err := wire.ReadMessage(stream)
	if err != nil {
		return err
	}
	return checkGenericResponse(env)
}

func checkGenericResponse(env wire.Envelope) error {
	if env.Tag != wire.TagGeneric {
		return nil
	}
	var body struct{ Message string }
	if err := env.Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", errkind.ErrServerGeneric, err)
	}
	return fmt.Errorf("%w: %s", errkind.ErrServerGeneric, body.Message)
}
