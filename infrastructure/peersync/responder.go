package peersync

import (
	"context"
	"errors"
	"fmt"
	"io"

	"duet/application"
	"duet/domain/errkind"
	"duet/infrastructure/wire"
)

// Responder serves one sync direction's requests against peer Storage
// (§4.9 "Responder side"): GetIndex, GetFile, Write, Rename, Delete,
// SetIndex, Complete, each confined to a single request per stream. The
// responder never holds key material and never encrypts or decrypts
// anything — it reads and writes exactly the bytes it is given, which is
// what makes the storing peer unable to read the content it holds (§1).
type Responder struct {
	storage application.Storage
	log     application.Logger
}

// NewResponder builds a Responder over storage.
func NewResponder(storage application.Storage, log application.Logger) *Responder {
	return &Responder{storage: storage, log: log}
}

// Serve handles every stream opened on conn until it closes or ctx is done,
// one request per stream, matching the coordination dispatcher's shape.
func (r *Responder) Serve(ctx context.Context, conn application.Connection) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				r.log.Debug("peer sync connection closed", "peer", conn.PeerKey().String(), "err", err.Error())
			}
			return
		}
		go r.serveStream(ctx, stream)
	}
}

func (r *Responder) serveStream(ctx context.Context, stream application.Stream) {
	defer stream.Close()

	env, err := wire.ReadMessage(stream)
	if err != nil {
		r.log.Warn("failed to read peer sync request", "err", err.Error())
		return
	}

	if err := r.handle(ctx, stream, env); err != nil {
		resp, buildErr := wire.Marshal(wire.TagGeneric, struct{ Message string }{err.Error()})
		if buildErr != nil {
			r.log.Warn("failed to build error response", "err", buildErr.Error())
			return
		}
		if writeErr := wire.WriteEnvelope(stream, resp); writeErr != nil {
			r.log.Warn("failed to write peer sync error response", "err", writeErr.Error())
		}
	}
}

// handle dispatches one request to the matching storage operation and
// writes its response (and, for GetFile/Write, streams the associated file
// frames on the same stream immediately after the control message).
func (r *Responder) handle(ctx context.Context, stream application.Stream, req wire.Envelope) error {
	switch req.Tag {
	case wire.TagGetIndex:
		blob, err := r.storage.IndexBlob()
		if err != nil {
			if errors.Is(err, errkind.ErrNotFound) {
				return r.respond(stream, wire.TagGetIndex, getIndexResponse{})
			}
			return err
		}
		defer blob.Close()
		sealed, err := io.ReadAll(blob)
		if err != nil {
			return fmt.Errorf("%w: %v", errkind.ErrIo, err)
		}
		return r.respond(stream, wire.TagGetIndex, getIndexResponse{Sealed: sealed})

	case wire.TagGetFile:
		var body getFileRequest
		if err := req.Decode(&body); err != nil {
			return err
		}
		if err := guardComponent(body.Name); err != nil {
			return err
		}
		f, err := r.storage.Open(body.Name)
		if err != nil {
			return fmt.Errorf("%w: %v", errkind.ErrNotFoundOnPeer, err)
		}
		defer f.Close()

		cipherLen, err := sizeOf(f)
		if err != nil {
			return err
		}
		if err := r.respond(stream, wire.TagGetFile, getFileResponse{Len: cipherLen}); err != nil {
			return err
		}
		_, err = io.CopyN(stream, f, int64(cipherLen))
		return err

	case wire.TagWrite:
		var body writeRequest
		if err := req.Decode(&body); err != nil {
			return err
		}
		if err := guardComponent(body.Name); err != nil {
			return err
		}
		w, err := r.storage.Create(body.Name)
		if err != nil {
			return err
		}
		if _, err := io.CopyN(w, stream, int64(body.Len)); err != nil {
			w.Close()
			return fmt.Errorf("%w: %v", errkind.ErrRead, err)
		}
		if err := w.Close(); err != nil {
			return err
		}
		return r.respond(stream, wire.TagWrite, ackResponse{})

	case wire.TagRename:
		var body renameRequest
		if err := req.Decode(&body); err != nil {
			return err
		}
		if err := guardComponent(body.From); err != nil {
			return err
		}
		if err := guardComponent(body.To); err != nil {
			return err
		}
		if err := r.storage.Rename(body.From, body.To); err != nil {
			return err
		}
		return r.respond(stream, wire.TagRename, ackResponse{})

	case wire.TagDelete:
		var body deleteRequest
		if err := req.Decode(&body); err != nil {
			return err
		}
		if err := guardComponent(body.Name); err != nil {
			return err
		}
		if err := r.storage.Remove(body.Name); err != nil {
			return err
		}
		return r.respond(stream, wire.TagDelete, ackResponse{})

	case wire.TagSetIndex:
		var body setIndexRequest
		if err := req.Decode(&body); err != nil {
			return err
		}
		if err := r.storage.SetIndexBlob(body.Sealed); err != nil {
			return err
		}
		return r.respond(stream, wire.TagSetIndex, ackResponse{})

	case wire.TagComplete:
		var body completeRequest
		if err := req.Decode(&body); err != nil {
			return err
		}
		return r.respond(stream, wire.TagComplete, ackResponse{})

	default:
		return io.ErrUnexpectedEOF
	}
}

func (r *Responder) respond(stream application.Stream, tag wire.Tag, v any) error {
	return wire.WriteMessage(stream, tag, v)
}

// sizeOf reports the remaining byte count of an io.ReadCloser that also
// implements io.Seeker, as Storage.Open implementations are expected to
// (files backing a backup root are always regular, seekable files).
func sizeOf(f io.ReadCloser) (uint64, error) {
	seeker, ok := f.(io.Seeker)
	if !ok {
		return 0, fmt.Errorf("%w: storage reader is not seekable", errkind.ErrIo)
	}
	cur, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := seeker.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return uint64(end - cur), nil
}
