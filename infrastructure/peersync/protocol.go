package peersync

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"duet/application"
	"duet/domain/errkind"
	"duet/domain/index"
)

// Wire payload structs for the peer-sync protocol (§4.9). Each request is
// carried in its own stream, one at a time; for Write and GetFile the
// file's encrypted frames follow the request or response on that same
// stream.
type (
	// writeRequest.Len is the ciphertext length that follows on the stream
	// (§4.9 step 4): the responder never decrypts, so it only ever needs to
	// know how many raw bytes to copy into storage.
	writeRequest struct {
		Name string
		Len  uint64
	}

	getFileRequest struct {
		Name string
	}

	// getFileResponse.Len is likewise the ciphertext length of the stored
	// file, read straight off its on-disk size.
	getFileResponse struct {
		Len uint64
	}

	renameRequest struct {
		From string
		To   string
	}

	deleteRequest struct {
		Name string
	}

	// setIndexRequest carries the new index, already sealed by the caller
	// under its own key (the Encrypted<Index> envelope named in §3's
	// glossary) — the responder stores Sealed verbatim and never unseals it.
	setIndexRequest struct {
		Sealed []byte
	}

	// getIndexResponse carries the last index blob stored at this peer,
	// read back verbatim — only the device that sealed it can open it.
	getIndexResponse struct {
		Sealed []byte
	}

	// completeRequest marks the end of the current sync direction. It
	// carries no payload: a reverse pass is always a second, explicit
	// Sync call with roles swapped, never an implicit continuation.
	completeRequest struct{}

	ackResponse struct{}
)

// entryWire is the encode-stable (path, hash) pair used inside a sealed
// Index blob; ContentHash round-trips as raw bytes rather than its hex
// String() form to keep the envelope small.
type entryWire struct {
	Path string
	Hash [32]byte
}

func indexToWire(idx *index.Index) []entryWire {
	entries := idx.Entries()
	out := make([]entryWire, len(entries))
	for i, e := range entries {
		out[i] = entryWire{Path: e.Path, Hash: e.Hash}
	}
	return out
}

func indexFromWire(entries []entryWire) (*index.Index, error) {
	converted := make([]index.Entry, len(entries))
	for i, e := range entries {
		converted[i] = index.Entry{Path: e.Path, Hash: index.ContentHash(e.Hash)}
	}
	return index.FromEntries(converted)
}

// sealIndex msgpack-encodes idx and seals it under box, producing the bytes
// carried in a setIndexRequest/getIndexResponse.
func sealIndex(box application.Envelope, idx *index.Index) ([]byte, error) {
	encoded, err := msgpack.Marshal(indexToWire(idx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errkind.ErrSerde, err)
	}
	return box.Seal(encoded)
}

// unsealIndex reverses sealIndex.
func unsealIndex(box application.Envelope, sealed []byte) (*index.Index, error) {
	plaintext, err := box.Open(sealed)
	if err != nil {
		return nil, err
	}
	var entries []entryWire
	if err := msgpack.Unmarshal(plaintext, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", errkind.ErrSerde, err)
	}
	return indexFromWire(entries)
}
