package application

import (
	"context"
	"io"

	"duet/domain/index"
)

// Storage is the local backup directory a sync engine reads from and
// writes into, keyed by the same relative paths carried in an Index entry
// (§4.4).
type Storage interface {
	// Open returns a reader over the current contents of path.
	Open(path string) (io.ReadCloser, error)
	// Create truncates (or creates) path and returns a writer for it. The
	// parent directory is created if missing.
	Create(path string) (io.WriteCloser, error)
	Rename(from, to string) error
	Remove(path string) error
	// Index rebuilds the local content index by walking the storage root.
	Index(ctx context.Context) (*index.Index, error)
	// IndexBlob returns the raw bytes of the last Encrypted<Index> blob
	// persisted by SetIndexBlob, or ErrNotFound if none has been set yet —
	// the peer-storage side's record of "the last index this counterpart
	// pushed here" (§6), read and written verbatim without ever being
	// unsealed locally.
	IndexBlob() (io.ReadCloser, error)
	// SetIndexBlob persists data verbatim as the new index blob.
	SetIndexBlob(data []byte) error
}

// SyncSession drives one direction of a peer sync exchange (§4.4-§4.7):
// the requester compares indexes, then issues Write/Rename/Delete against
// the responder in the order IndexDifference produced them.
type SyncSession interface {
	// RemoteIndex fetches the peer's current Index over the open
	// connection.
	RemoteIndex(ctx context.Context) (*index.Index, error)
	// Apply sends one difference operation to the peer and waits for its
	// acknowledgement.
	Apply(ctx context.Context, diff index.IndexDifference, content io.Reader) error
	// Complete tells the peer this sync direction is finished (§9 open
	// question: Complete always terminates only the current direction; a
	// reverse pass is a separate explicit call).
	Complete(ctx context.Context) error
}

// SyncEngine orchestrates a full two-way sync between the local Storage
// and a remote peer connection.
type SyncEngine interface {
	// SyncTo pushes local changes the peer is missing.
	SyncTo(ctx context.Context, peer Connection) error
	// SyncFrom pulls remote changes the local copy is missing.
	SyncFrom(ctx context.Context, peer Connection) error
}
