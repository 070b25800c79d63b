// Package index implements the bijection between backup-relative paths and
// BLAKE3 content hashes, and the diff algorithm that turns one index into
// another as a minimal set of Write/Rename/Delete operations.
//
// Index never touches the filesystem — building one from a directory tree
// lives in infrastructure/indexing, which hashes file contents with BLAKE3
// and assembles the result into an Index.
package index

import (
	"encoding/hex"
	"fmt"
	"sort"

	"lukechampine.com/blake3"
)

// ContentHash is a 32-byte BLAKE3 hash of a file's contents.
type ContentHash [32]byte

// String renders the hash as lowercase hex.
func (h ContentHash) String() string {
	return hex.EncodeToString(h[:])
}

// HashedPath returns the hex-encoded BLAKE3 hash of a relative path,
// opaque by design so peer-stored filenames leak no information about the
// original directory structure.
func HashedPath(relativePath string) string {
	sum := blake3.Sum256([]byte(relativePath))
	return hex.EncodeToString(sum[:])
}

// Entry is one (path, hash) pair, the unit Index is built from and
// serialized as.
type Entry struct {
	Path string
	Hash ContentHash
}

// Index is a bijection between relative paths and content hashes: each path
// appears at most once, each hash appears at most once. Order carries no
// meaning — two indexes with the same entries in different order are equal.
type Index struct {
	byPath map[string]ContentHash
	byHash map[ContentHash]string
}

// New returns an empty index.
func New() *Index {
	return &Index{
		byPath: make(map[string]ContentHash),
		byHash: make(map[ContentHash]string),
	}
}

// FromEntries builds an index from a flat entry list, as produced by
// decoding a peer-sent Index blob. Entries violating the path/hash
// bijection are rejected rather than silently dropped, since a malformed
// bijection here would make GetIndex responses and diffing unreliable.
func FromEntries(entries []Entry) (*Index, error) {
	idx := New()
	for _, e := range entries {
		if _, dup := idx.byPath[e.Path]; dup {
			return nil, fmt.Errorf("index: duplicate path %q", e.Path)
		}
		if existing, dup := idx.byHash[e.Hash]; dup {
			return nil, fmt.Errorf("index: hash %s claimed by both %q and %q", e.Hash, existing, e.Path)
		}
		idx.byPath[e.Path] = e.Hash
		idx.byHash[e.Hash] = e.Path
	}
	return idx, nil
}

// Insert adds or overwrites the mapping for path, evicting any existing
// entry that collides on either side of the bijection — the pairing with
// the lexicographically smaller path wins a hash collision, so index
// construction stays a pure function of the directory tree regardless of
// walk order (invariant 2 in the specification's testable properties).
func (idx *Index) Insert(path string, hash ContentHash) {
	if existingPath, ok := idx.byHash[hash]; ok && existingPath != path {
		if existingPath < path {
			return
		}
		delete(idx.byPath, existingPath)
	}
	if existingHash, ok := idx.byPath[path]; ok {
		delete(idx.byHash, existingHash)
	}
	idx.byPath[path] = hash
	idx.byHash[hash] = path
}

// Len returns the number of entries in the index.
func (idx *Index) Len() int {
	return len(idx.byPath)
}

// Entries returns the index's (path, hash) pairs in lexicographic path
// order, for deterministic serialization.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, 0, len(idx.byPath))
	for path, hash := range idx.byPath {
		out = append(out, Entry{Path: path, Hash: hash})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// HashOf returns the content hash stored for path, if any.
func (idx *Index) HashOf(path string) (ContentHash, bool) {
	h, ok := idx.byPath[path]
	return h, ok
}

// PathOf returns the path stored for hash, if any.
func (idx *Index) PathOf(hash ContentHash) (string, bool) {
	p, ok := idx.byHash[hash]
	return p, ok
}

// Equal reports whether two indexes contain exactly the same (path, hash)
// pairs, regardless of insertion order.
func (idx *Index) Equal(other *Index) bool {
	if idx.Len() != other.Len() {
		return false
	}
	for path, hash := range idx.byPath {
		if otherHash, ok := other.byPath[path]; !ok || otherHash != hash {
			return false
		}
	}
	return true
}
