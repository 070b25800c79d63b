package index

// DifferenceKind tags the three possible shapes an IndexDifference can take.
type DifferenceKind int

const (
	// Write means path should be (re)transferred in full.
	Write DifferenceKind = iota
	// Rename means the file previously at From should be moved to To
	// without re-transferring its contents.
	Rename
	// Delete means path should be removed from peer storage.
	Delete
)

// IndexDifference is one edit needed to turn a reference index into a
// candidate index: Write(path), Rename{from,to}, or Delete(path).
type IndexDifference struct {
	Kind DifferenceKind
	Path string // set for Write and Delete
	From string // set for Rename
	To   string // set for Rename
}

func writeOp(path string) IndexDifference  { return IndexDifference{Kind: Write, Path: path} }
func deleteOp(path string) IndexDifference { return IndexDifference{Kind: Delete, Path: path} }
func renameOp(from, to string) IndexDifference {
	return IndexDifference{Kind: Rename, From: from, To: to}
}

// Difference computes the edit set that turns reference into candidate
// (the receiver), per the specification's diff algorithm:
//
//   - for each (path, hash) in candidate: if reference has that exact pair,
//     no-op; else if reference has hash under a different path, Rename;
//     otherwise Write.
//   - for each (path, hash) in reference not matched by either key in
//     candidate, Delete.
//
// The result is ordered: all Writes and Renames first (in candidate path
// order), then all Deletes (in reference path order) — callers that stream
// file content for Writes should preserve this order so a later Delete
// never races a Write of the same underlying content.
func (candidate *Index) Difference(reference *Index) []IndexDifference {
	var diff []IndexDifference

	for _, entry := range candidate.Entries() {
		refHash, samePathExists := reference.byPath[entry.Path]
		refPath, sameHashExists := reference.byHash[entry.Hash]

		switch {
		case samePathExists && refHash == entry.Hash:
			// no-op: unchanged
		case sameHashExists && refPath != entry.Path:
			diff = append(diff, renameOp(refPath, entry.Path))
		default:
			diff = append(diff, writeOp(entry.Path))
		}
	}

	for _, entry := range reference.Entries() {
		_, pathMatched := candidate.byPath[entry.Path]
		_, hashMatched := candidate.byHash[entry.Hash]
		if !pathMatched && !hashMatched {
			diff = append(diff, deleteOp(entry.Path))
		}
	}

	return diff
}

// Apply returns the index that results from applying diff to the receiver,
// mirroring exactly what a responder does to its on-disk state: it is the
// inverse of Difference, used by tests to assert
// new.Difference(old) applied to old == new.
func (reference *Index) Apply(diff []IndexDifference, newHashes map[string]ContentHash) *Index {
	result := New()
	for _, e := range reference.Entries() {
		result.Insert(e.Path, e.Hash)
	}
	for _, d := range diff {
		switch d.Kind {
		case Write:
			result.Insert(d.Path, newHashes[d.Path])
		case Rename:
			h, ok := result.HashOf(d.From)
			if !ok {
				continue
			}
			result.byPath[d.To] = h
			result.byHash[h] = d.To
			delete(result.byPath, d.From)
		case Delete:
			if h, ok := result.byPath[d.Path]; ok {
				delete(result.byPath, d.Path)
				delete(result.byHash, h)
			}
		}
	}
	return result
}
