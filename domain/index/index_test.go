package index

import "testing"

func hashOf(b byte) ContentHash {
	var h ContentHash
	h[0] = b
	return h
}

func buildIndex(t *testing.T, entries ...Entry) *Index {
	t.Helper()
	idx, err := FromEntries(entries)
	if err != nil {
		t.Fatalf("FromEntries: %v", err)
	}
	return idx
}

func TestDifferenceOfIdenticalIndexesIsEmpty(t *testing.T) {
	idx := buildIndex(t, Entry{Path: "a.txt", Hash: hashOf(1)}, Entry{Path: "b.txt", Hash: hashOf(2)})
	if diff := idx.Difference(idx); len(diff) != 0 {
		t.Fatalf("expected empty diff, got %+v", diff)
	}
}

func TestDifferenceDetectsWrite(t *testing.T) {
	oldIdx := New()
	newIdx := buildIndex(t, Entry{Path: "a.txt", Hash: hashOf(1)})

	diff := newIdx.Difference(oldIdx)
	if len(diff) != 1 || diff[0].Kind != Write || diff[0].Path != "a.txt" {
		t.Fatalf("expected single Write(a.txt), got %+v", diff)
	}
}

func TestDifferenceDetectsRenameNotDeletePlusWrite(t *testing.T) {
	oldIdx := buildIndex(t, Entry{Path: "docs/a.txt", Hash: hashOf(9)})
	newIdx := buildIndex(t, Entry{Path: "docs/b.txt", Hash: hashOf(9)})

	diff := newIdx.Difference(oldIdx)
	if len(diff) != 1 {
		t.Fatalf("expected exactly one diff entry, got %+v", diff)
	}
	if diff[0].Kind != Rename || diff[0].From != "docs/a.txt" || diff[0].To != "docs/b.txt" {
		t.Fatalf("expected Rename{from: docs/a.txt, to: docs/b.txt}, got %+v", diff[0])
	}
}

func TestDifferenceDetectsDelete(t *testing.T) {
	oldIdx := buildIndex(t, Entry{Path: "a.txt", Hash: hashOf(1)}, Entry{Path: "b.txt", Hash: hashOf(2)})
	newIdx := buildIndex(t, Entry{Path: "a.txt", Hash: hashOf(1)})

	diff := newIdx.Difference(oldIdx)
	if len(diff) != 1 || diff[0].Kind != Delete || diff[0].Path != "b.txt" {
		t.Fatalf("expected single Delete(b.txt), got %+v", diff)
	}
}

func TestDifferenceChangedContentIsWriteNotRename(t *testing.T) {
	oldIdx := buildIndex(t, Entry{Path: "a.txt", Hash: hashOf(1)})
	newIdx := buildIndex(t, Entry{Path: "a.txt", Hash: hashOf(2)})

	diff := newIdx.Difference(oldIdx)
	if len(diff) != 1 || diff[0].Kind != Write || diff[0].Path != "a.txt" {
		t.Fatalf("expected Write(a.txt) for changed content, got %+v", diff)
	}
}

func TestApplyDiffReproducesNewIndex(t *testing.T) {
	oldIdx := buildIndex(t,
		Entry{Path: "docs/a.txt", Hash: hashOf(1)},
		Entry{Path: "keep.txt", Hash: hashOf(2)},
		Entry{Path: "gone.txt", Hash: hashOf(3)},
	)
	newIdx := buildIndex(t,
		Entry{Path: "docs/b.txt", Hash: hashOf(1)}, // renamed
		Entry{Path: "keep.txt", Hash: hashOf(2)},   // unchanged
		Entry{Path: "fresh.txt", Hash: hashOf(4)},  // new write
	)

	diff := newIdx.Difference(oldIdx)
	applied := oldIdx.Apply(diff, map[string]ContentHash{"fresh.txt": hashOf(4)})

	if !applied.Equal(newIdx) {
		t.Fatalf("applying diff to old index did not reproduce new index:\nold entries: %+v\nnew entries: %+v\napplied entries: %+v",
			oldIdx.Entries(), newIdx.Entries(), applied.Entries())
	}
}

func TestFromEntriesRejectsDuplicatePath(t *testing.T) {
	_, err := FromEntries([]Entry{
		{Path: "a.txt", Hash: hashOf(1)},
		{Path: "a.txt", Hash: hashOf(2)},
	})
	if err == nil {
		t.Fatalf("expected error for duplicate path")
	}
}

func TestFromEntriesRejectsDuplicateHash(t *testing.T) {
	_, err := FromEntries([]Entry{
		{Path: "a.txt", Hash: hashOf(1)},
		{Path: "b.txt", Hash: hashOf(1)},
	})
	if err == nil {
		t.Fatalf("expected error for duplicate hash")
	}
}

func TestInsertCollisionPrefersLexicographicallySmallerPath(t *testing.T) {
	idx := New()
	idx.Insert("z.txt", hashOf(1))
	idx.Insert("a.txt", hashOf(1))

	if path, ok := idx.PathOf(hashOf(1)); !ok || path != "a.txt" {
		t.Fatalf("expected a.txt to win the hash collision, got %q (ok=%v)", path, ok)
	}
	if idx.Len() != 1 {
		t.Fatalf("expected exactly one entry after collision, got %d", idx.Len())
	}
}

func TestHashedPathIsDeterministicAndOpaque(t *testing.T) {
	a := HashedPath("docs/secret-plans.txt")
	b := HashedPath("docs/secret-plans.txt")
	if a != b {
		t.Fatalf("HashedPath is not deterministic: %q != %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex characters (32-byte BLAKE3 hash), got %d", len(a))
	}
	if a == "docs/secret-plans.txt" {
		t.Fatalf("HashedPath leaked the plaintext path")
	}
}
