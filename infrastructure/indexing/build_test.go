package indexing

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestFromDirectorySkipsEmptyDirsAndSymlinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "a.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported on this platform: %v", err)
	}

	idx, err := FromDirectory(root)
	if err != nil {
		t.Fatalf("FromDirectory: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("expected exactly 1 entry (a.txt), got %d: %+v", idx.Len(), idx.Entries())
	}
	if _, ok := idx.HashOf("a.txt"); !ok {
		t.Fatalf("expected a.txt in index")
	}
}

func TestFromDirectoryIsPureFunctionOfTreeContents(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/a.txt", "alpha")
	writeFile(t, root, "docs/b.txt", "beta")

	first, err := FromDirectory(root)
	if err != nil {
		t.Fatalf("FromDirectory: %v", err)
	}
	second, err := FromDirectory(root)
	if err != nil {
		t.Fatalf("FromDirectory: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("two calls to FromDirectory on a stable tree produced different indexes")
	}
}

func TestFromDirectoryUsesRelativeSlashPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "nested/dir/file.txt", "contents")

	idx, err := FromDirectory(root)
	if err != nil {
		t.Fatalf("FromDirectory: %v", err)
	}
	if _, ok := idx.HashOf("nested/dir/file.txt"); !ok {
		t.Fatalf("expected slash-separated relative path in index, got entries: %+v", idx.Entries())
	}
}
