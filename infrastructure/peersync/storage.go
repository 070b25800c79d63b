package peersync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"duet/application"
	"duet/domain/errkind"
	"duet/domain/index"
	"duet/infrastructure/indexing"
)

// DirStorage implements application.Storage over a plain directory on disk,
// the backup root (or peer_storage_path) named throughout §4.4/§4.9.
type DirStorage struct {
	root string
}

var _ application.Storage = (*DirStorage)(nil)

// NewDirStorage roots storage at dir, creating it if missing.
func NewDirStorage(dir string) (*DirStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", errkind.ErrIo, err)
	}
	return &DirStorage{root: dir}, nil
}

// resolve maps a relative path to its absolute on-disk location, rejecting
// anything that would escape root.
func (s *DirStorage) resolve(relPath string) (string, error) {
	if err := guardPath(relPath); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(relPath)), nil
}

func (s *DirStorage) Open(relPath string) (io.ReadCloser, error) {
	abs, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errkind.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", errkind.ErrIo, err)
	}
	return f, nil
}

func (s *DirStorage) Create(relPath string) (io.WriteCloser, error) {
	abs, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", errkind.ErrIo, err)
	}
	f, err := os.Create(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errkind.ErrIo, err)
	}
	return f, nil
}

func (s *DirStorage) Rename(from, to string) error {
	absFrom, err := s.resolve(from)
	if err != nil {
		return err
	}
	absTo, err := s.resolve(to)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absTo), 0o700); err != nil {
		return fmt.Errorf("%w: %v", errkind.ErrIo, err)
	}
	if err := os.Rename(absFrom, absTo); err != nil {
		return fmt.Errorf("%w: %v", errkind.ErrIo, err)
	}
	return nil
}

func (s *DirStorage) Remove(relPath string) error {
	abs, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", errkind.ErrIo, err)
	}
	return nil
}

func (s *DirStorage) Index(ctx context.Context) (*index.Index, error) {
	return indexing.FromDirectory(s.root)
}

// indexBlobName is the on-disk name of the raw index blob (§6), fixed and
// never derived from a peer-supplied path, so it cannot collide with a
// hash-named content file.
const indexBlobName = "index"

func (s *DirStorage) IndexBlob() (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.root, indexBlobName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errkind.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", errkind.ErrIo, err)
	}
	return f, nil
}

func (s *DirStorage) SetIndexBlob(data []byte) error {
	if err := os.WriteFile(filepath.Join(s.root, indexBlobName), data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", errkind.ErrIo, err)
	}
	return nil
}

// guardPath is guardComponent extended to the multi-segment relative paths
// Storage deals in (backup-relative paths may contain directories; only
// peer-supplied hashed names are single components).
func guardPath(relPath string) error {
	if relPath == "" {
		return errkind.ErrMaliciousFileName
	}
	if filepath.IsAbs(relPath) {
		return errkind.ErrMaliciousFileName
	}
	clean := filepath.ToSlash(filepath.Clean(relPath))
	for _, seg := range strings.Split(clean, "/") {
		if seg == ".." {
			return errkind.ErrMaliciousFileName
		}
	}
	return nil
}
