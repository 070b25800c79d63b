// Package indexing builds a domain/index.Index from a backup directory tree,
// hashing file contents with BLAKE3. Hashing runs in parallel across files,
// each file streamed through a 64 KiB buffer so memory use does not scale
// with file size.
package indexing

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"lukechampine.com/blake3"

	"duet/domain/index"
)

// streamBufferSize matches the frame-crypto plaintext chunk size (§4.3),
// keeping one buffer-size convention across the codebase.
const streamBufferSize = 64 * 1024

// FromDirectory walks root and returns an Index of every regular file found,
// keyed by its path relative to root. Directories, symbolic links, and empty
// directories are skipped, matching §4.4.
func FromDirectory(root string) (*index.Index, error) {
	paths, err := collectFilePaths(root)
	if err != nil {
		return nil, fmt.Errorf("walk backup root %q: %w", root, err)
	}

	type result struct {
		path string
		hash index.ContentHash
		err  error
	}

	jobs := make(chan string)
	results := make(chan result)

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for relPath := range jobs {
				hash, hashErr := hashFile(filepath.Join(root, relPath))
				results <- result{path: relPath, hash: hash, err: hashErr}
			}
		}()
	}

	go func() {
		for _, p := range paths {
			jobs <- p
		}
		close(jobs)
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	idx := index.New()
	for r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("hash %q: %w", r.path, r.err)
		}
		idx.Insert(r.path, r.hash)
	}
	return idx, nil
}

func collectFilePaths(root string) ([]string, error) {
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 || !info.Mode().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	return paths, err
}

// hashFile streams the file through BLAKE3 in fixed-size chunks, never
// holding more than streamBufferSize bytes in memory regardless of file
// size.
func hashFile(path string) (index.ContentHash, error) {
	f, err := os.Open(path)
	if err != nil {
		return index.ContentHash{}, err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	buf := make([]byte, streamBufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return index.ContentHash{}, err
	}

	var out index.ContentHash
	copy(out[:], h.Sum(nil))
	return out, nil
}
