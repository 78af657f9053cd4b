package store

import (
	"crypto/sha1" //nolint:gosec // Asset names are sha1 digests; this is naming, not security.
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nao1215/imgrescue/internal/model"
)

// ErrNotDirectory is returned when the store path exists but is a file.
var ErrNotDirectory = errors.New("store path is not a directory")

// Store writes payloads under content-derived names.
//
// A payload is identified by its sha1 alone. The extension is chosen once,
// by whichever persist first writes the hash; later persists of the same
// bytes reuse that file even when their content type or URL would suggest
// another extension, so identical bytes never occupy two files.
//
// Store is safe for concurrent use. Persists of different hashes run in
// parallel; persists of the same hash are serialized.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	written atomic.Int64
	reused  atomic.Int64
}

// Open prepares a store rooted at dir, creating it if needed, and checks
// that files can be created inside it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat store directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	scratch, err := os.CreateTemp(dir, ".scratch-*")
	if err != nil {
		return nil, fmt.Errorf("store directory is not writable: %w", err)
	}
	name := scratch.Name()
	_ = scratch.Close()
	_ = os.Remove(name)

	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Digest returns the lowercase hex sha1 of data.
func Digest(data []byte) string {
	sum := sha1.Sum(data) //nolint:gosec // See import.
	return hex.EncodeToString(sum[:])
}

// Persist stores data under "<sha1><ext>" unless a file for that sha1
// already exists, with any extension. The returned asset names the file
// that holds the bytes; written reports whether this call created it.
func (s *Store) Persist(data []byte, contentType, urlHint string) (model.Asset, bool, error) {
	asset := model.Asset{
		Hash: Digest(data),
		Size: int64(len(data)),
	}

	unlock := s.lock(asset.Hash)
	defer unlock()

	ext, found, err := s.existing(asset.Hash)
	if err != nil {
		return asset, false, err
	}
	if found {
		asset.Extension = ext
		asset.Path = filepath.Join(s.dir, asset.Filename())
		s.reused.Add(1)
		return asset, false, nil
	}

	asset.Extension = InferExtension(contentType, urlHint)
	asset.Path = filepath.Join(s.dir, asset.Filename())
	if err := writeAtomic(s.dir, asset.Path, data); err != nil {
		return asset, false, err
	}
	s.written.Add(1)
	return asset, true, nil
}

// lock serializes persists of one hash.
func (s *Store) lock(hash string) func() {
	s.mu.Lock()
	l, ok := s.locks[hash]
	if !ok {
		l = &sync.Mutex{}
		s.locks[hash] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// existing returns the extension of the stored file for hash, if any.
func (s *Store) existing(hash string) (string, bool, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, hash+".*"))
	if err != nil {
		return "", false, fmt.Errorf("failed to look up %s: %w", hash, err)
	}
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		return strings.TrimPrefix(filepath.Base(m), hash), true, nil
	}
	return "", false, nil
}

// Has reports whether the named asset file exists in the store.
func (s *Store) Has(filename string) bool {
	if filename == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(s.dir, filename))
	return err == nil && info.Mode().IsRegular()
}

// Written returns the number of files created by this Store.
func (s *Store) Written() int {
	return int(s.written.Load())
}

// Reused returns the number of persists that found the file present.
func (s *Store) Reused() int {
	return int(s.reused.Load())
}

// writeAtomic writes data to a temp file in dir and renames it to target.
func writeAtomic(dir, target string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil { //nolint:gosec // Assets are meant to be served.
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move asset into place: %w", err)
	}
	return nil
}
