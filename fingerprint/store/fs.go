// Package store provides persistent backends for the fingerprint cache:
// a filesystem store (one compressed file per fingerprint) and a sqlite
// store for deployments that already carry a database.
package store

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RyanBlaney/sonido-mixgraph/fingerprint"
)

// FSStore caches fingerprints as gzip-compressed JSON files, one per cache
// key. Writes go through a temp file and rename, so concurrent writers of
// the same key leave a complete file behind (last writer wins).
type FSStore struct {
	dir string
}

// NewFSStore creates a filesystem-backed fingerprint store rooted at dir
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating cache dir: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.dir, key+".json.gz")
}

// Load reads a cached fingerprint. A missing entry is (nil, false, nil).
func (s *FSStore) Load(key string) (*fingerprint.Fingerprint, bool, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: opening cache entry: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, false, fmt.Errorf("store: reading cache entry %s: %w", key, err)
	}
	defer gz.Close()

	var fp fingerprint.Fingerprint
	if err := json.NewDecoder(gz).Decode(&fp); err != nil {
		return nil, false, fmt.Errorf("store: decoding cache entry %s: %w", key, err)
	}

	return &fp, true, nil
}

// Save writes a fingerprint to the cache
func (s *FSStore) Save(key string, fp *fingerprint.Fingerprint) error {
	tmp, err := os.CreateTemp(s.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: creating temp file: %w", err)
	}

	gz := gzip.NewWriter(tmp)
	if err := json.NewEncoder(gz).Encode(fp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: encoding fingerprint: %w", err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: flushing fingerprint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: committing cache entry: %w", err)
	}

	return nil
}
