// Package storage owns the on-disk object layout: one directory per stored
// instance, named by an opaque token, holding the binary payload.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yungbote/dicomweb-backend/internal/logger"
)

// PayloadFileName is the fixed name of the binary payload inside each
// per-instance directory.
const PayloadFileName = "image.dcm"

// Store reads and writes instance payloads under a single root directory.
type Store struct {
	root string
	log  *logger.Logger
}

// NewStore returns a store rooted at dir.
func NewStore(dir string, log *logger.Logger) *Store {
	return &Store{root: dir, log: log.With("component", "storage")}
}

// EnsureRoot creates the root directory if it does not exist.
func (s *Store) EnsureRoot() error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("creating storage root %s: %w", s.root, err)
	}
	return nil
}

// ObjectPath returns the payload path for a storage token.
func (s *Store) ObjectPath(token string) string {
	return filepath.Join(s.root, token, PayloadFileName)
}

// WriteObject persists the payload for a token. Creating the directory is
// idempotent: re-ingest of an existing object overwrites in place.
func (s *Store) WriteObject(token string, data []byte) error {
	dir := filepath.Join(s.root, token)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating object directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, PayloadFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing object %s: %w", path, err)
	}
	return nil
}

// ReadObject loads the payload for a token.
func (s *Store) ReadObject(token string) ([]byte, error) {
	data, err := os.ReadFile(s.ObjectPath(token))
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", token, err)
	}
	return data, nil
}

// Exists reports whether a payload is present for a token.
func (s *Store) Exists(token string) bool {
	_, err := os.Stat(s.ObjectPath(token))
	return err == nil
}

// RemoveObject deletes the directory for a token. Used to undo a file write
// after a failed metadata commit; the caller treats failure as best-effort,
// so a missing directory is not an error.
func (s *Store) RemoveObject(token string) error {
	err := os.RemoveAll(filepath.Join(s.root, token))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("Failed to remove stored object", "token", token, "error", err)
		return err
	}
	return nil
}
