package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/yungbote/dicomweb-backend/internal/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	store := NewStore(filepath.Join(t.TempDir(), "data"), log)
	if err := store.EnsureRoot(); err != nil {
		t.Fatalf("EnsureRoot failed: %v", err)
	}
	return store
}

func TestWriteReadObject(t *testing.T) {
	store := newTestStore(t)
	payload := []byte{0x01, 0x02, 0x03}

	if err := store.WriteObject("token-1", payload); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if !store.Exists("token-1") {
		t.Fatalf("Exists is false after write")
	}

	got, err := store.ReadObject("token-1")
	if err != nil {
		t.Fatalf("ReadObject failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %v", got)
	}
}

func TestWriteObjectOverwrites(t *testing.T) {
	store := newTestStore(t)

	if err := store.WriteObject("token-1", []byte("old")); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := store.WriteObject("token-1", []byte("new")); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	got, err := store.ReadObject("token-1")
	if err != nil {
		t.Fatalf("ReadObject failed: %v", err)
	}
	if string(got) != "new" {
		t.Fatalf("expected overwritten payload, got %q", got)
	}
}

func TestObjectPathLayout(t *testing.T) {
	store := newTestStore(t)
	path := store.ObjectPath("abc")
	if filepath.Base(path) != PayloadFileName {
		t.Fatalf("payload file name: got %q", filepath.Base(path))
	}
	if filepath.Base(filepath.Dir(path)) != "abc" {
		t.Fatalf("token directory: got %q", filepath.Dir(path))
	}
}

func TestRemoveObject(t *testing.T) {
	store := newTestStore(t)

	if err := store.WriteObject("token-1", []byte("x")); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if err := store.RemoveObject("token-1"); err != nil {
		t.Fatalf("RemoveObject failed: %v", err)
	}
	if store.Exists("token-1") {
		t.Fatalf("object still present after remove")
	}
	if _, err := os.Stat(filepath.Dir(store.ObjectPath("token-1"))); err == nil {
		t.Fatalf("token directory still present after remove")
	}

	// Removing an unknown token is not an error.
	if err := store.RemoveObject("never-written"); err != nil {
		t.Fatalf("RemoveObject of missing token failed: %v", err)
	}
}
