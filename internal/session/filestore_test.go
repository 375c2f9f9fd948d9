package session

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.bin")
	store, err := NewFileStore(path, testKey(1))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	want := Credentials{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: %+v != %+v", got, want)
	}
}

func TestFileStoreEncryptsAtRest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.bin")
	store, err := NewFileStore(path, testKey(1))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := store.Save(Credentials{AccessToken: "super-secret-token"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if bytes.Contains(raw, []byte("super-secret-token")) {
		t.Fatalf("token stored in plaintext")
	}
}

func TestFileStoreWrongKeyReadsAsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.bin")
	store, err := NewFileStore(path, testKey(1))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := store.Save(Credentials{AccessToken: "at"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	other, err := NewFileStore(path, testKey(2))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if _, err := other.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials under rotated key, got %v", err)
	}
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "absent.bin"), testKey(1))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestFileStoreClearIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.bin")
	store, err := NewFileStore(path, testKey(1))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := store.Save(Credentials{AccessToken: "at"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials after clear, got %v", err)
	}
}

func TestFileStoreRejectsShortKey(t *testing.T) {
	if _, err := NewFileStore("x", []byte("short")); err == nil {
		t.Fatalf("expected key length error")
	}
}
