package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func testDatabase(t *testing.T, db Database) {
	t.Helper()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := db.Put([]byte("alpha"), []byte("one")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get([]byte("alpha"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "one" {
		t.Fatalf("unexpected value %q", value)
	}

	if err := db.Put([]byte("alpha"), []byte("two")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, err = db.Get([]byte("alpha"))
	if err != nil || string(value) != "two" {
		t.Fatalf("overwrite readback: %q %v", value, err)
	}

	if err := db.Delete([]byte("alpha")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("alpha")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting an absent key is not an error.
	if err := db.Delete([]byte("alpha")); err != nil {
		t.Fatalf("idempotent delete: %v", err)
	}
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	testDatabase(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	value := []byte("original")
	if err := db.Put([]byte("key"), value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 'X'

	stored, err := db.Get([]byte("key"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(stored) != "original" {
		t.Fatalf("stored value aliases caller buffer: %q", stored)
	}
	stored[0] = 'Y'

	again, err := db.Get([]byte("key"))
	if err != nil || string(again) != "original" {
		t.Fatalf("returned value aliases stored buffer: %q %v", again, err)
	}
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	testDatabase(t, db)
}
