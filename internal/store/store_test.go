package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type record struct {
	Name string `json:"name"`
	Port int    `json:"port"`
}

/**
 * Test basic put/get/delete round trip
 * @param {*testing.T} t - Testing framework instance
 */
func TestStoreCRUD(t *testing.T) {
	s, err := New[record](filepath.Join(t.TempDir(), "records"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	want := &record{Name: "web", Port: 8080}
	if err := s.Put("r-1", want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get("r-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != want.Name || got.Port != want.Port {
		t.Errorf("Got %+v, want %+v", got, want)
	}

	if err := s.Delete("r-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get("r-1"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Get after delete should return os.ErrNotExist, got %v", err)
	}
}

/**
 * Test that deleting an absent record is not an error
 * @param {*testing.T} t - Testing framework instance
 */
func TestStoreDeleteAbsent(t *testing.T) {
	s, err := New[record](t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := s.Delete("missing"); err != nil {
		t.Errorf("Delete of absent record should succeed, got %v", err)
	}
}

/**
 * Test that Put replaces an existing record
 * @param {*testing.T} t - Testing framework instance
 */
func TestStorePutReplaces(t *testing.T) {
	s, err := New[record](t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := s.Put("r-1", &record{Name: "old", Port: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put("r-1", &record{Name: "new", Port: 2}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get("r-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "new" || got.Port != 2 {
		t.Errorf("Expected replaced record, got %+v", got)
	}
}

/**
 * Test that Load recovers valid records and skips corrupt ones
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - Writes two valid records and one corrupt JSON file
 * - Load must return only the valid records
 */
func TestStoreLoadSkipsCorrupt(t *testing.T) {
	dir := t.TempDir()
	s, err := New[record](dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := s.Put("a", &record{Name: "a", Port: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put("b", &record{Name: "b", Port: 2}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	loaded := s.Load()
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(loaded))
	}
	if loaded["a"] == nil || loaded["b"] == nil {
		t.Errorf("Expected records a and b, got %v", loaded)
	}
	if _, ok := loaded["broken"]; ok {
		t.Error("Corrupt record should be skipped")
	}
}

/**
 * Test that no temp file survives a completed Put
 * @param {*testing.T} t - Testing framework instance
 */
func TestStorePutLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New[record](dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := s.Put("r-1", &record{Name: "web", Port: 80}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("Temp file %s left behind", e.Name())
		}
	}
}
