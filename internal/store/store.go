package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"upkeeper/internal/logger"
)

/**
 * Store persists one JSON file per entity under a supervisor-specific directory
 * @description
 * - File name is <id>.json inside the store directory
 * - Writes go through a temp file plus rename so a crash mid-write never
 *   leaves a truncated record behind
 * - Load on startup lets supervised state survive an engine restart
 */
type Store[T any] struct {
	dir string
}

// New creates a store rooted at dir, creating the directory if needed.
func New[T any](dir string) (*Store[T], error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}
	return &Store[T]{dir: dir}, nil
}

func (s *Store[T]) Dir() string {
	return s.dir
}

func (s *Store[T]) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Put writes the entity record, replacing any previous one.
func (s *Store[T]) Put(id string, entity *T) error {
	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize entity %s: %w", id, err)
	}
	tmp := s.path(id) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write entity file: %w", err)
	}
	if err := os.Rename(tmp, s.path(id)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit entity file: %w", err)
	}
	return nil
}

// Get reads one entity record. os.ErrNotExist is returned untouched so
// callers can distinguish absence from corruption.
func (s *Store[T]) Get(id string) (*T, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, err
	}
	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("failed to parse entity file %s: %w", s.path(id), err)
	}
	return &entity, nil
}

// Delete removes the record. Deleting an absent record is not an error.
func (s *Store[T]) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete entity file: %w", err)
	}
	return nil
}

/**
 * Load reads every persisted entity from the store directory
 * @returns {map} Entities keyed by id
 * @description
 * - Skips directories and files that fail to parse, logging each skip;
 *   a single corrupt record must not block recovery of the others
 */
func (s *Store[T]) Load() map[string]*T {
	out := make(map[string]*T)
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Errorf("Failed to read state directory %s: %v", s.dir, err)
		}
		return out
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(f.Name(), ".json")
		entity, err := s.Get(id)
		if err != nil {
			logger.Warnf("Skipping unreadable state file %s: %v", f.Name(), err)
			continue
		}
		out[id] = entity
	}
	return out
}
