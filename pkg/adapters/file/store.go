package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loom/pkg/domain"
)

// Store implements ports.SnapshotStore using the local filesystem.
// It stores sessions as JSON files in a configured directory.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".loom/sessions".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".loom", "sessions")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.BasePath, sessionID+".json")
}

// Save persists the snapshot to a JSON file atomically.
// It writes to a temporary file first, syncs it, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, sessionID string, snap domain.Snapshot) error {
	if sessionID == "" {
		return domain.ErrEmptySessionID
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure session directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// same directory, so the rename stays on one filesystem
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+sessionID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	destPath := s.path(sessionID)
	// Windows refuses to rename over an existing file
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing session file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to session file: %w", err)
	}
	return nil
}

// Load retrieves the snapshot from its JSON file.
func (s *Store) Load(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	if sessionID == "" {
		return domain.Snapshot{}, domain.ErrEmptySessionID
	}

	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Snapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("failed to read session file: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Delete removes the session file.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return domain.ErrEmptySessionID
	}

	err := os.Remove(s.path(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// List returns the IDs of all session files, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		sessions = append(sessions, name[:len(name)-len(".json")])
	}
	sort.Strings(sessions)
	return sessions, nil
}
