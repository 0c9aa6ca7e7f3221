package merkle

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// stateVersion is bumped if the on-disk shape of State changes.
const stateVersion = 1

// State is the JSON-serializable snapshot written to merkle-tree.json.
type State struct {
	Version int                  `json:"version"`
	Root    string               `json:"root"`
	Files   map[string]FileEntry `json:"files"`
}

// Snapshot returns the tree's current state in the shape Save persists.
func (t *Tree) Snapshot() State {
	files := t.Files()
	return State{Version: stateVersion, Root: rootHashOf(files), Files: files}
}

// Save atomically writes the tree's current state to path: the new
// content is written to a temp file in the same directory and then
// renamed over path, so a crash mid-write never leaves a truncated file.
func (t *Tree) Save(path string) error {
	data, err := json.MarshalIndent(t.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal merkle state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create merkle dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".merkle-tree-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp merkle file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp merkle file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp merkle file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp merkle file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename merkle file: %w", err)
	}
	return nil
}

// Load reads a Merkle tree previously written by Save. A missing file
// yields an empty tree (first-ever index has nothing to diff against). A
// corrupt file is backed up to "<path>.bak" and an empty tree is
// returned, matching the fingerprints-store recovery policy: the next
// indexing run repopulates it from scratch.
func Load(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read merkle file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		backupCorruptFile(path, data)
		slog.Warn("merkle-tree.json corrupt, starting from empty tree",
			slog.String("path", path), slog.String("error", err.Error()))
		return New(), nil
	}

	tree := New()
	for p, entry := range state.Files {
		tree.SetFile(p, entry.ChunkHashes)
	}
	return tree, nil
}

func backupCorruptFile(path string, data []byte) {
	bakPath := path + ".bak"
	if err := os.WriteFile(bakPath, data, 0o644); err != nil {
		slog.Warn("failed to back up corrupt merkle-tree.json",
			slog.String("path", bakPath), slog.String("error", err.Error()))
	}
}
