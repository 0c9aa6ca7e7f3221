package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// EmbedderInfoInput describes the currently configured embedder so
// GetIndexInfo can flag a dimension/model mismatch against what the index
// was built with.
type EmbedderInfoInput struct {
	Model      string
	Backend    string
	Dimensions int
}

// hashProjectID mirrors the project-ID derivation used when an index is
// created: SHA256 of the absolute project root, truncated to 16 hex chars.
func hashProjectID(absPath string) string {
	h := sha256.Sum256([]byte(absPath))
	return hex.EncodeToString(h[:])[:16]
}

// GetIndexInfo gathers the data backing `codescope index info`: stored
// embedding configuration, chunk/file counts, on-disk sizes of each index
// component, and (when current is non-nil) a compatibility check against
// the embedder that would be used for a fresh index.
func GetIndexInfo(ctx context.Context, metadata MetadataStore, dataDir string, current *EmbedderInfoInput) (*IndexInfo, error) {
	projectRoot := filepath.Dir(dataDir)
	projectID := hashProjectID(projectRoot)

	project, err := metadata.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	info := &IndexInfo{
		Location:    dataDir,
		ProjectRoot: projectRoot,
	}
	if project != nil {
		info.ChunkCount = project.ChunkCount
		info.DocumentCount = project.FileCount
		info.CreatedAt = project.IndexedAt
		info.UpdatedAt = project.IndexedAt
	}

	model, err := metadata.GetState(ctx, StateKeyIndexModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load index model: %w", err)
	}
	dimStr, err := metadata.GetState(ctx, StateKeyIndexDimension)
	if err != nil {
		return nil, fmt.Errorf("failed to load index dimensions: %w", err)
	}

	info.IndexModel = model
	if model != "" {
		info.IndexBackend = inferBackendFromModel(model)
	}
	if dims, err := strconv.Atoi(dimStr); err == nil {
		info.IndexDimensions = dims
	}

	info.BM25SizeBytes = bm25IndexSize(dataDir)
	info.VectorSizeBytes = getDirSize(filepath.Join(dataDir, "vectors.hnsw"))
	info.IndexSizeBytes = getDirSize(filepath.Join(dataDir, "metadata.db")) + info.BM25SizeBytes + info.VectorSizeBytes

	if current != nil {
		info.CurrentModel = current.Model
		info.CurrentBackend = current.Backend
		info.CurrentDimensions = current.Dimensions
		info.Compatible = info.IndexDimensions == 0 || info.IndexDimensions == current.Dimensions
	}

	return info, nil
}

// bm25IndexSize reports the on-disk size of whichever BM25 backend is
// actually present (SQLite FTS5 file, or legacy Bleve/BoltDB directory).
func bm25IndexSize(dataDir string) int64 {
	basePath := filepath.Join(dataDir, "bm25")
	switch DetectBM25Backend(basePath) {
	case BM25BackendSQLite:
		return getDirSize(basePath + ".db")
	case BM25BackendBleve:
		return getDirSize(basePath + ".bleve")
	default:
		return 0
	}
}

// inferBackendFromModel guesses which embedder backend produced a stored
// model name, for indexes that predate explicit backend tracking.
func inferBackendFromModel(model string) string {
	if strings.HasPrefix(model, "static") {
		return "static"
	}
	if strings.HasPrefix(model, "/") || containsAny(model, []string{"mlx-community/", "mlx-"}) {
		return "mlx"
	}
	return "ollama"
}

// containsAny reports whether s contains any of substrings.
func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// FormatBytes renders a byte count as a human-readable size, e.g. "1.5 KB".
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// FormatTime renders a timestamp for display, or "unknown" for the zero value.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02 15:04:05")
}

// getDirSize returns the total size in bytes of path: its own size if it is
// a file, or the recursive sum of file sizes if it is a directory. A
// nonexistent path reports 0 rather than an error, since callers use this
// for best-effort "how big is this index" reporting.
func getDirSize(path string) int64 {
	var size int64
	_ = filepath.Walk(path, func(_ string, fi os.FileInfo, err error) error {
		if err != nil || fi == nil {
			return nil
		}
		if !fi.IsDir() {
			size += fi.Size()
		}
		return nil
	})
	return size
}
