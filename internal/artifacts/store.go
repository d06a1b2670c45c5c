// Package artifacts provides a one-way blob sink for captured snapshots:
// given (source_id, bytes), it returns the URI and checksum the core
// persists alongside a snapshot row. The core never reads artifacts back
// through this interface.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
)

// Store persists a captured snapshot and returns its location and
// integrity metadata. Implementations are one-way: nothing in the core
// reads an artifact back through this interface.
type Store interface {
	Save(sourceID string, data []byte) (model.Artifact, error)
}

// FilesystemStore implements Store on the local filesystem, laying
// artifacts out as {baseDir}/{sourceID}/{timestamp}-{checksum prefix}.jpg.
type FilesystemStore struct {
	baseDir string
	mu      sync.Mutex
}

// NewFilesystemStore creates a FilesystemStore rooted at baseDir,
// creating it if it doesn't exist.
func NewFilesystemStore(baseDir string) (*FilesystemStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory cannot be empty")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FilesystemStore{baseDir: baseDir}, nil
}

// Save writes data under sourceID's directory and returns its artifact
// metadata. Thread-safe for concurrent writers across sources.
func (fs *FilesystemStore) Save(sourceID string, data []byte) (model.Artifact, error) {
	if sourceID == "" {
		return model.Artifact{}, fmt.Errorf("source id cannot be empty")
	}
	if filepath.Base(sourceID) != sourceID {
		return model.Artifact{}, fmt.Errorf("source id cannot contain path separators")
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])
	filename := fmt.Sprintf("%d-%s.jpg", time.Now().UnixNano(), checksum[:12])

	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir := filepath.Join(fs.baseDir, sourceID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return model.Artifact{}, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return model.Artifact{}, fmt.Errorf("failed to write artifact: %w", err)
	}

	return model.Artifact{
		URI:         "file://" + path,
		Size:        int64(len(data)),
		ContentType: contentTypeFromData(data),
		Checksum:    checksum,
		ETag:        checksum,
	}, nil
}

// BaseDir returns the store's root directory.
func (fs *FilesystemStore) BaseDir() string {
	return fs.baseDir
}

func contentTypeFromData(data []byte) string {
	if len(data) == 0 {
		return "application/octet-stream"
	}
	ct := http.DetectContentType(data)
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
