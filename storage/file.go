package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/docvault/docvault/interfaces"
)

// FileBackend implements a storage backend using the local file system,
// for development and tests. The locator returned by Put is the
// content-derived file name.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a file storage backend rooted at baseDir.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, "documents"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create documents directory: %w", err)
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Put writes content to a content-derived path and returns the file name
// as locator. Tags are written to a sidecar JSON file, best effort.
func (b *FileBackend) Put(ctx context.Context, data []byte, tags map[string]string) (string, error) {
	locator := interfaces.ComputeID(data).String()
	filePath := b.filePath(locator)

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if len(tags) > 0 {
		if encoded, err := json.Marshal(tags); err == nil {
			if err := os.WriteFile(filePath+".tags", encoded, 0644); err != nil {
				b.log.Debug("Failed to write tags sidecar", "err", err)
			}
		}
	}

	b.log.Debug("Stored content in file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return locator, nil
}

// Get reads content by file-name locator.
// Returns ErrContentNotFound if the file doesn't exist.
func (b *FileBackend) Get(ctx context.Context, locator string) ([]byte, error) {
	// Locators are hex digests; refuse anything that could escape baseDir.
	if strings.ContainsAny(locator, "/\\") || strings.Contains(locator, "..") {
		return nil, interfaces.ErrContentNotFound
	}

	filePath := b.filePath(locator)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, interfaces.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	b.log.Debug("Fetched content from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return data, nil
}

// PublicURL derives a file URL for a locator. No I/O.
func (b *FileBackend) PublicURL(locator string) string {
	return fmt.Sprintf("file://%s", b.filePath(locator))
}

// Available checks if the base directory exists.
func (b *FileBackend) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// Scheme returns the locator scheme this backend serves.
func (b *FileBackend) Scheme() string {
	return "file"
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

func (b *FileBackend) filePath(locator string) string {
	return filepath.Join(b.baseDir, "documents", locator)
}
