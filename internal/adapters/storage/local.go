package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jobrunner/stacsync/internal/domain"
)

// LocalBackend stores catalog documents on the local filesystem.
// It accepts plain paths and file:// URIs.
type LocalBackend struct{}

// NewLocalBackend creates a new local storage backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{}
}

// Read implements output.StorageBackend.
func (b *LocalBackend) Read(_ context.Context, uri string) ([]byte, error) {
	path := b.FullPath(uri)
	data, err := os.ReadFile(path) //#nosec G304 -- catalog paths come from configuration
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrObjectNotFound)
		}
		return nil, err
	}
	return data, nil
}

// Write implements output.StorageBackend. Parent directories are created.
func (b *LocalBackend) Write(_ context.Context, uri string, data []byte) error {
	path := b.FullPath(uri)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644) //#nosec G306 -- catalog documents are published
}

// FullPath returns the filesystem path for a URI.
func (b *LocalBackend) FullPath(uri string) string {
	return filepath.FromSlash(strings.TrimPrefix(uri, "file://"))
}
