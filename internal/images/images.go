// Package images provides storage for uploaded outfit photos.
//
// The core never decodes or validates image content; it stores raw bytes and
// hands opaque references to the response generator.
package images

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DefaultDirPermissions defines the default permissions for image directories.
const DefaultDirPermissions = 0755

// Store persists uploaded image bytes and returns an opaque reference.
type Store interface {
	Save(ctx context.Context, data []byte) (string, error)
}

// LocalStore writes images to a directory on disk.
type LocalStore struct {
	dir string
}

// NewLocalStore creates an image store rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("image directory not set")
	}
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("LocalStore: failed to create image directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	slog.Debug("LocalStore: image directory verified/created", "dir", dir)
	return &LocalStore{dir: dir}, nil
}

// Save writes the raw bytes and returns an opaque "img:<uuid>" reference.
func (s *LocalStore) Save(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty image payload")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	path := filepath.Join(s.dir, id+".bin")
	if err := os.WriteFile(path, data, 0644); err != nil {
		slog.Error("LocalStore.Save: failed to write image", "error", err, "path", path)
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	ref := "img:" + id
	slog.Debug("LocalStore.Save: image stored", "ref", ref, "bytes", len(data))
	return ref, nil
}
