package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"aicv-backend/internal/shared/storage/object"
)

// Store implements ObjectStore using the local filesystem. Files are expected
// to be served statically under publicBaseURL.
type Store struct {
	baseDir       string
	publicBaseURL string
}

// New creates a new local object store rooted at baseDir.
func New(baseDir, publicBaseURL string) *Store {
	return &Store{baseDir: baseDir, publicBaseURL: publicBaseURL}
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.baseDir
}

// Put writes the reader to disk at the given key.
func (s *Store) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (object.Object, error) {
	if err := ctx.Err(); err != nil {
		return object.Object{}, err
	}

	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return object.Object{}, fmt.Errorf("invalid storage key")
	}

	fullPath := filepath.Join(s.baseDir, clean)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return object.Object{}, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return object.Object{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, r)
	if err != nil {
		return object.Object{}, fmt.Errorf("write body: %w", err)
	}
	if size >= 0 && written != size {
		return object.Object{}, fmt.Errorf("short write: %d of %d bytes", written, size)
	}

	return object.Object{
		Key:         filepath.ToSlash(clean),
		URL:         object.JoinURL(s.publicBaseURL, filepath.ToSlash(clean)),
		ContentType: contentType,
		Size:        written,
	}, nil
}

var _ object.ObjectStore = (*Store)(nil)
