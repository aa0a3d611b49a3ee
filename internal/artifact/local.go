package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Compile-time check that LocalStore implements Store.
var _ Store = (*LocalStore)(nil)

// LocalStore writes artifacts under a base directory and returns file://
// URLs. Suitable for development and testing; production uses S3Store.
type LocalStore struct {
	baseDir string
}

// NewLocalStore creates a local artifact store rooted at baseDir.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("artifact: create base dir: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// Put writes content to baseDir/key and returns its file URL.
func (s *LocalStore) Put(_ context.Context, key string, content []byte) (string, error) {
	// Keys are slash-separated (job-id/captions/en.srt); keep them inside
	// the base directory.
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", &StorageError{Op: "put", Key: key, Err: os.ErrInvalid}
	}

	path := filepath.Join(s.baseDir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", &StorageError{Op: "put", Key: key, Err: err}
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", &StorageError{Op: "put", Key: key, Err: err}
	}
	return "file://" + filepath.ToSlash(path), nil
}
