package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// localStorage is a filesystem BlobStore for development and tests. URLs
// are file:// paths; nothing resolves them remotely.
type localStorage struct {
	root string
}

func NewLocalStorage(root string) (BlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &localStorage{root: root}, nil
}

func (s *localStorage) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob %s: %w", path, err)
	}
	return "file://" + filepath.ToSlash(full), nil
}

func (s *localStorage) Download(ctx context.Context, path string) ([]byte, error) {
	full := filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(path, "/")))
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", path, err)
	}
	return data, nil
}
