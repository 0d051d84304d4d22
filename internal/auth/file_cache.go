package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go-damage-sync/pkg/models"
)

// FileTokenCache persists the auth token as a JSON file. It is the local
// durable storage analog for single-process deployments.
type FileTokenCache struct {
	path string
}

func NewFileTokenCache(path string) *FileTokenCache {
	return &FileTokenCache{path: path}
}

func (c *FileTokenCache) Load() (*models.AuthToken, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read token cache: %w", err)
	}
	var token models.AuthToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode token cache: %w", err)
	}
	if token.Value == "" {
		return nil, fmt.Errorf("token cache is empty")
	}
	return &token, nil
}

func (c *FileTokenCache) Store(token models.AuthToken) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("create token cache dir: %w", err)
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	return nil
}
