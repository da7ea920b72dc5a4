package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type fileStore struct {
	path string
}

func NewFileStore(path string) Store {
	return &fileStore{path: path}
}

func (f *fileStore) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStateNotFound
		}

		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	return data, nil
}

func (f *fileStore) Save(_ context.Context, data []byte) error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create registry directory: %w", err)
		}
	}

	// Write then rename so readers never observe a partial registry.
	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}

	return os.Rename(tempPath, f.path)
}

func (f *fileStore) Teardown(_ context.Context) error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove registry file: %w", err)
	}

	return nil
}
