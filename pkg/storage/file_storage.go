package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStorage persists each key as a JSON file under a data directory.
// Writes go through a temp file and rename so a crash mid-write never leaves
// a half-written file behind.
type FileStorage struct {
	dataDir string
}

func NewFileStorage(dataDir string) (*FileStorage, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStorage{dataDir: dataDir}, nil
}

func (fs *FileStorage) Save(ctx context.Context, key string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	path := fs.filePath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func (fs *FileStorage) Load(ctx context.Context, key string, dest interface{}) error {
	data, err := os.ReadFile(fs.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("load %q: %w", key, ErrNotFound)
		}
		return fmt.Errorf("failed to read %q: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal %q: %w", key, err)
	}
	return nil
}

func (fs *FileStorage) Delete(ctx context.Context, key string) error {
	err := os.Remove(fs.filePath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

func (fs *FileStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(fs.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// filePath maps a key to a file name, replacing separators that would escape
// the data directory.
func (fs *FileStorage) filePath(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(key)
	return filepath.Join(fs.dataDir, safe+".json")
}
