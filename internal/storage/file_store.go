package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var _ Store = (*FileStore)(nil)

// FileStore хранит каждый документ в отдельном JSON-файле.
// Ключ "a:b:c" соответствует файлу <root>/a/b/c.json.
type FileStore struct {
	root   string
	logger *zap.Logger
}

// NewFileStore создает файловое хранилище с корнем в dir.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: data dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: create data dir %s: %w", dir, err)
	}
	return &FileStore{root: dir, logger: logger.Named("FileStore")}, nil
}

func (s *FileStore) path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	segments := strings.Split(key, keySeparator)
	return filepath.Join(s.root, filepath.Join(segments...)+".json"), nil
}

func (s *FileStore) Read(_ context.Context, key string, dst any) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		s.logger.Error("Failed to read document", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Error("Failed to decode document", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Write записывает документ во временный файл и атомарно переименовывает его.
func (s *FileStore) Write(_ context.Context, key string, value any) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(p)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		cleanup()
		s.logger.Error("Failed to replace document", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
