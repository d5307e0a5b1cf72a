// Package storage provides the object store that holds uploaded bill files
// verbatim. The core only needs byte retrieval and a durable pointer; the
// local filesystem implementation stands in for any provider.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StoredObject is the durable pointer returned after an upload.
type StoredObject struct {
	URL  string `json:"url"`
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// ObjectStore persists and retrieves uploaded bill files.
type ObjectStore interface {
	Put(ctx context.Context, key string, content []byte, contentType string) (*StoredObject, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// BillKey builds a per-store object key for an uploaded bill file. The UUID
// prefix keeps repeated uploads of the same file name distinct.
func BillKey(storeID, fileName string) string {
	return fmt.Sprintf("bills/%s/%s-%s", storeID, uuid.NewString(), sanitizeFileName(fileName))
}

// sanitizeFileName strips path separators and traversal characters from a
// user-supplied file name.
func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	replacer := strings.NewReplacer("..", "", "/", "_", "\\", "_", " ", "_")
	cleaned := replacer.Replace(name)
	if cleaned == "" || cleaned == "." {
		return "upload"
	}
	return cleaned
}

// LocalObjectStore implements ObjectStore on the local filesystem.
type LocalObjectStore struct {
	baseDir string
	baseURL string
	logger  *zap.Logger
}

// NewLocalObjectStore creates an object store rooted at baseDir. baseURL is
// prepended to keys to build the public file URL.
func NewLocalObjectStore(baseDir, baseURL string, logger *zap.Logger) *LocalObjectStore {
	return &LocalObjectStore{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Put writes the object and returns its durable pointer. Uploaded files are
// never mutated afterwards.
func (s *LocalObjectStore) Put(ctx context.Context, key string, content []byte, contentType string) (*StoredObject, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		s.logger.Error("Failed to create object directory",
			zap.String("key", key),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create object directory: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		s.logger.Error("Failed to write object",
			zap.String("key", key),
			zap.Error(err))
		return nil, fmt.Errorf("failed to write object: %w", err)
	}

	s.logger.Debug("Object stored",
		zap.String("key", key),
		zap.Int("size", len(content)),
		zap.String("content_type", contentType))

	return &StoredObject{
		URL:  s.baseURL + "/" + key,
		Key:  key,
		Size: int64(len(content)),
	}, nil
}

// Get reads the object bytes for a key.
func (s *LocalObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return content, nil
}

// resolve maps a key to a path under baseDir, rejecting traversal outside
// the base.
func (s *LocalObjectStore) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid object key: %s", key)
	}
	return filepath.Join(s.baseDir, cleaned), nil
}
