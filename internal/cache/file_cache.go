// Package cache stores precomputed teammate relations so repeated solves
// for the same franchise skip the history scan.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/rotation-optimizer/internal/teammates"
)

// FileCache keeps one blob file per key under a directory
type FileCache struct {
	dir    string
	logger *logrus.Logger
}

// NewFileCache creates a file cache rooted at dir, creating it if needed
func NewFileCache(dir string, logger *logrus.Logger) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &FileCache{dir: dir, logger: logger}, nil
}

func (c *FileCache) path(key string) string {
	name := strings.NewReplacer(":", "_", "/", "_", string(filepath.Separator), "_").Replace(key)
	return filepath.Join(c.dir, name+".rel")
}

// Load reads a relation. A missing file is a miss, not an error.
func (c *FileCache) Load(ctx context.Context, key string) (*teammates.Relation, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read relation from cache: %w", err)
	}

	rel := teammates.NewRelation()
	if err := rel.UnmarshalBinary(data); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached relation: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key": key,
		"pairs":     rel.Len(),
	}).Debug("Retrieved relation from file cache")
	return rel, true, nil
}

// Store writes the relation through a temp file so readers never see a
// partial blob
func (c *FileCache) Store(ctx context.Context, key string, rel *teammates.Relation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := rel.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode relation: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".rel-*")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		return fmt.Errorf("failed to commit cache file: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key": key,
		"pairs":     rel.Len(),
	}).Debug("Cached relation to file")
	return nil
}

// Delete removes a cached relation; deleting a missing key is not an error
func (c *FileCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(c.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cached relation: %w", err)
	}
	return nil
}
