// Package local implements a local filesystem blob store.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the root directory where captures are stored. Keys are
	// mirrored under it as relative paths.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
	// URLPrefix is prepended to keys to form the root-relative URL the
	// service serves files under.
	URLPrefix string `mapstructure:"url_prefix" yaml:"url_prefix"`
}

// Store writes captured images to the local filesystem.
type Store struct {
	baseDir   string
	urlPrefix string
}

// New creates a filesystem-backed store rooted at cfg.BaseDir.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if cfg.URLPrefix == "" {
		cfg.URLPrefix = "/files"
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("create base directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat base directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	return &Store{
		baseDir:   cfg.BaseDir,
		urlPrefix: strings.TrimRight(cfg.URLPrefix, "/"),
	}, nil
}

// Put writes data to a file mirroring the key and returns a root-relative
// URL. Parent directories are created as needed.
func (s *Store) Put(_ context.Context, key string, _ string, data []byte) (string, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return s.urlPrefix + "/" + key, nil
}

// Delete removes the file for key. Deleting a missing key returns false.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("remove file: %w", err)
	}
	return true, nil
}

// resolve joins key under the base dir and rejects path traversal.
func (s *Store) resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(key))
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return fullPath, nil
}
