package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore implements ObjectStore on a local directory: one
// subdirectory per bucket, keys map to relative paths.
type FilesystemStore struct {
	basePath string
}

// NewFilesystemStore creates the base directory if needed
func NewFilesystemStore(basePath string) (*FilesystemStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path is required for filesystem storage")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FilesystemStore{basePath: basePath}, nil
}

func (f *FilesystemStore) objectPath(bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", fmt.Errorf("bucket and key are required")
	}
	p := filepath.Join(f.basePath, bucket, filepath.FromSlash(key))
	root := filepath.Join(f.basePath, bucket) + string(filepath.Separator)
	if !strings.HasPrefix(p, root) {
		return "", fmt.Errorf("key %q escapes bucket %q", key, bucket)
	}
	return p, nil
}

// Exists walks the bucket looking for a key with the prefix
func (f *FilesystemStore) Exists(ctx context.Context, bucket, keyPrefix string) (bool, error) {
	root := filepath.Join(f.basePath, bucket)
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	found := false
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if strings.HasPrefix(filepath.ToSlash(rel), keyPrefix) {
			found = true
			return fs.SkipAll
		}
		return ctx.Err()
	})
	if err != nil {
		return false, fmt.Errorf("failed to scan bucket %s: %w", bucket, err)
	}
	return found, nil
}

// Upload copies a local file into the bucket
func (f *FilesystemStore) Upload(ctx context.Context, localPath, key, bucket string, removeLocal bool) error {
	dst, err := f.objectPath(bucket, key)
	if err != nil {
		return err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create bucket directory: %w", err)
	}

	// Write to a temp file first so a reader never sees a partial model
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to copy %s: %w", localPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store %s/%s: %w", bucket, key, err)
	}

	if removeLocal {
		src.Close()
		if err := os.Remove(localPath); err != nil {
			return fmt.Errorf("uploaded but failed to remove %s: %w", localPath, err)
		}
	}
	return nil
}

// Download reads an object
func (f *FilesystemStore) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	p, err := f.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// HealthCheck checks the base directory is writable
func (f *FilesystemStore) HealthCheck() error {
	testFile := filepath.Join(f.basePath, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0644); err != nil {
		return fmt.Errorf("%s is not writable: %w", f.basePath, err)
	}
	os.Remove(testFile)
	return nil
}
