package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ruteri/snippet-provisioning-backend/interfaces"
)

// FileBackend implements a catalog store on the local file system.
// Each immediate child directory of the base directory is one bundle.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a new file catalog store rooted at baseDir.
// The base directory is created if it doesn't exist.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// ListBundles returns the names of all bundle directories, sorted.
// Hidden directories are ignored.
func (b *FileBackend) ListBundles(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	bundles := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		bundles = append(bundles, entry.Name())
	}
	sort.Strings(bundles)
	return bundles, nil
}

// ReadFile retrieves a bundle file from the file system.
// Returns ErrContentNotFound if the file doesn't exist.
func (b *FileBackend) ReadFile(ctx context.Context, bundle, file string) ([]byte, error) {
	if err := validateBundlePath(bundle, file); err != nil {
		return nil, err
	}

	filePath := filepath.Join(b.baseDir, bundle, filepath.FromSlash(file))
	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, interfaces.ErrContentNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	b.log.Debug("Read bundle file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return data, nil
}

// ListFiles returns every regular file of a bundle as a slash-separated relative path.
func (b *FileBackend) ListFiles(ctx context.Context, bundle string) ([]string, error) {
	if err := validateBundle(bundle); err != nil {
		return nil, err
	}

	root := filepath.Join(b.baseDir, bundle)
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, interfaces.ErrContentNotFound
	}

	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk bundle %s: %w", bundle, err)
	}
	sort.Strings(files)
	return files, nil
}

// WriteFile saves a bundle file, creating the bundle directory if needed.
func (b *FileBackend) WriteFile(ctx context.Context, bundle, file string, data []byte) error {
	if err := validateBundlePath(bundle, file); err != nil {
		return err
	}

	filePath := filepath.Join(b.baseDir, bundle, filepath.FromSlash(file))
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	b.log.Debug("Stored bundle file", slog.String("path", filePath))
	return nil
}

// Available checks if the file backend is accessible by verifying the base directory exists.
func (b *FileBackend) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}
