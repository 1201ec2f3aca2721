package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ruteri/snippet-provisioning-backend/interfaces"
)

// MultiStorageBackend implements interfaces.CatalogStore using multiple backends with fallback.
// The bundle set is the union of all available backends; files are read from the first
// backend that has them.
type MultiStorageBackend struct {
	backends []interfaces.CatalogStore
	log      *slog.Logger
}

// NewMultiStorageBackend creates a new multi-storage backend with fallback
func NewMultiStorageBackend(backends []interfaces.CatalogStore, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// ListBundles merges the bundle names of every available backend.
func (m *MultiStorageBackend) ListBundles(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var errs []error
	listed := false

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		bundles, err := backend.ListBundles(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Debug("Failed to list bundles",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}

		listed = true
		for _, b := range bundles {
			seen[b] = struct{}{}
		}
	}

	if !listed {
		return nil, fmt.Errorf("%w: all backends failed to list bundles: %v", interfaces.ErrBackendUnavailable, errs)
	}

	bundles := make([]string, 0, len(seen))
	for b := range seen {
		bundles = append(bundles, b)
	}
	sort.Strings(bundles)
	return bundles, nil
}

// ReadFile returns the file from the first available backend that has it.
func (m *MultiStorageBackend) ReadFile(ctx context.Context, bundle, file string) ([]byte, error) {
	start := time.Now()
	var errs []error
	notFound := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		data, err := backend.ReadFile(ctx, bundle, file)
		if err == nil {
			m.log.Debug("Fetched bundle file",
				slog.String("backend_name", backend.Name()),
				slog.String("bundle", bundle),
				slog.String("file", file),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		if errors.Is(err, interfaces.ErrContentNotFound) {
			notFound++
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
	}

	if notFound > 0 && notFound == len(errs) {
		return nil, interfaces.ErrContentNotFound
	}

	return nil, fmt.Errorf("all backends failed to fetch %s/%s: %v", bundle, file, errs)
}

// ListFiles lists the bundle from the first backend that holds it.
func (m *MultiStorageBackend) ListFiles(ctx context.Context, bundle string) ([]string, error) {
	var errs []error
	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			continue
		}

		files, err := backend.ListFiles(ctx, bundle)
		if err == nil && len(files) > 0 {
			return files, nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		}
	}

	if len(errs) == 0 {
		return nil, interfaces.ErrContentNotFound
	}
	return nil, fmt.Errorf("all backends failed to list %s: %v", bundle, errs)
}

// WriteFile saves the file to all available backends. It succeeds if at least one backend accepted it.
func (m *MultiStorageBackend) WriteFile(ctx context.Context, bundle, file string, data []byte) error {
	var success bool
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		if err := backend.WriteFile(ctx, bundle, file, data); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Debug("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}
		success = true
	}

	if !success {
		return fmt.Errorf("all backends failed to store %s/%s: %v", bundle, file, errs)
	}
	return nil
}

// Available checks if any backend is available
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend
func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

// LocationURI returns a combined location URI from all backends
func (m *MultiStorageBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
