package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// validateBundle rejects bundle names that are not a single path element.
func validateBundle(bundle string) error {
	if bundle == "" || bundle == "." || bundle == ".." || strings.ContainsAny(bundle, `/\`) {
		return fmt.Errorf("invalid bundle name %q", bundle)
	}
	return nil
}

// validateBundlePath rejects file references escaping the bundle directory.
func validateBundlePath(bundle, file string) error {
	if err := validateBundle(bundle); err != nil {
		return err
	}
	if file == "" || !filepath.IsLocal(filepath.FromSlash(file)) {
		return fmt.Errorf("invalid file path %q in bundle %q", file, bundle)
	}
	return nil
}

// objectKey joins bundle relative paths with forward slashes for object stores.
func objectKey(prefix, bundle, file string) string {
	if prefix == "" {
		return path.Join(bundle, filepath.ToSlash(file))
	}
	return path.Join(prefix, bundle, filepath.ToSlash(file))
}
