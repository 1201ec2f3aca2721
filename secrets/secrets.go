// Package secrets resolves credential references given on the command line.
//
// A reference is one of:
//
//	env://FLEET_PASSWORD          value of an environment variable
//	file:///run/secrets/fleet     contents of a file, surrounding whitespace trimmed
//	vault://secret/fleet#password field of a Vault KV secret (mount "secret", path "fleet")
//
// Anything else is taken literally.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

// ErrSecretNotFound is returned when a reference points at nothing.
var ErrSecretNotFound = errors.New("secret not found")

// FieldReader reads a field of a secret stored under mount/path.
type FieldReader interface {
	ReadField(ctx context.Context, mount, path, field string) (string, error)
}

// Resolver turns references into secret values.
type Resolver struct {
	vault FieldReader
	log   *slog.Logger
}

// NewResolver creates a resolver. vault may be nil, in which case vault://
// references fail.
func NewResolver(vault FieldReader, log *slog.Logger) *Resolver {
	return &Resolver{vault: vault, log: log}
}

// Resolve returns the secret a reference designates.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "env://"):
		name := strings.TrimPrefix(ref, "env://")
		value, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("%w: environment variable %s is not set", ErrSecretNotFound, name)
		}
		return value, nil

	case strings.HasPrefix(ref, "file://"):
		data, err := os.ReadFile(strings.TrimPrefix(ref, "file://"))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("%w: %v", ErrSecretNotFound, err)
			}
			return "", fmt.Errorf("failed to read secret file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil

	case strings.HasPrefix(ref, "vault://"):
		return r.resolveVault(ctx, ref)
	}
	return ref, nil
}

func (r *Resolver) resolveVault(ctx context.Context, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid vault reference: %w", err)
	}
	mount := u.Host
	path := strings.Trim(u.Path, "/")
	field := u.Fragment
	if mount == "" || path == "" || field == "" {
		return "", fmt.Errorf("invalid vault reference %q: expected vault://mount/path#field", ref)
	}
	if r.vault == nil {
		return "", fmt.Errorf("vault reference %q given but no Vault client is configured", ref)
	}

	r.log.Debug("Resolving secret from Vault",
		slog.String("mount", mount),
		slog.String("path", path),
		slog.String("field", field))
	return r.vault.ReadField(ctx, mount, path, field)
}

// IsVaultReference reports whether ref needs a Vault client to resolve.
func IsVaultReference(ref string) bool {
	return strings.HasPrefix(ref, "vault://")
}
