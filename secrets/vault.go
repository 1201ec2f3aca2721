package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
)

// VaultReader reads single fields from a Vault KV secrets engine.
type VaultReader struct {
	client *api.Client
	log    *slog.Logger
}

// NewVaultReader creates a reader for the Vault server at address using token.
// Empty values fall back to VAULT_ADDR and VAULT_TOKEN.
func NewVaultReader(address, token string, log *slog.Logger) (*VaultReader, error) {
	config := api.DefaultConfig()
	if config.Error != nil {
		return nil, fmt.Errorf("failed to read Vault environment: %w", config.Error)
	}
	if address != "" {
		config.Address = address
	}
	config.HttpClient = &http.Client{Timeout: 30 * time.Second}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	return &VaultReader{client: client, log: log}, nil
}

// ReadField returns one string field of the secret at mount/path.
// KV v2 mounts are tried first, then the path is read as a KV v1 secret.
func (v *VaultReader) ReadField(ctx context.Context, mount, path, field string) (string, error) {
	mount = strings.Trim(mount, "/")
	path = strings.Trim(path, "/")

	// KV v2 path structure
	secret, err := v.client.Logical().ReadWithContext(ctx, fmt.Sprintf("%s/data/%s", mount, path))
	if err != nil {
		v.log.Debug("KV v2 read failed, trying KV v1",
			slog.String("mount", mount),
			slog.String("path", path),
			"err", err)
		secret = nil
	}

	data := map[string]any(nil)
	if secret != nil && secret.Data != nil {
		if nested, ok := secret.Data["data"].(map[string]any); ok {
			data = nested
		}
	}

	if data == nil {
		secret, err = v.client.Logical().ReadWithContext(ctx, fmt.Sprintf("%s/%s", mount, path))
		if err != nil {
			return "", fmt.Errorf("failed to read %s/%s from Vault: %w", mount, path, err)
		}
		if secret == nil || secret.Data == nil {
			return "", fmt.Errorf("%w: %s/%s", ErrSecretNotFound, mount, path)
		}
		data = secret.Data
	}

	raw, ok := data[field]
	if !ok {
		return "", fmt.Errorf("%w: field %q of %s/%s", ErrSecretNotFound, field, mount, path)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("field %q of %s/%s is not a string", field, mount, path)
	}
	return value, nil
}
