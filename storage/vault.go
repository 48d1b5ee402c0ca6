package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/docvault/docvault/interfaces"
)

// VaultBackend implements a storage backend using HashiCorp Vault's KV
// v2 engine. It serves as a private tier for restricted documents that
// must not land on public networks. The locator returned by Put is the
// content-derived KV key.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultBackend creates a Vault storage backend using token
// authentication.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: Vault mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "docvault")
//   - token: Vault token authorizing reads and writes under the path
func NewVaultBackend(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultBackend, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.Timeout = 30 * time.Second

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(token)

	mountPath = strings.TrimSuffix(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", address, mountPath, dataPath),
	}, nil
}

// Put writes content to Vault under a content-derived key and returns
// the key as locator. Tags are stored alongside the content.
func (b *VaultBackend) Put(ctx context.Context, data []byte, tags map[string]string) (string, error) {
	start := time.Now()

	locator := interfaces.ComputeID(data).String()
	path := b.kvPath(locator)

	payload := map[string]interface{}{
		"content": base64.StdEncoding.EncodeToString(data),
	}
	for k, v := range tags {
		payload["tag_"+k] = v
	}

	_, err := b.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"data": payload,
	})
	if err != nil {
		b.log.Error("Failed to write to Vault",
			slog.String("path", path),
			"err", err)
		if strings.Contains(err.Error(), "permission denied") {
			return "", fmt.Errorf("%w: %v", interfaces.ErrBackendRejected, err)
		}
		return "", fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored content in Vault",
		slog.String("locator", locator),
		slog.Duration("duration", time.Since(start)))

	return locator, nil
}

// Get retrieves content from Vault by its key locator. It uses the KV v2
// API which requires a specific path structure.
func (b *VaultBackend) Get(ctx context.Context, locator string) ([]byte, error) {
	start := time.Now()
	path := b.kvPath(locator)

	secret, err := b.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		b.log.Error("Failed to read from Vault",
			slog.String("path", path),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if secret == nil || secret.Data == nil {
		b.log.Debug("Content not found in Vault", slog.String("path", path))
		return nil, interfaces.ErrContentNotFound
	}

	// KV v2 wraps the payload in a "data" map
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response")
	}

	encoded, ok := data["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content key not found in Vault data")
	}

	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Vault content: %w", err)
	}

	b.log.Debug("Fetched content from Vault",
		slog.String("locator", locator),
		slog.Duration("duration", time.Since(start)))

	return content, nil
}

// PublicURL returns the Vault path URI for a locator. Vault content is
// not publicly dereferenceable; the URI is for display only.
func (b *VaultBackend) PublicURL(locator string) string {
	return fmt.Sprintf("%s/%s", b.locationURI, locator)
}

// Available checks if the Vault backend is accessible, initialized and
// unsealed.
func (b *VaultBackend) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := b.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		b.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}

	return true
}

// Name returns a unique identifier for this storage backend.
func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

// Scheme returns the locator scheme this backend serves.
func (b *VaultBackend) Scheme() string {
	return "vault"
}

// LocationURI returns the URI that identifies this storage backend.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}

// kvPath builds the KV v2 path for a locator.
func (b *VaultBackend) kvPath(locator string) string {
	return fmt.Sprintf("%s/data/%s/%s", b.mountPath, b.dataPath, locator)
}
