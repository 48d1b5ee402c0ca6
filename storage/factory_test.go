package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvault/docvault/interfaces"
)

func mustLocation(t *testing.T, uri string) interfaces.StorageBackendLocation {
	t.Helper()
	loc, err := interfaces.NewStorageBackendLocation(uri)
	require.NoError(t, err)
	return loc
}

func TestFactory_StorageBackendFor(t *testing.T) {
	factory := NewStorageBackendFactory(testLogger())

	tests := []struct {
		name   string
		uri    string
		scheme string
	}{
		{"ipfs", "ipfs://127.0.0.1:5001/", "ipfs"},
		{"s3", "s3://my-bucket/docs/?region=eu-west-1", "s3"},
		{"file", "file://" + t.TempDir(), "file"},
		{"vault", "vault://token@vault.local:8200/secret/docs", "vault"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := factory.StorageBackendFor(mustLocation(t, tt.uri))
			require.NoError(t, err)
			assert.Equal(t, tt.scheme, backend.Scheme())
		})
	}
}

func TestFactory_BackendsPreservesOrder(t *testing.T) {
	factory := NewStorageBackendFactory(testLogger())

	locations := []interfaces.StorageBackendLocation{
		mustLocation(t, "ipfs://127.0.0.1:5001/"),
		mustLocation(t, "s3://archive-bucket/docs/"),
		mustLocation(t, "file://"+t.TempDir()),
	}

	backends, err := factory.Backends(locations)
	require.NoError(t, err)
	require.Len(t, backends, 3)

	assert.Equal(t, "ipfs", backends[0].Scheme())
	assert.Equal(t, "s3", backends[1].Scheme())
	assert.Equal(t, "file", backends[2].Scheme())
}

func TestFactory_VaultRequiresMountAndPath(t *testing.T) {
	factory := NewStorageBackendFactory(testLogger())

	_, err := factory.StorageBackendFor(mustLocation(t, "vault://token@vault.local:8200/secretonly"))
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}
