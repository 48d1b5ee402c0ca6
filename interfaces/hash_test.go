package interfaces

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeID_Deterministic(t *testing.T) {
	payload := []byte("hello-doc")

	first := ComputeID(payload)
	second := ComputeID(payload)
	assert.True(t, first.Equal(second))
	assert.Equal(t, first.String(), second.String())
}

func TestComputeID_DistinctContent(t *testing.T) {
	a := ComputeID([]byte("document one"))
	b := ComputeID([]byte("document two"))
	c := ComputeID([]byte(""))

	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, b.Equal(c))
}

func TestContentID_HexRoundTrip(t *testing.T) {
	id := ComputeID([]byte("round trip"))

	parsed, err := NewContentIDFromHex(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equal(parsed))

	// 0x prefix is accepted
	parsed, err = NewContentIDFromHex("0x" + id.String())
	require.NoError(t, err)
	assert.True(t, id.Equal(parsed))

	_, err = NewContentIDFromHex("abcd")
	assert.Error(t, err)
}

func TestNewStorageBackendLocation(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantErr bool
		scheme  string
	}{
		{"ipfs", "ipfs://127.0.0.1:5001/?timeout=30s", false, "ipfs"},
		{"s3", "s3://bucket/docs/?region=us-east-1", false, "s3"},
		{"file", "file:///var/lib/docvault/", false, "file"},
		{"vault", "vault://vault.example.com:8200/secret/docs", false, "vault"},
		{"unsupported", "ftp://example.com/", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := NewStorageBackendLocation(tt.uri)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLocationURI)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.scheme, loc.Scheme)
			assert.Equal(t, tt.uri, loc.String())
		})
	}
}
