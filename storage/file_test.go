package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvault/docvault/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileBackend_RoundTrip(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	payload := []byte("hello-doc")

	locator, err := backend.Put(ctx, payload, map[string]string{"name": "greeting"})
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(payload).String(), locator)

	data, err := backend.Get(ctx, locator)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	assert.True(t, backend.Available(ctx))
	assert.Equal(t, "file", backend.Scheme())
}

func TestFileBackend_PutIdempotentLocator(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	payload := []byte("same bytes")

	first, err := backend.Put(ctx, payload, nil)
	require.NoError(t, err)
	second, err := backend.Put(ctx, payload, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFileBackend_GetMissing(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), testLogger())
	require.NoError(t, err)

	_, err = backend.Get(context.Background(), interfaces.ComputeID([]byte("never stored")).String())
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestFileBackend_GetRejectsTraversal(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), testLogger())
	require.NoError(t, err)

	_, err = backend.Get(context.Background(), "../../../etc/passwd")
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestFileBackend_PublicURL(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir, testLogger())
	require.NoError(t, err)

	url := backend.PublicURL("abc123")
	assert.Contains(t, url, "file://")
	assert.Contains(t, url, "abc123")
}
