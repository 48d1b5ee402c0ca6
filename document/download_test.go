package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/docvault/docvault/interfaces"
)

func uploadFixtureDoc(t *testing.T, f *fixture, data []byte, opts interfaces.UploadOptions) *interfaces.DocumentRecord {
	t.Helper()
	result, err := f.service.Upload(context.Background(), data, testMeta(), interfaces.Identity{1}, opts)
	require.NoError(t, err)
	return result.Record
}

func TestDownload_RoundTrip(t *testing.T) {
	f := newFixture(Config{})
	data := []byte("round trip payload")
	record := uploadFixtureDoc(t, f, data, interfaces.UploadOptions{})

	result, err := f.service.Download(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, data, result.Data)
	assert.True(t, result.Verified)

	// the record rides along, no second lookup needed
	require.NotNil(t, result.Record)
	assert.Equal(t, record.ID, result.Record.ID)
	assert.Equal(t, record.FileType, result.Record.FileType)
}

func TestDownload_ServesFromCache(t *testing.T) {
	f := newFixture(Config{})
	data := []byte("cached payload")
	record := uploadFixtureDoc(t, f, data, interfaces.UploadOptions{})

	result, err := f.service.Download(context.Background(), record.ID)
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.True(t, result.Verified)
	require.NotNil(t, result.Record)
	// upload populated the cache, no backend read happened
	assert.Zero(t, f.primary.gets)
}

func TestDownload_FallsBackAcrossLocators(t *testing.T) {
	f := newFixture(Config{})
	data := []byte("redundant payload")
	record := uploadFixtureDoc(t, f, data, interfaces.UploadOptions{Redundant: true})
	require.Len(t, record.StorageLocators, 2)

	// cold cache, first backend down
	fresh := newFixture(Config{})
	fresh.primary.getErr = errBackendDown
	require.NoError(t, fresh.store.Save(context.Background(), record))
	locator := record.ID.String()
	fresh.secondary.objects[locator] = data

	result, err := fresh.service.Download(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, data, result.Data)
	assert.True(t, result.Verified)
	assert.False(t, result.FromCache)
	assert.Equal(t, 1, fresh.primary.gets)
	assert.Equal(t, 1, fresh.secondary.gets)
}

func TestDownload_AllBackendsFail(t *testing.T) {
	f := newFixture(Config{})
	record := uploadFixtureDoc(t, f, []byte("unreachable"), interfaces.UploadOptions{Redundant: true})

	fresh := newFixture(Config{})
	fresh.primary.getErr = errBackendDown
	fresh.secondary.getErr = errBackendDown
	require.NoError(t, fresh.store.Save(context.Background(), record))

	_, err := fresh.service.Download(context.Background(), record.ID)
	assert.ErrorIs(t, err, interfaces.ErrAllBackendsFailed)
}

func TestDownload_UnknownDocument(t *testing.T) {
	f := newFixture(Config{})
	_, err := f.service.Download(context.Background(), interfaces.ComputeID([]byte("never uploaded")))
	assert.ErrorIs(t, err, interfaces.ErrDocumentNotFound)
}

func TestDownload_CorruptedContentIsUnverified(t *testing.T) {
	f := newFixture(Config{})
	data := []byte("pristine bytes")
	record := uploadFixtureDoc(t, f, data, interfaces.UploadOptions{})

	fresh := newFixture(Config{})
	require.NoError(t, fresh.store.Save(context.Background(), record))
	fresh.primary.corrupt(record.StorageLocators[0].Locator, []byte("tampered bytes"))

	result, err := fresh.service.Download(context.Background(), record.ID)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, []byte("tampered bytes"), result.Data)

	// unverified bytes never enter the cache
	_, cached := fresh.cache.Content(record.ID.String())
	assert.False(t, cached)
}

func TestDownload_LedgerCrossCheck(t *testing.T) {
	f := newFixture(Config{})
	data := []byte("anchored payload")
	ref := testRef(9)
	f.registrar.On("Register", mock.Anything, mock.Anything).Return(ref, nil).Once()
	record := uploadFixtureDoc(t, f, data, interfaces.DefaultUploadOptions())
	require.Equal(t, ref, record.LedgerRecordRef)

	fresh := newFixture(Config{})
	require.NoError(t, fresh.store.Save(context.Background(), record))
	fresh.primary.objects[record.StorageLocators[0].Locator] = data
	fresh.registrar.On("Verify", mock.Anything, ref, record.ID).Return(true, nil).Once()

	result, err := fresh.service.Download(context.Background(), record.ID)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	fresh.registrar.AssertExpectations(t)
}

func TestDownload_LedgerMismatchIsUnverified(t *testing.T) {
	f := newFixture(Config{})
	data := []byte("disputed payload")
	ref := testRef(3)
	f.registrar.On("Register", mock.Anything, mock.Anything).Return(ref, nil).Once()
	record := uploadFixtureDoc(t, f, data, interfaces.DefaultUploadOptions())

	fresh := newFixture(Config{})
	require.NoError(t, fresh.store.Save(context.Background(), record))
	fresh.primary.objects[record.StorageLocators[0].Locator] = data
	fresh.registrar.On("Verify", mock.Anything, ref, record.ID).Return(false, nil).Once()

	result, err := fresh.service.Download(context.Background(), record.ID)
	require.NoError(t, err)
	assert.False(t, result.Verified)
}

func TestDownload_LedgerErrorIsUnverified(t *testing.T) {
	f := newFixture(Config{})
	data := []byte("ledger offline payload")
	ref := testRef(4)
	f.registrar.On("Register", mock.Anything, mock.Anything).Return(ref, nil).Once()
	record := uploadFixtureDoc(t, f, data, interfaces.DefaultUploadOptions())

	fresh := newFixture(Config{})
	require.NoError(t, fresh.store.Save(context.Background(), record))
	fresh.primary.objects[record.StorageLocators[0].Locator] = data
	fresh.registrar.On("Verify", mock.Anything, ref, record.ID).
		Return(false, interfaces.ErrRecordNotFound).Once()

	result, err := fresh.service.Download(context.Background(), record.ID)
	require.NoError(t, err)

	// bytes come back, but a failed cross-check never reports verified
	assert.Equal(t, data, result.Data)
	assert.False(t, result.Verified)

	// and unverifiable bytes never enter the cache
	_, cached := fresh.cache.Content(record.ID.String())
	assert.False(t, cached)
}

func TestDownload_RefetchesAfterCacheExpiry(t *testing.T) {
	f := newFixture(Config{CacheTTL: time.Nanosecond})
	data := []byte("short lived cache")
	record := uploadFixtureDoc(t, f, data, interfaces.UploadOptions{})

	time.Sleep(time.Millisecond)

	result, err := f.service.Download(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, data, result.Data)
	assert.True(t, result.Verified)
	assert.False(t, result.FromCache)
	assert.Equal(t, 1, f.primary.gets)
}

func TestUploadDownload_PrimaryDownLedgerUp(t *testing.T) {
	f := newFixture(Config{})
	f.primary.putErr = errBackendDown
	data := []byte("hello-doc")
	owner := interfaces.Identity{1}
	ref := testRef(6)
	f.registrar.On("Register", mock.Anything, mock.Anything).Return(ref, nil).Once()
	f.registrar.On("Verify", mock.Anything, ref, interfaces.ComputeID(data)).Return(true, nil).Maybe()

	result, err := f.service.Upload(context.Background(), data, testMeta(),
		owner, interfaces.UploadOptions{PreferredBackends: []string{"ipfs", "s3"}, RegisterOnLedger: true})
	require.NoError(t, err)
	require.NoError(t, result.RegistrationErr)

	record := result.Record
	require.Len(t, record.StorageLocators, 1)
	assert.Equal(t, "s3", record.StorageLocators[0].Scheme)
	assert.Equal(t, interfaces.StatusActive, record.Status)
	assert.Equal(t, ref, record.LedgerRecordRef)

	download, err := f.service.Download(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, data, download.Data)
	assert.True(t, download.Verified)
}

func TestList_ReturnsOwnersDocuments(t *testing.T) {
	f := newFixture(Config{})
	owner := interfaces.Identity{1}

	_, err := f.service.Upload(context.Background(), []byte("mine one"), testMeta(), owner, interfaces.UploadOptions{})
	require.NoError(t, err)
	_, err = f.service.Upload(context.Background(), []byte("mine two"), testMeta(), owner, interfaces.UploadOptions{})
	require.NoError(t, err)
	_, err = f.service.Upload(context.Background(), []byte("theirs"), testMeta(), interfaces.Identity{2}, interfaces.UploadOptions{})
	require.NoError(t, err)

	records, err := f.service.List(context.Background(), owner, 0, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
