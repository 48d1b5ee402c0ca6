package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docvault/docvault/cache"
	"github.com/docvault/docvault/docstore"
	"github.com/docvault/docvault/document"
	"github.com/docvault/docvault/interfaces"
	"github.com/docvault/docvault/storage"
)

const testOwnerHex = "0x1111111111111111111111111111111111111111"

func newTestServer(t *testing.T) (*httptest.Server, *storage.FileBackend) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := storage.NewFileBackend(t.TempDir(), log)
	require.NoError(t, err)
	service := document.NewService(
		[]interfaces.StorageBackend{backend},
		nil,
		docstore.NewMemoryStore(),
		cache.New(cache.Config{TTL: time.Minute}, log),
		document.Config{},
		log,
	)

	srv := &Server{
		cfg:     &HTTPServerConfig{Log: log},
		log:     log,
		handler: NewHandler(service, log),
	}
	srv.isReady.Store(true)

	ts := httptest.NewServer(srv.getRouter())
	t.Cleanup(ts.Close)
	return ts, backend
}

func multipartUpload(t *testing.T, content, name, fileType string) (*bytes.Buffer, string) {
	t.Helper()

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("file_type", fileType))
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func uploadDocument(t *testing.T, ts *httptest.Server, content string) uploadResponse {
	t.Helper()

	body, contentType := multipartUpload(t, content, "doc.txt", "text/plain")
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/documents?register=false", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(OwnerHeader, testOwnerHex)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var decoded uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func TestHandleUpload(t *testing.T) {
	ts, _ := newTestServer(t)

	result := uploadDocument(t, ts, "uploaded via http")
	require.NotNil(t, result.Document)
	assert.Equal(t, interfaces.ComputeID([]byte("uploaded via http")), result.Document.ID)
	assert.Equal(t, "doc.txt", result.Document.Name)
	assert.Equal(t, interfaces.StatusActive, result.Document.Status)
	assert.Empty(t, result.RegistrationError)
}

func TestHandleUpload_MissingOwner(t *testing.T) {
	ts, _ := newTestServer(t)

	body, contentType := multipartUpload(t, "no owner", "doc.txt", "text/plain")
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/documents", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleUpload_UnsupportedType(t *testing.T) {
	ts, _ := newTestServer(t)

	body, contentType := multipartUpload(t, "binary", "tool.exe", "application/x-msdownload")
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/documents?register=false", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(OwnerHeader, testOwnerHex)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestHandleGetRecordAndContent(t *testing.T) {
	ts, _ := newTestServer(t)
	uploaded := uploadDocument(t, ts, "fetch me back")
	id := uploaded.Document.ID.String()

	resp, err := http.Get(ts.URL + "/api/documents/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var record interfaces.DocumentRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&record))
	assert.Equal(t, uploaded.Document.ID, record.ID)

	contentResp, err := http.Get(ts.URL + "/api/documents/" + id + "/content")
	require.NoError(t, err)
	defer contentResp.Body.Close()
	require.Equal(t, http.StatusOK, contentResp.StatusCode)
	assert.Equal(t, "true", contentResp.Header.Get(VerifiedHeader))
	assert.Equal(t, "text/plain", contentResp.Header.Get("Content-Type"))

	data, err := io.ReadAll(contentResp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("fetch me back"), data)
}

func TestHandleGetRecord_NotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	missing := interfaces.ComputeID([]byte("missing")).String()
	resp, err := http.Get(ts.URL + "/api/documents/" + missing)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleUpdateMetadata(t *testing.T) {
	ts, _ := newTestServer(t)
	uploaded := uploadDocument(t, ts, "patch my metadata")
	id := uploaded.Document.ID.String()

	patch := strings.NewReader(`{"name":"patched.txt","tags":["legal"]}`)
	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/documents/"+id, patch)
	require.NoError(t, err)
	req.Header.Set(OwnerHeader, testOwnerHex)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var record interfaces.DocumentRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&record))
	assert.Equal(t, "patched.txt", record.Name)
	assert.Equal(t, []string{"legal"}, record.Tags)
	assert.Equal(t, uploaded.Document.ID, record.ID)
}

func TestHandleUpdateMetadata_WrongOwner(t *testing.T) {
	ts, _ := newTestServer(t)
	uploaded := uploadDocument(t, ts, "someone else's doc")
	id := uploaded.Document.ID.String()

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/documents/"+id, strings.NewReader(`{"name":"x"}`))
	require.NoError(t, err)
	req.Header.Set(OwnerHeader, "0x2222222222222222222222222222222222222222")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandleUpdateContent(t *testing.T) {
	ts, _ := newTestServer(t)
	uploaded := uploadDocument(t, ts, "content v1")
	id := uploaded.Document.ID.String()

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/documents/"+id+"/content?register=false", strings.NewReader("content v2"))
	require.NoError(t, err)
	req.Header.Set(OwnerHeader, testOwnerHex)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, interfaces.ComputeID([]byte("content v2")), result.Document.ID)
	assert.Equal(t, uint32(2), result.Document.Version)

	// old ID is gone
	oldResp, err := http.Get(ts.URL + "/api/documents/" + id)
	require.NoError(t, err)
	defer oldResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, oldResp.StatusCode)
}

func TestHandleArchive(t *testing.T) {
	ts, _ := newTestServer(t)
	uploaded := uploadDocument(t, ts, "to the vaults")
	id := uploaded.Document.ID.String()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/documents/"+id+"/archive", nil)
	require.NoError(t, err)
	req.Header.Set(OwnerHeader, testOwnerHex)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var record interfaces.DocumentRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&record))
	assert.Equal(t, interfaces.StatusArchived, record.Status)

	// further mutation conflicts
	patchReq, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/documents/"+id, strings.NewReader(`{"name":"x"}`))
	require.NoError(t, err)
	patchReq.Header.Set(OwnerHeader, testOwnerHex)
	patchResp, err := http.DefaultClient.Do(patchReq)
	require.NoError(t, err)
	defer patchResp.Body.Close()
	assert.Equal(t, http.StatusConflict, patchResp.StatusCode)
}

func TestHandleSign_WithoutLedgerRef(t *testing.T) {
	ts, _ := newTestServer(t)
	uploaded := uploadDocument(t, ts, "unanchored")
	id := uploaded.Document.ID.String()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/documents/"+id+"/signatures", nil)
	require.NoError(t, err)
	req.Header.Set(OwnerHeader, testOwnerHex)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandleList(t *testing.T) {
	ts, _ := newTestServer(t)
	uploadDocument(t, ts, "list me one")
	uploadDocument(t, ts, "list me two")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/documents", nil)
	require.NoError(t, err)
	req.Header.Set(OwnerHeader, testOwnerHex)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Documents []interfaces.DocumentRecord `json:"documents"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Documents, 2)
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/livez")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/drain")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/undrain")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
