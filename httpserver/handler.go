package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/docvault/docvault/document"
	"github.com/docvault/docvault/interfaces"
)

// Header constants used in HTTP requests and responses.
const (
	// OwnerHeader carries the hex identity the request acts on behalf of.
	OwnerHeader = "X-Docvault-Owner"

	// VerifiedHeader reports the content verification outcome on
	// downloads: "true" or "false".
	VerifiedHeader = "X-Docvault-Verified"

	// CacheHeader reports whether content was served from the cache.
	CacheHeader = "X-Docvault-Cache"

	// maxBodySize is the maximum allowed request body size (16MB).
	maxBodySize = 16 << 20

	// maxMultipartMemory bounds the in-memory part of multipart parsing.
	maxMultipartMemory = 4 << 20
)

// RequestError provides structured error information for HTTP responses.
// It includes both an HTTP status code and the underlying error.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

// Handler processes HTTP requests for the document vault service. It
// translates the HTTP surface into document pipeline calls and maps
// pipeline errors onto status codes.
type Handler struct {
	service *document.Service
	log     *slog.Logger
}

// NewHandler creates a new HTTP request handler backed by the given
// document service.
func NewHandler(service *document.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// uploadResponse is the JSON body returned for uploads and content
// updates. RegistrationError is set when storage succeeded but the
// ledger registration did not.
type uploadResponse struct {
	Document          *interfaces.DocumentRecord `json:"document"`
	RegistrationError string                     `json:"registration_error,omitempty"`
}

// HandleUpload processes document uploads.
//
// URL format: POST /api/documents
// Request body: multipart form with a "file" part plus optional
// "name", "description", "file_type" and "tags" (comma-separated)
// fields. Query parameters:
//   - backends: comma-separated backend scheme preference order
//   - register: "false" skips ledger registration (default true)
//   - redundant: "true" writes all preferred backends best-effort
//
// Response: JSON uploadResponse. A storage-durable upload whose ledger
// registration failed still returns 201 with registration_error set.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	owner, err := h.ownerFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file part", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
		return
	}

	meta := interfaces.DocumentMeta{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		FileType:    r.FormValue("file_type"),
	}
	if meta.Name == "" {
		meta.Name = fileHeader.Filename
	}
	if meta.FileType == "" {
		meta.FileType = fileHeader.Header.Get("Content-Type")
	}
	if tags := r.FormValue("tags"); tags != "" {
		meta.Tags = strings.Split(tags, ",")
	}

	result, err := h.service.Upload(r.Context(), data, meta, owner, h.uploadOptions(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, uploadResult(result))
}

// HandleGetRecord returns the document record as JSON.
//
// URL format: GET /api/documents/{document_id}
func (h *Handler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := h.documentID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := h.service.Record(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

// HandleGetContent returns the raw document bytes.
//
// URL format: GET /api/documents/{document_id}/content
//
// The verification outcome is reported in the X-Docvault-Verified
// header; unverified bytes are still served and the caller decides
// whether to trust them.
func (h *Handler) HandleGetContent(w http.ResponseWriter, r *http.Request) {
	id, err := h.documentID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.Download(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", result.Record.FileType)
	w.Header().Set(VerifiedHeader, strconv.FormatBool(result.Verified))
	w.Header().Set(CacheHeader, strconv.FormatBool(result.FromCache))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Data)
}

// HandleList returns the caller's document records, newest first.
//
// URL format: GET /api/documents?limit=N&offset=M
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	owner, err := h.ownerFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, err := h.service.List(r.Context(), owner, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"documents": records})
}

// HandleUpdateMetadata applies a partial metadata update.
//
// URL format: PATCH /api/documents/{document_id}
// Request body: JSON MetaPatch (name, description, tags)
func (h *Handler) HandleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := h.documentID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	owner, err := h.ownerFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var patch document.MetaPatch
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&patch); err != nil {
		http.Error(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	record, err := h.service.UpdateMetadata(r.Context(), id, owner, patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

// HandleUpdateContent replaces the document content with the request
// body. The response carries the new record under its new content ID.
//
// URL format: PUT /api/documents/{document_id}/content
func (h *Handler) HandleUpdateContent(w http.ResponseWriter, r *http.Request) {
	id, err := h.documentID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	owner, err := h.ownerFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "Failed to read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.UpdateContent(r.Context(), id, owner, data, h.uploadOptions(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, uploadResult(result))
}

// HandleArchive moves a document to archived state.
//
// URL format: POST /api/documents/{document_id}/archive
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	id, err := h.documentID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	owner, err := h.ownerFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := h.service.Archive(r.Context(), id, owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

// HandleSign appends the caller's signature to the document's ledger
// entry.
//
// URL format: POST /api/documents/{document_id}/signatures
func (h *Handler) HandleSign(w http.ResponseWriter, r *http.Request) {
	id, err := h.documentID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	signer, err := h.ownerFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := h.service.Sign(r.Context(), id, signer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

func (h *Handler) documentID(r *http.Request) (interfaces.ContentID, error) {
	return interfaces.NewContentIDFromHex(chi.URLParam(r, "document_id"))
}

func (h *Handler) ownerFrom(r *http.Request) (interfaces.Identity, error) {
	raw := r.Header.Get(OwnerHeader)
	if raw == "" {
		return interfaces.Identity{}, errors.New("missing " + OwnerHeader + " header")
	}
	return interfaces.NewIdentityFromHex(raw)
}

func (h *Handler) uploadOptions(r *http.Request) interfaces.UploadOptions {
	opts := interfaces.DefaultUploadOptions()
	query := r.URL.Query()
	if backends := query.Get("backends"); backends != "" {
		opts.PreferredBackends = strings.Split(backends, ",")
	}
	if query.Get("register") == "false" {
		opts.RegisterOnLedger = false
	}
	if query.Get("redundant") == "true" {
		opts.Redundant = true
	}
	return opts
}

func uploadResult(result *interfaces.UploadResult) uploadResponse {
	resp := uploadResponse{Document: result.Record}
	if result.RegistrationErr != nil {
		resp.RegistrationError = result.RegistrationErr.Error()
	}
	return resp
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

// writeError maps pipeline errors onto HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, interfaces.ErrDocumentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, interfaces.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, interfaces.ErrDocumentArchived):
		status = http.StatusConflict
	case errors.Is(err, interfaces.ErrFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, interfaces.ErrUnsupportedType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, interfaces.ErrStorageFailed), errors.Is(err, interfaces.ErrAllBackendsFailed):
		status = http.StatusBadGateway
	case errors.Is(err, interfaces.ErrNoSigner):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err)
	}
	http.Error(w, err.Error(), status)
}
