package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrContentNotFound is returned when a backend has no content for the
	// requested locator.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend cannot be
	// reached. A timed-out call is treated identically.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrBackendRejected is returned when a reachable backend refuses the
	// payload (quota, malformed tags, denied write).
	ErrBackendRejected = errors.New("storage backend rejected payload")

	// ErrInvalidLocationURI is returned when a storage location URI is
	// malformed or its scheme is unsupported.
	// URIs follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// StorageBackend is the uniform capability over one concrete storage
// network. Adapters perform no internal retries; transient failures are
// the caller's to handle via fallback ordering.
type StorageBackend interface {
	// Put uploads content and returns the backend's opaque locator for it.
	// Tags are best-effort annotations; backends that cannot store them
	// ignore them.
	Put(ctx context.Context, data []byte, tags map[string]string) (string, error)

	// Get fetches content by locator. Returns ErrContentNotFound if the
	// backend has no such locator, ErrBackendUnavailable on network
	// failure.
	Get(ctx context.Context, locator string) ([]byte, error)

	// PublicURL derives a dereferenceable display URL from a locator.
	// Pure, no network call, never used for integrity.
	PublicURL(locator string) string

	// Available checks if the backend is reachable.
	Available(ctx context.Context) bool

	// Name returns an identifier for logging.
	Name() string

	// Scheme returns the locator scheme this backend serves (ipfs, s3,
	// file, vault).
	Scheme() string

	// LocationURI returns the URI this backend was configured from.
	LocationURI() string
}

// StorageBackendLocation is a parsed storage backend URI.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStorageBackendLocation parses and validates a backend URI string.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "file", "s3", "ipfs", "vault":
		// Valid scheme
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

// StorageBackendFactory creates storage backends from location URIs.
type StorageBackendFactory interface {
	// StorageBackendFor creates a backend from a URI.
	// Supports file://, s3://, ipfs://, vault://
	StorageBackendFor(location StorageBackendLocation) (StorageBackend, error)

	// Backends creates the ordered adapter list for the given URIs. The
	// order of the input is preserved; it is the default preference order
	// for uploads.
	Backends(locations []StorageBackendLocation) ([]StorageBackend, error)
}
