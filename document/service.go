package document

import (
	"log/slog"
	"time"

	"github.com/docvault/docvault/cache"
	"github.com/docvault/docvault/docstore"
	"github.com/docvault/docvault/interfaces"
)

const (
	// DefaultMaxFileSize bounds content accepted for upload.
	DefaultMaxFileSize = 10 << 20 // 10 MiB

	// DefaultCallTimeout bounds each backend and ledger call.
	DefaultCallTimeout = 30 * time.Second
)

// DefaultAllowedTypes is the file type allowlist used when the config
// does not provide one.
var DefaultAllowedTypes = []string{
	"application/pdf",
	"application/json",
	"text/plain",
	"text/markdown",
	"image/png",
	"image/jpeg",
}

// Config tunes the document pipeline.
type Config struct {
	// MaxFileSize is the content size ceiling in bytes. Zero selects
	// DefaultMaxFileSize.
	MaxFileSize int64

	// AllowedTypes is the accepted file type set. Empty selects
	// DefaultAllowedTypes.
	AllowedTypes []string

	// CallTimeout bounds each individual backend or ledger call. Zero
	// selects DefaultCallTimeout.
	CallTimeout time.Duration

	// CacheTTL bounds cached records and content. Zero selects the
	// cache package default.
	CacheTTL time.Duration
}

// Service orchestrates uploads, downloads and lifecycle changes across
// the storage backends, the ledger registrar and the durable store.
//
// Backends are kept in configured preference order. The registrar is
// optional; without one uploads succeed with no ledger ref and
// downloads skip the ledger cross-check.
type Service struct {
	backends  []interfaces.StorageBackend
	registrar interfaces.LedgerRegistrar
	store     docstore.Store
	cache     *cache.Cache
	policy    interfaces.AccessPolicy

	maxFileSize  int64
	allowedTypes map[string]bool
	callTimeout  time.Duration
	cacheTTL     time.Duration

	log *slog.Logger
}

// NewService assembles the pipeline. The backend slice order is the
// service-wide fallback order and is never reordered.
func NewService(backends []interfaces.StorageBackend, registrar interfaces.LedgerRegistrar, store docstore.Store, contentCache *cache.Cache, cfg Config, log *slog.Logger) *Service {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = DefaultAllowedTypes
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}

	allowed := make(map[string]bool, len(cfg.AllowedTypes))
	for _, fileType := range cfg.AllowedTypes {
		allowed[fileType] = true
	}

	return &Service{
		backends:     backends,
		registrar:    registrar,
		store:        store,
		cache:        contentCache,
		policy:       interfaces.OwnerPolicy{},
		maxFileSize:  cfg.MaxFileSize,
		allowedTypes: allowed,
		callTimeout:  cfg.CallTimeout,
		cacheTTL:     cfg.CacheTTL,
		log:          log,
	}
}

// SetPolicy swaps the mutation access policy. The default permits the
// record owner only.
func (s *Service) SetPolicy(policy interfaces.AccessPolicy) {
	s.policy = policy
}

// orderedBackends resolves the caller's preference list against the
// configured backends, preserving the caller's order. Unknown schemes
// are skipped with a warning. An empty preference list yields the
// configured order.
func (s *Service) orderedBackends(preferred []string) []interfaces.StorageBackend {
	if len(preferred) == 0 {
		return s.backends
	}

	ordered := make([]interfaces.StorageBackend, 0, len(preferred))
	for _, scheme := range preferred {
		found := false
		for _, backend := range s.backends {
			if backend.Scheme() == scheme {
				ordered = append(ordered, backend)
				found = true
				break
			}
		}
		if !found {
			s.log.Warn("ignoring unknown preferred backend", "scheme", scheme)
		}
	}
	return ordered
}

// backendFor returns the configured backend handling the given scheme.
func (s *Service) backendFor(scheme string) (interfaces.StorageBackend, bool) {
	for _, backend := range s.backends {
		if backend.Scheme() == scheme {
			return backend, true
		}
	}
	return nil, false
}

func (s *Service) validate(data []byte, fileType string) error {
	if int64(len(data)) > s.maxFileSize {
		return interfaces.ErrFileTooLarge
	}
	if !s.allowedTypes[fileType] {
		return interfaces.ErrUnsupportedType
	}
	return nil
}
