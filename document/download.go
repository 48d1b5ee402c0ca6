package document

import (
	"context"
	"fmt"

	"github.com/docvault/docvault/interfaces"
	"github.com/docvault/docvault/metrics"
)

// Download fetches the content for a document and verifies it.
//
// Locators are tried in the order they were recorded; the first backend
// to return bytes wins. Retrieved bytes are rehashed against the
// document ID, and when the record carries a ledger ref the hash is
// additionally cross-checked against the ledger. Unverified bytes are
// still returned with Verified=false; only verified content enters the
// cache.
func (s *Service) Download(ctx context.Context, id interfaces.ContentID) (*interfaces.DownloadResult, error) {
	record, err := s.Record(ctx, id)
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	if data, ok := s.cache.Content(id.String()); ok {
		metrics.CacheEventsTotal.WithLabelValues("content", "hit").Inc()
		metrics.DownloadsTotal.WithLabelValues("ok").Inc()
		return &interfaces.DownloadResult{Record: record, Data: data, Verified: true, FromCache: true}, nil
	}
	metrics.CacheEventsTotal.WithLabelValues("content", "miss").Inc()

	data, err := s.fetchContent(ctx, record)
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	verified := s.verify(ctx, record, data)
	if verified {
		s.cache.SetContent(id.String(), data, s.cacheTTL)
		metrics.DownloadsTotal.WithLabelValues("ok").Inc()
	} else {
		metrics.DownloadsTotal.WithLabelValues("unverified").Inc()
	}

	return &interfaces.DownloadResult{Record: record, Data: data, Verified: verified}, nil
}

// Record returns the document record for a content ID, consulting the
// record cache before the durable store.
func (s *Service) Record(ctx context.Context, id interfaces.ContentID) (*interfaces.DocumentRecord, error) {
	if record, ok := s.cache.Record(id.String()); ok {
		metrics.CacheEventsTotal.WithLabelValues("record", "hit").Inc()
		return record, nil
	}
	metrics.CacheEventsTotal.WithLabelValues("record", "miss").Inc()

	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetRecord(id.String(), record, s.cacheTTL)
	return record, nil
}

// List returns the records owned by the given identity, newest first.
func (s *Service) List(ctx context.Context, owner interfaces.Identity, limit, offset int) ([]interfaces.DocumentRecord, error) {
	return s.store.List(ctx, owner, limit, offset)
}

func (s *Service) fetchContent(ctx context.Context, record *interfaces.DocumentRecord) ([]byte, error) {
	var errs []error
	for _, loc := range record.StorageLocators {
		backend, ok := s.backendFor(loc.Scheme)
		if !ok {
			s.log.Warn("no backend configured for recorded locator", "scheme", loc.Scheme)
			errs = append(errs, fmt.Errorf("%s: no backend configured", loc.Scheme))
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		data, err := backend.Get(callCtx, loc.Locator)
		cancel()
		if err != nil {
			metrics.BackendOpsTotal.WithLabelValues(backend.Name(), "get", "error").Inc()
			s.log.Warn("backend fetch failed, trying next locator",
				"backend", backend.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			continue
		}
		metrics.BackendOpsTotal.WithLabelValues(backend.Name(), "get", "ok").Inc()
		return data, nil
	}

	return nil, fmt.Errorf("%w: %v", interfaces.ErrAllBackendsFailed, errs)
}

// verify rehashes the bytes and, when a ledger ref exists, cross-checks
// the hash on the ledger. A ledger read error means the content could
// not be verified: the bytes are still returned but never with
// Verified=true, and they stay out of the cache.
func (s *Service) verify(ctx context.Context, record *interfaces.DocumentRecord, data []byte) bool {
	if !interfaces.ComputeID(data).Equal(record.ID) {
		s.log.Error("content hash mismatch", "document", record.ID.String())
		return false
	}

	if record.LedgerRecordRef.IsZero() || s.registrar == nil {
		return true
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	ok, err := s.registrar.Verify(callCtx, record.LedgerRecordRef, record.ID)
	if err != nil {
		metrics.LedgerOpsTotal.WithLabelValues("verify", "error").Inc()
		s.log.Warn("ledger verification unavailable, content stays unverified",
			"document", record.ID.String(), "err", err)
		return false
	}
	metrics.LedgerOpsTotal.WithLabelValues("verify", "ok").Inc()
	if !ok {
		s.log.Error("ledger hash mismatch", "document", record.ID.String())
	}
	return ok
}
