package document

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docvault/docvault/interfaces"
	"github.com/docvault/docvault/metrics"
)

// Upload validates, stores and registers a new document.
//
// Validation happens before any network call. Storage backends are
// tried in the caller's preferred order until one write succeeds; with
// Redundant set the remaining backends are written best-effort in
// parallel. Ledger registration failure does not fail the upload: the
// result carries RegistrationErr and the record simply has no ledger
// ref yet.
func (s *Service) Upload(ctx context.Context, data []byte, meta interfaces.DocumentMeta, owner interfaces.Identity, opts interfaces.UploadOptions) (*interfaces.UploadResult, error) {
	if err := s.validate(data, meta.FileType); err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	id := interfaces.ComputeID(data)
	log := s.log.With("document", id.String())

	// Byte-identical re-upload by the same owner converges on the
	// existing record. A different principal goes through the full
	// store-and-register path and gets a record of its own.
	if existing, err := s.store.Get(ctx, id); err == nil && existing.Owner == owner {
		log.Debug("content already stored, returning existing record")
		metrics.UploadsTotal.WithLabelValues("ok").Inc()
		return &interfaces.UploadResult{Record: existing}, nil
	}

	backends := s.orderedBackends(opts.PreferredBackends)
	if len(backends) == 0 {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: no usable backends", interfaces.ErrStorageFailed)
	}

	tags := map[string]string{
		"name":      meta.Name,
		"file_type": meta.FileType,
		"owner":     owner.String(),
	}

	locators, primaryIdx, err := s.storeContent(ctx, backends, data, tags, opts.Redundant, log)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	now := time.Now().UTC()
	record := &interfaces.DocumentRecord{
		ID:              id,
		Name:            meta.Name,
		Description:     meta.Description,
		FileType:        meta.FileType,
		FileSize:        int64(len(data)),
		StorageLocators: locators,
		Owner:           owner,
		Version:         1,
		Status:          interfaces.StatusActive,
		Tags:            meta.Tags,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	result := &interfaces.UploadResult{Record: record}
	if opts.RegisterOnLedger {
		ref, regErr := s.register(ctx, id, meta, now, owner)
		if regErr != nil {
			log.Warn("ledger registration failed, record has no ledger ref",
				"err", regErr, "backend", backends[primaryIdx].Name())
			result.RegistrationErr = regErr
		} else {
			record.LedgerRecordRef = ref
		}
	}

	if err := s.store.Save(ctx, record); err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("persisting document record: %w", err)
	}

	s.cache.SetRecord(id.String(), record, s.cacheTTL)
	s.cache.SetContent(id.String(), data, s.cacheTTL)

	if result.RegistrationErr != nil {
		metrics.UploadsTotal.WithLabelValues("partial").Inc()
	} else {
		metrics.UploadsTotal.WithLabelValues("ok").Inc()
	}
	log.Info("document uploaded", "locators", len(record.StorageLocators),
		"size", record.FileSize, "registered", !record.LedgerRecordRef.IsZero())
	return result, nil
}

// storeContent writes data through the ordered backends. The first
// success becomes the primary locator; with redundant set the rest are
// attempted in parallel and failures are logged only.
func (s *Service) storeContent(ctx context.Context, backends []interfaces.StorageBackend, data []byte, tags map[string]string, redundant bool, log *slog.Logger) ([]interfaces.StorageLocator, int, error) {
	var (
		locators   []interfaces.StorageLocator
		primaryIdx = -1
	)

	var errs []error
	for i, backend := range backends {
		locator, err := s.putOne(ctx, backend, data, tags)
		if err != nil {
			log.Warn("backend write failed", "backend", backend.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			continue
		}
		locators = append(locators, interfaces.StorageLocator{Scheme: backend.Scheme(), Locator: locator})
		primaryIdx = i
		break
	}
	if primaryIdx == -1 {
		return nil, -1, fmt.Errorf("%w: %v", interfaces.ErrStorageFailed, errs)
	}

	if redundant && primaryIdx+1 < len(backends) {
		var (
			mu    sync.Mutex
			group errgroup.Group
		)
		for _, backend := range backends[primaryIdx+1:] {
			backend := backend
			group.Go(func() error {
				locator, err := s.putOne(ctx, backend, data, tags)
				if err != nil {
					log.Warn("redundant backend write failed", "backend", backend.Name(), "err", err)
					return nil
				}
				mu.Lock()
				locators = append(locators, interfaces.StorageLocator{Scheme: backend.Scheme(), Locator: locator})
				mu.Unlock()
				return nil
			})
		}
		_ = group.Wait()
	}

	return locators, primaryIdx, nil
}

func (s *Service) putOne(ctx context.Context, backend interfaces.StorageBackend, data []byte, tags map[string]string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	locator, err := backend.Put(callCtx, data, tags)
	if err != nil {
		metrics.BackendOpsTotal.WithLabelValues(backend.Name(), "put", "error").Inc()
		return "", err
	}
	metrics.BackendOpsTotal.WithLabelValues(backend.Name(), "put", "ok").Inc()
	return locator, nil
}

func (s *Service) register(ctx context.Context, id interfaces.ContentID, meta interfaces.DocumentMeta, at time.Time, owner interfaces.Identity) (interfaces.RecordRef, error) {
	if s.registrar == nil {
		return interfaces.RecordRef{}, interfaces.ErrNoSigner
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	ref, err := s.registrar.Register(callCtx, interfaces.RegisterParams{
		Hash:      id,
		Name:      meta.Name,
		FileType:  meta.FileType,
		Timestamp: at.Unix(),
		Owner:     owner,
	})
	if err != nil {
		metrics.LedgerOpsTotal.WithLabelValues("register", "error").Inc()
		return interfaces.RecordRef{}, err
	}
	metrics.LedgerOpsTotal.WithLabelValues("register", "ok").Inc()
	return ref, nil
}
