package document

import (
	"context"
	"fmt"
	"time"

	"github.com/docvault/docvault/interfaces"
	"github.com/docvault/docvault/metrics"
)

// MetaPatch is a partial metadata update. Nil fields are left as-is.
type MetaPatch struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UpdateMetadata applies a metadata patch to an active document. The
// content identity, version and locators are untouched.
func (s *Service) UpdateMetadata(ctx context.Context, id interfaces.ContentID, principal interfaces.Identity, patch MetaPatch) (*interfaces.DocumentRecord, error) {
	record, err := s.mutableRecord(ctx, id, principal)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		record.Name = *patch.Name
	}
	if patch.Description != nil {
		record.Description = *patch.Description
	}
	if patch.Tags != nil {
		record.Tags = patch.Tags
	}
	record.UpdatedAt = time.Now().UTC()

	if err := s.store.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("persisting metadata update: %w", err)
	}
	s.cache.SetRecord(id.String(), record, s.cacheTTL)
	return record, nil
}

// UpdateContent replaces a document's content. The new bytes get a new
// content identity, the version increments by one and the new content
// is stored and optionally re-registered on the ledger. The previous
// ledger entry stays on the ledger untouched; only the record's ref
// moves forward.
//
// Replacing content with byte-identical bytes is a no-op.
func (s *Service) UpdateContent(ctx context.Context, id interfaces.ContentID, principal interfaces.Identity, data []byte, opts interfaces.UploadOptions) (*interfaces.UploadResult, error) {
	record, err := s.mutableRecord(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	if err := s.validate(data, record.FileType); err != nil {
		return nil, err
	}

	newID := interfaces.ComputeID(data)
	if newID.Equal(record.ID) {
		return &interfaces.UploadResult{Record: record}, nil
	}

	backends := s.orderedBackends(opts.PreferredBackends)
	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: no usable backends", interfaces.ErrStorageFailed)
	}

	tags := map[string]string{
		"name":      record.Name,
		"file_type": record.FileType,
		"owner":     record.Owner.String(),
	}
	locators, _, err := s.storeContent(ctx, backends, data, tags, opts.Redundant, s.log.With("document", newID.String()))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updated := *record
	updated.ID = newID
	updated.FileSize = int64(len(data))
	updated.StorageLocators = locators
	updated.Version = record.Version + 1
	updated.UpdatedAt = now

	result := &interfaces.UploadResult{Record: &updated}
	if opts.RegisterOnLedger {
		meta := interfaces.DocumentMeta{Name: updated.Name, FileType: updated.FileType}
		ref, regErr := s.register(ctx, newID, meta, now, updated.Owner)
		if regErr != nil {
			s.log.Warn("ledger registration failed for updated content",
				"document", newID.String(), "err", regErr)
			result.RegistrationErr = regErr
		} else {
			updated.LedgerRecordRef = ref
		}
	}

	if err := s.store.Rekey(ctx, id, &updated); err != nil {
		return nil, fmt.Errorf("persisting content update: %w", err)
	}

	s.cache.DropRecord(id.String())
	s.cache.SetRecord(newID.String(), &updated, s.cacheTTL)
	s.cache.SetContent(newID.String(), data, s.cacheTTL)

	s.log.Info("document content updated", "document", newID.String(),
		"previous", id.String(), "version", updated.Version)
	return result, nil
}

// Archive moves a document to archived state. Locators, the ledger ref
// and all metadata stay on the record; only the status and UpdatedAt
// change. Archiving an archived document is a no-op.
func (s *Service) Archive(ctx context.Context, id interfaces.ContentID, principal interfaces.Identity) (*interfaces.DocumentRecord, error) {
	record, err := s.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanModify(record, principal) {
		return nil, interfaces.ErrNotAuthorized
	}
	if record.Status == interfaces.StatusArchived {
		return record, nil
	}

	record.Status = interfaces.StatusArchived
	record.UpdatedAt = time.Now().UTC()

	if err := s.store.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("persisting archive: %w", err)
	}
	s.cache.SetRecord(id.String(), record, s.cacheTTL)
	s.log.Info("document archived", "document", id.String())
	return record, nil
}

// Sign appends the principal's signature to the document's ledger entry
// and increments the signature count. Any principal may sign an active
// document, not just the owner. The signature payload is the hash of
// the document ID bound to the signing identity.
func (s *Service) Sign(ctx context.Context, id interfaces.ContentID, principal interfaces.Identity) (*interfaces.DocumentRecord, error) {
	if principal.IsZero() {
		return nil, interfaces.ErrNotAuthorized
	}
	record, err := s.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status == interfaces.StatusArchived {
		return nil, interfaces.ErrDocumentArchived
	}
	if s.registrar == nil || record.LedgerRecordRef.IsZero() {
		return nil, interfaces.ErrNoSigner
	}

	signatureHash := interfaces.ComputeID(append(id.Bytes(), principal[:]...))

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	if err := s.registrar.Sign(callCtx, record.LedgerRecordRef, signatureHash); err != nil {
		metrics.LedgerOpsTotal.WithLabelValues("sign", "error").Inc()
		return nil, fmt.Errorf("appending ledger signature: %w", err)
	}
	metrics.LedgerOpsTotal.WithLabelValues("sign", "ok").Inc()

	record.SignatureCount++
	record.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("persisting signature count: %w", err)
	}
	s.cache.SetRecord(id.String(), record, s.cacheTTL)
	return record, nil
}

// mutableRecord loads a record and enforces the mutation preconditions
// shared by every state-changing operation.
func (s *Service) mutableRecord(ctx context.Context, id interfaces.ContentID, principal interfaces.Identity) (*interfaces.DocumentRecord, error) {
	record, err := s.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanModify(record, principal) {
		return nil, interfaces.ErrNotAuthorized
	}
	if record.Status == interfaces.StatusArchived {
		return nil, interfaces.ErrDocumentArchived
	}
	return record, nil
}
