// Package docstore persists document records durably. It is an external
// collaborator of the pipeline core: the orchestrators write records
// through it but never depend on its layout.
package docstore

import (
	"context"

	"github.com/docvault/docvault/interfaces"
)

// Store is the durable DocumentRecord store.
type Store interface {
	// Save inserts or overwrites the record keyed by its content ID.
	// Re-uploading byte-identical content converges on the same key.
	Save(ctx context.Context, record *interfaces.DocumentRecord) error

	// Get returns the record for a content ID, or ErrDocumentNotFound.
	Get(ctx context.Context, id interfaces.ContentID) (*interfaces.DocumentRecord, error)

	// Rekey replaces the record stored under oldID with the given record
	// under its new content ID. Used when a content update recomputes the
	// document identity.
	Rekey(ctx context.Context, oldID interfaces.ContentID, record *interfaces.DocumentRecord) error

	// List returns records owned by the given identity, newest first.
	List(ctx context.Context, owner interfaces.Identity, limit, offset int) ([]interfaces.DocumentRecord, error)
}
