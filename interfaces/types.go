package interfaces

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Identity is the 20-byte address of a signing principal on the ledger.
type Identity [20]byte

// NewIdentityFromHex parses a 40-character hex address, with or without a
// 0x prefix.
func NewIdentityFromHex(source string) (Identity, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 40 {
		return Identity{}, errors.New("invalid identity length: hex string must be 40 characters")
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var id Identity
	copy(id[:], raw)
	return id, nil
}

// String returns the 0x-prefixed hex representation.
func (id Identity) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// MarshalText encodes the identity as 0x-prefixed hex.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses a hex address.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := NewIdentityFromHex(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// DocumentStatus is the lifecycle state of a document record.
type DocumentStatus string

const (
	// StatusProcessing means no backend write has succeeded yet.
	StatusProcessing DocumentStatus = "processing"
	// StatusActive means at least one storage locator is recorded.
	StatusActive DocumentStatus = "active"
	// StatusArchived is set by explicit caller action. Provenance is kept.
	StatusArchived DocumentStatus = "archived"
)

// StorageLocator is one backend's opaque reference to stored content.
// The scheme selects the adapter, the locator is meaningful only to it.
type StorageLocator struct {
	Scheme  string `json:"scheme"`
	Locator string `json:"locator"`
}

// RecordRef is an opaque reference to an immutable ledger entry.
type RecordRef [32]byte

// NewRecordRefFromHex parses a 64-character hex reference.
func NewRecordRefFromHex(source string) (RecordRef, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return RecordRef{}, errors.New("invalid record ref length: hex string must be 64 characters")
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return RecordRef{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var ref RecordRef
	copy(ref[:], raw)
	return ref, nil
}

// String returns the 0x-prefixed hex representation.
func (r RecordRef) String() string {
	return "0x" + hex.EncodeToString(r[:])
}

// IsZero reports whether the reference is unset.
func (r RecordRef) IsZero() bool {
	return r == RecordRef{}
}

// MarshalText encodes the reference as 0x-prefixed hex.
func (r RecordRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses a hex reference.
func (r *RecordRef) UnmarshalText(text []byte) error {
	parsed, err := NewRecordRefFromHex(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// DocumentRecord is the canonical unit of work: a content identity plus
// everything needed to retrieve and verify the bytes later.
//
// Invariants:
//   - ID is a pure function of the content bytes of the current version.
//   - StorageLocators is append-only and never empty once Status != processing.
//   - Version starts at 1 and increases by exactly 1 per content update.
//   - LedgerRecordRef, once set, is never cleared.
type DocumentRecord struct {
	ID          ContentID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	FileType    string    `json:"file_type"`
	FileSize    int64     `json:"file_size"`

	StorageLocators []StorageLocator `json:"storage_locators"`
	LedgerRecordRef RecordRef        `json:"ledger_record_ref,omitempty"`

	Owner          Identity       `json:"owner"`
	Version        uint32         `json:"version"`
	Status         DocumentStatus `json:"status"`
	Tags           []string       `json:"tags,omitempty"`
	SignatureCount uint64         `json:"signature_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasLocator reports whether a locator for the given scheme is already
// recorded.
func (d *DocumentRecord) HasLocator(scheme string) bool {
	for _, loc := range d.StorageLocators {
		if loc.Scheme == scheme {
			return true
		}
	}
	return false
}

// DocumentMeta is the caller-supplied metadata accompanying an upload.
type DocumentMeta struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	FileType    string   `json:"file_type"`
	Tags        []string `json:"tags,omitempty"`
}

// UploadOptions controls backend selection and ledger registration for a
// single upload.
type UploadOptions struct {
	// PreferredBackends is the caller-ordered list of backend schemes to
	// try. Empty means the service's configured order. The orchestrator
	// never reorders it.
	PreferredBackends []string `json:"preferred_backends,omitempty"`

	// RegisterOnLedger requests an immutable ledger entry for the hash.
	RegisterOnLedger bool `json:"register_on_ledger"`

	// Redundant continues through remaining backends best-effort after
	// the first successful write.
	Redundant bool `json:"redundant"`
}

// DefaultUploadOptions returns the options used when the caller does not
// specify any: ledger registration on, single-backend write.
func DefaultUploadOptions() UploadOptions {
	return UploadOptions{RegisterOnLedger: true}
}

// UploadResult carries the assembled record plus the partial-success
// signal for ledger registration. A storage-durable upload whose ledger
// registration failed is still a success; RegistrationErr tells the
// caller the record has no ledger ref yet.
type UploadResult struct {
	Record          *DocumentRecord
	RegistrationErr error
}

// DownloadResult carries the retrieved bytes, the record they belong
// to and the verification outcome. Verified is false both on a local
// hash mismatch and on a ledger cross-check failure; the bytes are
// returned either way and the caller decides whether to trust them.
type DownloadResult struct {
	Record    *DocumentRecord
	Data      []byte
	Verified  bool
	FromCache bool
}

// AccessPolicy decides whether a principal may mutate a document record.
// The policy is an external collaborator; the default implementation
// only matches the record owner.
type AccessPolicy interface {
	CanModify(record *DocumentRecord, principal Identity) bool
}

// OwnerPolicy permits mutations by the record owner only.
type OwnerPolicy struct{}

func (OwnerPolicy) CanModify(record *DocumentRecord, principal Identity) bool {
	return !principal.IsZero() && record.Owner == principal
}

var (
	// ErrFileTooLarge is returned before any network call when content
	// exceeds the configured maximum size.
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

	// ErrUnsupportedType is returned before any network call when the
	// declared file type is not in the supported set.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrStorageFailed is returned when every configured backend failed
	// to store the content. The record never reaches active state.
	ErrStorageFailed = errors.New("all storage backends failed to store content")

	// ErrAllBackendsFailed is the terminal download failure after every
	// recorded locator has been exhausted.
	ErrAllBackendsFailed = errors.New("all storage backends failed to fetch content")

	// ErrDocumentNotFound is returned when a record does not exist in the
	// durable store.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrNotAuthorized is returned when the access policy rejects a
	// mutation.
	ErrNotAuthorized = errors.New("principal is not authorized to modify this document")

	// ErrDocumentArchived is returned when a mutation targets an archived
	// record.
	ErrDocumentArchived = errors.New("document is archived")
)
