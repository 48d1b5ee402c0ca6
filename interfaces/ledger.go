package interfaces

import (
	"context"
	"errors"
)

var (
	// ErrRegistrationFailed is returned when the ledger transaction is
	// rejected (invalid signer, insufficient fee, network partition).
	ErrRegistrationFailed = errors.New("ledger registration failed")

	// ErrRecordNotFound is returned when a record reference does not
	// resolve to a ledger entry.
	ErrRecordNotFound = errors.New("ledger record not found")

	// ErrNoSigner is returned when a state-changing ledger operation is
	// attempted without a signing principal configured.
	ErrNoSigner = errors.New("no signing principal configured")
)

// RegisterParams is the tuple bound into an immutable ledger entry.
type RegisterParams struct {
	Hash      ContentID
	Name      string
	FileType  string
	Timestamp int64
	Owner     Identity
}

// LedgerRecord is the tuple a record reference resolves to.
type LedgerRecord struct {
	Hash       ContentID
	Name       string
	FileType   string
	Timestamp  int64
	Owner      Identity
	Version    uint32
	Status     DocumentStatus
	Signatures uint64
}

// LedgerRegistrar registers content hashes on an append-only ledger and
// resolves references back for verification.
//
// Register is not idempotent; callers wanting at-most-one registration
// per hash must check the record's LedgerRecordRef before calling.
type LedgerRegistrar interface {
	// Register creates an immutable ledger entry binding the params and
	// returns its reference. Fails with ErrRegistrationFailed if the
	// transaction is rejected.
	Register(ctx context.Context, params RegisterParams) (RecordRef, error)

	// Resolve fetches the bound tuple. Fails with ErrRecordNotFound if
	// the reference does not resolve.
	Resolve(ctx context.Context, ref RecordRef) (*LedgerRecord, error)

	// Verify resolves ref and compares the bound hash to expected. A
	// mismatch is data, not a fault: it returns (false, nil).
	Verify(ctx context.Context, ref RecordRef, expected ContentID) (bool, error)

	// Sign appends a signature entry to an existing ledger record.
	Sign(ctx context.Context, ref RecordRef, signatureHash ContentID) error
}

// Signer is an explicit signing principal: it exposes its public ledger
// identity and authorizes payload digests on behalf of it.
type Signer interface {
	// PublicIdentity returns the ledger address operations are attributed to.
	PublicIdentity() Identity

	// Authorize signs a 32-byte payload digest and returns the raw
	// recoverable signature.
	Authorize(digest [32]byte) ([]byte, error)
}
