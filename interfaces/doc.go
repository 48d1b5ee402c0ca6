// Package interfaces defines core interfaces and types for the docvault
// system, separating interface definitions from implementations.
//
// The package provides contracts for the key components of the pipeline:
//
// # Content Identity
//
// ContentID: 32-byte SHA-256 hash serving both as document identity and
// as the integrity check during verification. ComputeID is pure and
// deterministic; two uploads of byte-identical content always yield the
// same ID.
//
// # Storage Interfaces
//
// StorageBackend: uniform put/get/public-URL capability over one
// concrete storage network (IPFS, S3-compatible archival, Vault, local
// files). Adapters never retry internally and are selected through a
// caller-ordered preference list.
//
// StorageBackendFactory: creates backends from URI strings and ordered
// adapter lists for the orchestrators.
//
// # Ledger Interfaces
//
// LedgerRegistrar: registers (hash, name, type, timestamp, owner) tuples
// as immutable records on an append-only ledger and resolves references
// back for verification. Verification mismatches are ordinary return
// values, never errors.
//
// Signer: explicit signing principal exposing its public identity and a
// digest-authorization capability, passed into the registrar.
//
// # Records
//
// DocumentRecord is the canonical unit of work; see its invariants. The
// error values in this package form the stable taxonomy the HTTP layer
// translates into response codes.
package interfaces
