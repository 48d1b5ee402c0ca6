// Package storage provides the backend adapters for the document
// pipeline: pluggable put/get implementations over heterogeneous
// storage networks.
//
// Available backends:
//
//   - IPFS for fast, cheap decentralized storage (locator: CID)
//   - S3-compatible object storage for the archival tier, including S3
//     gateways to permanent storage networks (locator: object key)
//   - HashiCorp Vault KV v2 as a private tier for restricted documents
//   - Local filesystem for development and testing
//
// # Storage URI Format
//
// Backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Examples:
//
//   - ipfs://127.0.0.1:5001/?public_gateway=https://ipfs.io
//   - s3://ACCESS:SECRET@bucket-name/prefix/?region=us-west-2
//   - vault://TOKEN@vault.example.com:8200/secret/docvault?insecure=1
//   - file:///var/lib/docvault/
//
// # Contract
//
// All backends implement interfaces.StorageBackend: Put returns an
// opaque locator, Get retrieves by locator, PublicURL derives a display
// URL without network access. Adapters never retry internally; ordered
// fallback across backends is the orchestrators' job. Failures map to
// the sentinel errors ErrContentNotFound, ErrBackendUnavailable and
// ErrBackendRejected in the interfaces package.
package storage
