// Package document implements the content pipeline: upload with
// validation, hashing and multi-backend storage, download with ordered
// locator fallback and hash verification, and the record lifecycle
// (metadata updates, content updates, archival, ledger signatures).
//
// The package depends only on the interfaces package contracts; the
// concrete storage adapters, the ledger client and the durable store
// are injected.
package document
