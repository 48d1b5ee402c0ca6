// Package httpserver provides the HTTP API for the document vault: the
// upload, download and lifecycle endpoints backed by the document
// pipeline, plus health, drain and pprof endpoints for operations.
//
// The server runs the API and the Prometheus metrics listener on
// separate addresses and supports graceful drain for rolling restarts.
package httpserver
