// Package security provides validation, sanitization, and limits for the ingestion pipeline.
//
// This package includes:
//   - Upload filename and extension validation
//   - Error message sanitization before persistence
//   - Clamping functions to enforce safe limits on retries, workers and page sizes
//
// Most users should import the root package github.com/jdziat/recipe-ingest
// which re-exports these functions.
package security
