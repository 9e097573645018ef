// Package storage provides the GORM persistence layer for ingestion state.
//
// This package includes:
//   - GormStorage: jobs, fingerprints and reviews on any GORM dialect
//   - Open/ConfigurePool: dialect selection and connection pooling
//
// The Storage interface is defined in pkg/core. SQLite and PostgreSQL are the
// supported dialects; claims on PostgreSQL use FOR UPDATE SKIP LOCKED.
package storage
