// Package core provides the domain models and contracts for the recipe ingestion pipeline.
//
// This package contains:
//   - IngestionJob, RecipeFingerprint and IngestionReview models with GORM annotations
//   - the job state machine (Decide, CanTransition)
//   - Storage, RecipeStore, Parser, Translator and Detector contracts
//   - Event types emitted by the orchestrator
//   - Error types used to classify pipeline stage failures
//
// Most users should import the root package github.com/jdziat/recipe-ingest
// instead of this package directly.
package core
