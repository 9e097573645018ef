// Package orchestrator owns the ingestion job state machine.
//
// This package includes:
//   - Orchestrator: enqueues documents, claims jobs and turns pipeline results into transitions
//   - Review operations (approve, reject, revise) for jobs waiting on a human
//   - Hook registration and event subscription for monitoring
//   - Storage retry with exponential backoff
//
// Only the Orchestrator writes IngestionJob.status. Workers call Claim, Heartbeat
// and Process; the review gateway calls Approve, Reject and Revise.
package orchestrator
