// Package schedule runs recurring maintenance tasks.
//
// This package includes:
//   - Schedule interface for defining when a task runs next
//   - Every() for fixed-interval schedules and Parse() for cron expressions
//     and descriptors such as "@every 1m" or "@daily"
//   - Scheduler, which runs named tasks until its context is cancelled
//
// The ingestion service uses it for stale-claim recovery and for retention
// cleanup of archived documents.
package schedule
