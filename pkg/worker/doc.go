// Package worker provides the fixed-size pool that drains the ingestion queue.
//
// A Worker polls the orchestrator for claimable jobs, hands them to N
// goroutines over a channel and keeps each claim alive with heartbeats while
// the pipeline runs. Each job runs end to end on one goroutine. Cancelling the
// context stops claiming and waits for in-flight jobs to finish.
package worker
