// Package jobs runs asynchronous generation work on top of the durable job
// store.
//
// Queue is the creation and inspection surface: it validates payloads,
// checks that referenced entities belong to the caller and admits jobs
// through the per-user rate limiter. Processor runs a fixed set of workers
// that claim jobs, dispatch them through a closed Registry of handlers and
// apply the resulting state transition. Failed attempts are rescheduled by
// writing next_retry_at with exponential backoff; there are no in-memory
// timers, so a restart loses nothing.
package jobs
