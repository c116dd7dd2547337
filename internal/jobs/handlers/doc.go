// Package handlers implements the job handlers registered with the
// processor: card generation from a message or hierarchy node, hierarchy
// generation with fan-out to per-node card jobs, and distractor generation
// for existing cards.
//
// Handlers never change a job's status. They return a result or an error
// and the processor applies the transition. Errors wrapped with
// jobs.Permanent fail the job without further retries.
package handlers
