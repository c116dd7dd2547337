// Package store defines the persistence boundary of the job engine: the job
// store, which is the durable queue and the sole point of concurrency
// control, and the learning-entity stores handlers write through.
//
// Implementations live in platform/postgres and platform/memory.
package store
