// Package ratelimit implements per-user, per-job-type sliding-window
// admission for job creation.
//
// The limiter does not own any state. It evaluates a WindowUsage read from
// a UsageCounter, which in practice is the job store itself, so admission
// and insertion can share one transaction.
package ratelimit
