// Package api handles incoming HTTP requests for the job engine: job
// creation, job status lookup and rate-limit inspection. It translates
// HTTP concerns into queue operations and maps internal errors to safe
// client responses.
package api
