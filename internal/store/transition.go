package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/phrazzld/scry-jobs/internal/domain"
)

// emptyResult is stored when a job completes without a result body, so a
// completed job always carries one.
var emptyResult = json.RawMessage(`{}`)

// ApplyTransition validates and applies a status change to job in place.
// It is shared by store implementations so every backend writes the same
// fields for the same transition. Returns ErrInvalidTransition if the
// change is illegal and ErrClaimLost if the update is fenced to a claim
// the job no longer carries.
func ApplyTransition(job *domain.Job, to domain.JobStatus, update JobUpdate, now time.Time) error {
	if update.ClaimAttempt > 0 &&
		(job.Status != domain.JobStatusProcessing || job.Attempts != update.ClaimAttempt) {
		return fmt.Errorf("%w: claimed at attempt %d, job is %s at attempt %d",
			ErrClaimLost, update.ClaimAttempt, job.Status, job.Attempts)
	}
	if err := domain.ValidateTransition(job, to, update.Permanent); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	}

	switch to {
	case domain.JobStatusProcessing:
		job.Attempts++
		job.StartedAt = &now
		job.NextRetryAt = nil
	case domain.JobStatusCompleted:
		job.Result = update.Result
		if len(job.Result) == 0 {
			job.Result = emptyResult
		}
		job.CompletedAt = &now
		job.NextRetryAt = nil
	case domain.JobStatusPending:
		job.Error = update.Error
		job.NextRetryAt = update.NextRetryAt
	case domain.JobStatusFailed:
		job.Error = update.Error
		job.CompletedAt = &now
		job.NextRetryAt = nil
	}

	job.Status = to
	job.UpdatedAt = now
	return nil
}
