package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/ratelimit"
)

// CreateJobRequest defines the payload for the job creation endpoint.
type CreateJobRequest struct {
	Type     string          `json:"type"     validate:"required"`
	Payload  json.RawMessage `json:"payload"  validate:"required"`
	Priority int             `json:"priority" validate:"gte=0"`
}

// JobResponse is the client view of a job. The owner is implied by the
// authenticated request and is not echoed back.
type JobResponse struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	NextRetryAt *time.Time      `json:"next_retry_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RateLimitResponse reports a user's allowance for one job type.
type RateLimitResponse struct {
	Type          string    `json:"type"`
	Allowed       bool      `json:"allowed"`
	Limit         int       `json:"limit"`
	Remaining     int       `json:"remaining"`
	WindowSeconds int       `json:"window_seconds"`
	ResetAt       time.Time `json:"reset_at"`
}

// RateLimitErrorResponse is the body of a 429 response.
type RateLimitErrorResponse struct {
	Error             string    `json:"error"`
	Remaining         int       `json:"remaining"`
	ResetAt           time.Time `json:"reset_at"`
	RetryAfterSeconds int       `json:"retry_after_seconds"`
	TraceID           string    `json:"trace_id,omitempty"`
}

func jobToResponse(job *domain.Job) JobResponse {
	return JobResponse{
		ID:          job.ID,
		Type:        string(job.Type),
		Status:      string(job.Status),
		Payload:     job.Payload,
		Result:      job.Result,
		Error:       job.Error,
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		Priority:    job.Priority,
		NextRetryAt: job.NextRetryAt,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		UpdatedAt:   job.UpdatedAt,
	}
}

func decisionToResponse(jobType domain.JobType, policy ratelimit.Policy, d ratelimit.Decision) RateLimitResponse {
	return RateLimitResponse{
		Type:          string(jobType),
		Allowed:       d.Allowed,
		Limit:         policy.Limit,
		Remaining:     d.Remaining,
		WindowSeconds: int(policy.Window.Seconds()),
		ResetAt:       d.ResetAt,
	}
}
