package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType identifies the kind of work a job performs. The set is closed:
// only the constants below are valid.
type JobType string

// Job type values
const (
	JobTypeContentGeneration    JobType = "content_generation"
	JobTypeDistractorGeneration JobType = "distractor_generation"
	JobTypeHierarchyGeneration  JobType = "hierarchy_generation"
)

// JobTypes lists every valid job type.
var JobTypes = []JobType{
	JobTypeContentGeneration,
	JobTypeDistractorGeneration,
	JobTypeHierarchyGeneration,
}

// Valid reports whether t is one of the known job types.
func (t JobType) Valid() bool {
	for _, known := range JobTypes {
		if t == known {
			return true
		}
	}
	return false
}

// JobStatus represents where a job is in its lifecycle.
type JobStatus string

// Job status values
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition can leave s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Job defaults
const (
	DefaultMaxAttempts = 3
	DefaultPriority    = 0
)

// Job validation and state machine errors
var (
	ErrJobIDEmpty       = errors.New("job ID cannot be empty")
	ErrJobUserIDEmpty   = errors.New("job user ID cannot be empty")
	ErrInvalidJobType   = errors.New("invalid job type")
	ErrInvalidJobStatus = errors.New("invalid job status")
	ErrJobPayloadEmpty  = errors.New("job payload cannot be empty")
	ErrJobPayloadJSON   = errors.New("job payload must be a JSON object")
	ErrInvalidMaxTries  = errors.New("max attempts must be at least 1")
	ErrNegativePriority = errors.New("priority cannot be negative")

	// ErrIllegalTransition is returned when a status change is not allowed
	// by the job state machine.
	ErrIllegalTransition = errors.New("illegal job status transition")
)

// Job is a persisted unit of asynchronous work.
type Job struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Type        JobType         `json:"type"`
	Status      JobStatus       `json:"status"`
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

// NewJob creates a pending job with a fresh ID and default max attempts.
// Returns an error wrapping ErrValidation if any field is invalid.
func NewJob(userID uuid.UUID, jobType JobType, payload json.RawMessage, priority int) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        jobType,
		Status:      JobStatusPending,
		Payload:     payload,
		MaxAttempts: DefaultMaxAttempts,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks the invariants that hold for a job in any state.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return fmt.Errorf("%w: %w", ErrValidation, ErrJobIDEmpty)
	}
	if j.UserID == uuid.Nil {
		return fmt.Errorf("%w: %w", ErrValidation, ErrJobUserIDEmpty)
	}
	if !j.Type.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidJobType, j.Type)
	}
	if !j.Status.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidJobStatus, j.Status)
	}
	if len(j.Payload) == 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrJobPayloadEmpty)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(j.Payload, &obj); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, ErrJobPayloadJSON)
	}
	if j.MaxAttempts < 1 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidMaxTries)
	}
	if j.Priority < 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrNegativePriority)
	}
	return nil
}

// Eligible reports whether a pending job may be claimed at now.
func (j *Job) Eligible(now time.Time) bool {
	if j.Status != JobStatusPending {
		return false
	}
	return j.NextRetryAt == nil || !j.NextRetryAt.After(now)
}

// ValidateTransition checks a status change against the job state machine:
//
//	pending -> processing
//	processing -> completed | pending | failed
//
// A retry (processing -> pending) needs attempts left. Failing needs the
// attempts exhausted unless the failure is permanent.
func ValidateTransition(job *Job, to JobStatus, permanent bool) error {
	from := job.Status
	switch {
	case from == JobStatusPending && to == JobStatusProcessing:
		if job.Attempts >= job.MaxAttempts {
			return fmt.Errorf("%w: %s -> %s with %d/%d attempts used",
				ErrIllegalTransition, from, to, job.Attempts, job.MaxAttempts)
		}
		return nil
	case from == JobStatusProcessing && to == JobStatusCompleted:
		return nil
	case from == JobStatusProcessing && to == JobStatusPending:
		if job.Attempts >= job.MaxAttempts {
			return fmt.Errorf("%w: %s -> %s with attempts exhausted (%d/%d)",
				ErrIllegalTransition, from, to, job.Attempts, job.MaxAttempts)
		}
		return nil
	case from == JobStatusProcessing && to == JobStatusFailed:
		if !permanent && job.Attempts < job.MaxAttempts {
			return fmt.Errorf("%w: %s -> %s with %d/%d attempts used and a retryable error",
				ErrIllegalTransition, from, to, job.Attempts, job.MaxAttempts)
		}
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}
