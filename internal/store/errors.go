package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// Entity-specific variants below wrap it.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an insert would violate a unique constraint.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation or a
	// database constraint.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidTransition is returned by UpdateJobStatus when the requested
	// status change is not allowed from the job's current state.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrClaimLost is returned by UpdateJobStatus when the update is fenced
	// to a claim the caller no longer holds: the job left processing or was
	// claimed again since.
	ErrClaimLost = errors.New("job claim no longer held")

	// ErrNoJobAvailable is returned by ClaimNextJob when no job is eligible.
	ErrNoJobAvailable = errors.New("no job available")

	ErrJobNotFound       = fmt.Errorf("%w: job", ErrNotFound)
	ErrGoalNotFound      = fmt.Errorf("%w: goal", ErrNotFound)
	ErrMessageNotFound   = fmt.Errorf("%w: message", ErrNotFound)
	ErrHierarchyNotFound = fmt.Errorf("%w: hierarchy", ErrNotFound)
	ErrNodeNotFound      = fmt.Errorf("%w: node", ErrNotFound)
	ErrCardNotFound      = fmt.Errorf("%w: card", ErrNotFound)
)

// IsNotFoundError reports whether err is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
