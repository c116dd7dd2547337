package jobs

import "errors"

// Engine errors
var (
	// ErrUnknownJobType is returned when no handler is registered for a type.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrDuplicateHandler is returned when a type already has a handler.
	ErrDuplicateHandler = errors.New("handler already registered for job type")

	// ErrInvalidPayload is returned when a payload cannot be decoded or fails validation.
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("job handler panicked")

	// ErrJobTimeout is returned when a handler outlives the execution timeout.
	ErrJobTimeout = errors.New("job exceeded execution timeout")
)

// PermanentError marks a handler failure that retrying cannot fix. The job
// fails immediately regardless of remaining attempts.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError. Permanent(nil) is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is or wraps a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
