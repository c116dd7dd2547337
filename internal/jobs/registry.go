package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
)

// HandlerFunc executes one job. It receives the job's payload and owner and
// returns the result stored on the job when it completes. Returning an error
// schedules a retry unless the error is Permanent or attempts are exhausted.
type HandlerFunc func(ctx context.Context, payload json.RawMessage, userID uuid.UUID) (json.RawMessage, error)

// Registry maps job types to handlers. Only the types in domain.JobTypes
// may be registered.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.JobType]HandlerFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.JobType]HandlerFunc)}
}

// Register binds h to jobType.
func (r *Registry) Register(jobType domain.JobType, h HandlerFunc) error {
	if !jobType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNilHandler, jobType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[jobType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, jobType)
	}
	r.handlers[jobType] = h
	return nil
}

// Get returns the handler for jobType or ErrUnknownJobType.
func (r *Registry) Get(jobType domain.JobType) (HandlerFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("%w: no handler registered for %q", ErrUnknownJobType, jobType)
	}
	return h, nil
}

// Types returns the registered job types in sorted order.
func (r *Registry) Types() []domain.JobType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]domain.JobType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
