package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/generation"
	"github.com/phrazzld/scry-jobs/internal/jobs"
	"github.com/phrazzld/scry-jobs/internal/store"
)

// Deps holds the collaborators the handlers need.
type Deps struct {
	// Transactor groups multi-store writes into one transaction.
	Transactor store.Transactor
	// Stores serves reads outside a transaction.
	Stores store.Stores

	Content     generation.ContentGenerator
	Hierarchy   generation.HierarchyGenerator
	Distractors generation.DistractorGenerator

	Logger *slog.Logger
}

func (d Deps) validate() error {
	switch {
	case d.Transactor == nil:
		return errors.New("transactor cannot be nil")
	case d.Stores.Goals == nil || d.Stores.Messages == nil || d.Stores.Nodes == nil || d.Stores.Cards == nil:
		return errors.New("stores cannot be nil")
	case d.Content == nil:
		return errors.New("content generator cannot be nil")
	case d.Hierarchy == nil:
		return errors.New("hierarchy generator cannot be nil")
	case d.Distractors == nil:
		return errors.New("distractor generator cannot be nil")
	}
	return nil
}

// Register binds every handler in this package to its job type.
func Register(r *jobs.Registry, deps Deps) error {
	if err := deps.validate(); err != nil {
		return fmt.Errorf("invalid handler dependencies: %w", err)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	content := NewContentGenerationHandler(deps)
	hierarchy := NewHierarchyGenerationHandler(deps)
	distractors := NewDistractorGenerationHandler(deps)

	for jobType, h := range map[domain.JobType]jobs.HandlerFunc{
		domain.JobTypeContentGeneration:    content.Handle,
		domain.JobTypeHierarchyGeneration:  hierarchy.Handle,
		domain.JobTypeDistractorGeneration: distractors.Handle,
	} {
		if err := r.Register(jobType, h); err != nil {
			return err
		}
	}
	return nil
}

// classifyGenerationError marks generator errors that a retry cannot fix as
// permanent.
func classifyGenerationError(err error) error {
	if errors.Is(err, generation.ErrContentBlocked) ||
		errors.Is(err, generation.ErrInvalidConfig) ||
		errors.Is(err, generation.ErrEmptyInput) {
		return jobs.Permanent(err)
	}
	return err
}

// decode unmarshals and validates a payload. A payload that cannot be
// decoded never will be, so the error is permanent.
func decode(raw []byte, dst jobs.Payload) error {
	if err := jobs.DecodePayload(raw, dst); err != nil {
		return jobs.Permanent(err)
	}
	return nil
}
