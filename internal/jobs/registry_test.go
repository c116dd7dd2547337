package jobs_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(context.Context, json.RawMessage, uuid.UUID) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := jobs.NewRegistry()
	require.NoError(t, r.Register(domain.JobTypeContentGeneration, noopHandler))
	require.NoError(t, r.Register(domain.JobTypeDistractorGeneration, noopHandler))

	h, err := r.Get(domain.JobTypeContentGeneration)
	require.NoError(t, err)
	assert.NotNil(t, h)

	_, err = r.Get(domain.JobTypeHierarchyGeneration)
	assert.ErrorIs(t, err, jobs.ErrUnknownJobType)

	assert.Equal(t, []domain.JobType{
		domain.JobTypeContentGeneration,
		domain.JobTypeDistractorGeneration,
	}, r.Types())
}

func TestRegistryRejects(t *testing.T) {
	t.Parallel()

	r := jobs.NewRegistry()
	require.NoError(t, r.Register(domain.JobTypeContentGeneration, noopHandler))

	err := r.Register(domain.JobTypeContentGeneration, noopHandler)
	assert.ErrorIs(t, err, jobs.ErrDuplicateHandler)

	err = r.Register(domain.JobTypeHierarchyGeneration, nil)
	assert.ErrorIs(t, err, jobs.ErrNilHandler)

	err = r.Register(domain.JobType("summarize"), noopHandler)
	assert.ErrorIs(t, err, jobs.ErrUnknownJobType)
}
