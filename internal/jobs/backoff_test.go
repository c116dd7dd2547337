package jobs_test

import (
	"testing"
	"time"

	"github.com/phrazzld/scry-jobs/internal/jobs"
	"github.com/stretchr/testify/assert"
)

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{12, 2048 * time.Second},
		{13, time.Hour},
		{100, time.Hour},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, jobs.RetryDelay(tc.attempts), "attempts=%d", tc.attempts)
	}
}

func TestPermanent(t *testing.T) {
	t.Parallel()

	assert.NoError(t, jobs.Permanent(nil))

	err := jobs.Permanent(jobs.ErrInvalidPayload)
	assert.True(t, jobs.IsPermanent(err))
	assert.ErrorIs(t, err, jobs.ErrInvalidPayload)
	assert.False(t, jobs.IsPermanent(jobs.ErrInvalidPayload))
}
