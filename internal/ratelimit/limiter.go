package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
)

// Default policy values
const (
	DefaultLimit  = 20
	DefaultWindow = 60 * time.Minute
)

// Policy configures the sliding window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// DefaultPolicy returns 20 jobs per 60 minutes.
func DefaultPolicy() Policy {
	return Policy{Limit: DefaultLimit, Window: DefaultWindow}
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// WindowUsage describes the jobs counted in a window. Oldest is the
// creation time of the oldest counted job and is zero when Count is 0.
type WindowUsage struct {
	Count  int
	Oldest time.Time
}

// UsageCounter reports how many jobs of a type a user created strictly
// after since.
type UsageCounter interface {
	WindowUsage(ctx context.Context, userID uuid.UUID, jobType domain.JobType, since time.Time) (WindowUsage, error)
}

// Limiter evaluates sliding-window admission.
type Limiter struct {
	policy Policy
	now    func() time.Time
}

// NewLimiter creates a Limiter. Non-positive policy values fall back to
// the defaults.
func NewLimiter(policy Policy) *Limiter {
	if policy.Limit <= 0 {
		policy.Limit = DefaultLimit
	}
	if policy.Window <= 0 {
		policy.Window = DefaultWindow
	}
	return &Limiter{policy: policy, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock returns a copy of the limiter that reads time from now.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	cp := *l
	cp.now = now
	return &cp
}

// Policy returns the limiter's policy.
func (l *Limiter) Policy() Policy {
	return l.policy
}

// Now returns the limiter's current time.
func (l *Limiter) Now() time.Time {
	return l.now()
}

// WindowStart returns the exclusive lower bound of the window ending at now.
func (l *Limiter) WindowStart(now time.Time) time.Time {
	return now.Add(-l.policy.Window)
}

// Evaluate turns window usage into a decision at now.
func (l *Limiter) Evaluate(usage WindowUsage, now time.Time) Decision {
	remaining := l.policy.Limit - usage.Count
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now
	if usage.Count > 0 {
		resetAt = usage.Oldest.Add(l.policy.Window)
	}

	return Decision{
		Allowed:   usage.Count < l.policy.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// CheckRateLimit reads the user's usage from counter and evaluates it
// without admitting anything. A counter failure yields a denied decision
// and an error wrapping ErrUnavailable.
func (l *Limiter) CheckRateLimit(
	ctx context.Context,
	counter UsageCounter,
	userID uuid.UUID,
	jobType domain.JobType,
) (Decision, error) {
	now := l.now()
	usage, err := counter.WindowUsage(ctx, userID, jobType, l.WindowStart(now))
	if err != nil {
		return Decision{Allowed: false, Remaining: 0, ResetAt: now.Add(l.policy.Window)},
			fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return l.Evaluate(usage, now), nil
}

// Admit is CheckRateLimit for the creation path: a denied decision is
// returned as an *ExceededError. Callers must hold whatever lock makes the
// subsequent insert atomic with the count.
func (l *Limiter) Admit(
	ctx context.Context,
	counter UsageCounter,
	userID uuid.UUID,
	jobType domain.JobType,
) (Decision, error) {
	d, err := l.CheckRateLimit(ctx, counter, userID, jobType)
	if err != nil {
		return d, err
	}
	if !d.Allowed {
		return d, &ExceededError{Remaining: d.Remaining, ResetAt: d.ResetAt}
	}
	return d, nil
}
