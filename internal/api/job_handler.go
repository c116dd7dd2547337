package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/api/shared"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/platform/logger"
	"github.com/phrazzld/scry-jobs/internal/ratelimit"
)

// JobQueue is the subset of the job queue used by JobHandler.
type JobQueue interface {
	CreateJob(ctx context.Context, jobType domain.JobType, userID uuid.UUID, payload json.RawMessage, priority int) (*domain.Job, error)
	GetJob(ctx context.Context, id, userID uuid.UUID) (*domain.Job, error)
	CheckRateLimit(ctx context.Context, userID uuid.UUID, jobType domain.JobType) (ratelimit.Decision, error)
	Limiter() *ratelimit.Limiter
}

// JobHandler serves the job endpoints.
type JobHandler struct {
	queue  JobQueue
	logger *slog.Logger
	now    func() time.Time
}

// JobHandlerOption configures a JobHandler.
type JobHandlerOption func(*JobHandler)

// WithHandlerClock sets the clock used to compute Retry-After.
func WithHandlerClock(now func() time.Time) JobHandlerOption {
	return func(h *JobHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(queue JobQueue, logger *slog.Logger, opts ...JobHandlerOption) *JobHandler {
	if queue == nil {
		panic("job queue cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &JobHandler{
		queue:  queue,
		logger: logger.With(slog.String("component", "job_handler")),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CreateJob handles POST /jobs.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := getUserIDFromContext(r)
	if !ok {
		HandleAPIError(w, r, ErrUnauthenticated, "")
		return
	}

	var req CreateJobRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	job, err := h.queue.CreateJob(r.Context(), domain.JobType(req.Type), userID, req.Payload, req.Priority)
	if err != nil {
		var exceeded *ratelimit.ExceededError
		if errors.As(err, &exceeded) {
			h.respondRateLimited(w, r, exceeded)
			return
		}
		HandleAPIError(w, r, err, "Failed to create job")
		return
	}

	log.Debug("job accepted",
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)))

	w.Header().Set("Location", "/api/jobs/"+job.ID.String())
	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToResponse(job))
}

// GetJob handles GET /jobs/{id}.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, jobID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	job, err := h.queue.GetJob(r.Context(), jobID, userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get job")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}

// GetRateLimit handles GET /rate-limits/{type}.
func (h *JobHandler) GetRateLimit(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		HandleAPIError(w, r, ErrUnauthenticated, "")
		return
	}

	jobType := domain.JobType(chi.URLParam(r, "type"))
	decision, err := h.queue.CheckRateLimit(r.Context(), userID, jobType)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to check rate limit")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK,
		decisionToResponse(jobType, h.queue.Limiter().Policy(), decision))
}

func (h *JobHandler) respondRateLimited(w http.ResponseWriter, r *http.Request, exceeded *ratelimit.ExceededError) {
	retryAfter := int(math.Ceil(exceeded.RetryAfter(h.now()).Seconds()))

	logger.FromContextOrDefault(r.Context(), h.logger).Warn("job creation rate limited",
		slog.Int("retry_after_seconds", retryAfter),
		slog.Time("reset_at", exceeded.ResetAt))

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	shared.RespondWithJSON(w, r, http.StatusTooManyRequests, RateLimitErrorResponse{
		Error:             GetSafeErrorMessage(exceeded),
		Remaining:         exceeded.Remaining,
		ResetAt:           exceeded.ResetAt,
		RetryAfterSeconds: retryAfter,
		TraceID:           shared.GetTraceID(r.Context()),
	})
}
