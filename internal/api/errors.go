package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/scry-jobs/internal/api/shared"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/jobs"
	"github.com/phrazzld/scry-jobs/internal/ratelimit"
	"github.com/phrazzld/scry-jobs/internal/service/auth"
	"github.com/phrazzld/scry-jobs/internal/store"
)

// ErrUnauthenticated is returned when a handler runs without an
// authenticated user in the request context.
var ErrUnauthenticated = errors.New("user not authenticated")

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType):
		return http.StatusUnauthorized

	case errors.Is(err, ratelimit.ErrRateLimitExceeded):
		return http.StatusTooManyRequests

	case errors.Is(err, ratelimit.ErrUnavailable):
		return http.StatusServiceUnavailable

	case store.IsNotFoundError(err):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, jobs.ErrInvalidPayload),
		errors.Is(err, jobs.ErrUnknownJobType),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "Authentication required"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"

	case errors.Is(err, ratelimit.ErrRateLimitExceeded):
		return "Rate limit exceeded"
	case errors.Is(err, ratelimit.ErrUnavailable):
		return "Job creation is temporarily unavailable"

	case errors.Is(err, store.ErrJobNotFound):
		return "Job not found"
	case errors.Is(err, store.ErrGoalNotFound):
		return "Goal not found"
	case errors.Is(err, store.ErrMessageNotFound):
		return "Message not found"
	case errors.Is(err, store.ErrNodeNotFound):
		return "Node not found"
	case errors.Is(err, store.ErrCardNotFound):
		return "Card not found"
	case store.IsNotFoundError(err):
		return "Resource not found"

	case errors.Is(err, domain.ErrInvalidJobType),
		errors.Is(err, jobs.ErrUnknownJobType):
		return "Unknown job type"
	case errors.Is(err, domain.ErrNegativePriority):
		return "Priority cannot be negative"
	case errors.Is(err, domain.ErrJobPayloadEmpty),
		errors.Is(err, domain.ErrJobPayloadJSON):
		return "Payload must be a JSON object"
	case errors.Is(err, jobs.ErrInvalidPayload):
		return payloadMessage(err)
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request"

	default:
		return "An unexpected error occurred"
	}
}

// payloadMessage returns the payload validation detail after the sentinel
// prefix. The detail only ever names payload fields and tags.
func payloadMessage(err error) string {
	msg := err.Error()
	idx := strings.Index(msg, jobs.ErrInvalidPayload.Error())
	if idx < 0 {
		return "Invalid job payload"
	}
	detail := strings.TrimPrefix(msg[idx+len(jobs.ErrInvalidPayload.Error()):], ":")
	detail = strings.TrimSpace(detail)
	if detail == "" || strings.ContainsAny(detail, "{}\"") {
		return "Invalid job payload"
	}
	return "Invalid job payload: " + detail
}

// SanitizeValidationError turns a validator error into a short message that
// names the field and the failed rule.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	if strings.Contains(errMsg, "Field validation") {
		// Format: "Key: 'CreateJobRequest.Type' Error:Field validation for 'Type' failed on the 'required' tag"
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gte":
		return "too small"
	case "max", "lte":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the status and safe message for err. A non-empty
// fallback replaces the generic 500 message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	var opts []shared.ResponseOption
	if status == http.StatusUnauthorized {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
