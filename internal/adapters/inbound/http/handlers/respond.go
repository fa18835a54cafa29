package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cartloom/storefront/internal/adapters/inbound/http/middleware"
	"github.com/cartloom/storefront/internal/ratelimit"
	"github.com/cartloom/storefront/pkg/errclass"
	"github.com/cartloom/storefront/pkg/logger"
)

const apiVersion = "v1"

type (
	responseMeta struct {
		RequestID  string `json:"requestId"`
		APIVersion string `json:"apiVersion"`
	}

	// EnvelopedResponse wraps success payloads with request metadata.
	EnvelopedResponse struct {
		Data any          `json:"data"`
		Meta responseMeta `json:"meta"`
	}

	// ErrorResponse is the error body shape for every failure path.
	// Classification and retry guidance let clients decide whether a
	// retry is worth attempting.
	ErrorResponse struct {
		Error          string         `json:"error"`
		Code           string         `json:"code,omitempty"`
		Classification errclass.Class `json:"classification"`
		Retryable      bool           `json:"retryable"`
		RetryAfterMs   int64          `json:"retryAfterMs,omitempty"`
	}
)

func newMeta(r *http.Request) responseMeta {
	return responseMeta{
		RequestID:  middleware.GetRequestID(r.Context()),
		APIVersion: apiVersion,
	}
}

// JSON writes an enveloped success response.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(EnvelopedResponse{
		Data: data,
		Meta: newMeta(r),
	})
}

// InternalError classifies an unexpected error, logs its details, and
// answers with a generic body. The raw error text never reaches the
// client.
func InternalError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error, operation string) {
	class := errclass.Classify(err)
	guidance := errclass.RetryGuidance(class)

	reqLogger := log.WithContext(r.Context())
	reqLogger.Error().
		Err(err).
		Str("operation", operation).
		Str("classification", string(class)).
		Msg("request failed")

	writeError(w, http.StatusInternalServerError, ErrorResponse{
		Error:          "An unexpected error occurred. Please try again.",
		Classification: class,
		Retryable:      guidance.Retryable,
		RetryAfterMs:   guidance.RetryAfter.Milliseconds(),
	})
}

// The expected-error builders bypass classification: the caller already
// knows the cause and supplies the user-facing message.

func BadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrorResponse{
		Error:          message,
		Code:           "BAD_REQUEST",
		Classification: errclass.Validation,
	})
}

func Unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrorResponse{
		Error:          message,
		Code:           "UNAUTHORIZED",
		Classification: errclass.Auth,
	})
}

func Forbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrorResponse{
		Error:          message,
		Code:           "FORBIDDEN",
		Classification: errclass.Auth,
	})
}

func NotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrorResponse{
		Error:          message,
		Code:           "NOT_FOUND",
		Classification: errclass.Validation,
	})
}

func ServerError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrorResponse{
		Error:          message,
		Code:           "SERVER_ERROR",
		Classification: errclass.Unknown,
		Retryable:      true,
		RetryAfterMs:   (2 * time.Second).Milliseconds(),
	})
}

func Conflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrorResponse{
		Error:          message,
		Code:           "DUPLICATE_REQUEST",
		Classification: errclass.Validation,
	})
}

func ServiceUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrorResponse{
		Error:          message,
		Code:           "SERVICE_UNAVAILABLE",
		Classification: errclass.Infrastructure,
		Retryable:      true,
		RetryAfterMs:   (5 * time.Second).Milliseconds(),
	})
}

// RateLimited shapes a 429 from a fixed-window denial: Retry-After in
// seconds, X-RateLimit-Reset as an ISO timestamp, and a JSON body.
func RateLimited(w http.ResponseWriter, status ratelimit.Status) {
	retryAfter := time.Until(status.ResetAt)
	if retryAfter < 0 {
		retryAfter = 0
	}

	w.Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()+0.5), 10))
	w.Header().Set("X-RateLimit-Reset", status.ResetAt.UTC().Format(time.RFC3339))

	writeError(w, http.StatusTooManyRequests, ErrorResponse{
		Error:          "Too many requests, please try again later",
		Code:           "RATE_LIMIT_EXCEEDED",
		Classification: errclass.Transient,
		Retryable:      true,
		RetryAfterMs:   retryAfter.Milliseconds(),
	})
}

func writeError(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}
