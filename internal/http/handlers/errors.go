// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package), and failService, the single place
// where service errors become statuses. These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., upstream_unavailable, archived) are reserved for
//     business logic errors that cannot be conveyed by status alone.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Mapping:
//
//	*services.ValidationError      400 bad_request (with field)
//	services.ErrNotFound           404 not_found (missing and foreign look the same)
//	*services.FeedbackConflictError 409 conflict (with the existing rating)
//	services.ErrArchived           409 archived
//	services.ErrConcurrentUpdate   409 conflict
//	services.ErrInvalidTransition  409 conflict
//	*services.UpstreamError        503 upstream_unavailable (with conversationId)
//	anything else                  500 internal_error
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-study-backend/internal/http/middleware"
	"github.com/tbourn/go-study-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeUpstreamUnavailable = "upstream_unavailable"
	ErrCodeArchived            = "archived"
	ErrCodeMethodNotAllowed    = "method_not_allowed"
)

// failService translates a service error into the error envelope.
func failService(c *gin.Context, err error) {
	status, resp := describe(err)
	if status == http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled service error")
	}
	abort(c, status, resp)
}

// describe maps a service error to its status and envelope.
func describe(err error) (int, ErrorResponse) {
	var (
		verr     *services.ValidationError
		conflict *services.FeedbackConflictError
		upstream *services.UpstreamError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrorResponse{
			Code:    ErrCodeBadRequest,
			Message: verr.Error(),
			Field:   verr.Field,
		}
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Code: ErrCodeNotFound, Message: "resource not found"}
	case errors.As(err, &conflict):
		resp := ErrorResponse{Code: ErrCodeConflict, Message: "feedback already exists"}
		if conflict.Existing != nil {
			resp.ExistingRating = conflict.Existing.Rating
			resp.Existing = conflict.Existing
			resp.Message = "already rated: " + conflict.Existing.Rating
		}
		return http.StatusConflict, resp
	case errors.As(err, &upstream):
		return http.StatusServiceUnavailable, ErrorResponse{
			Code:           ErrCodeUpstreamUnavailable,
			Message:        "answer service unavailable, retry with the same conversationId",
			ConversationID: upstream.ConversationID,
		}
	case errors.Is(err, services.ErrArchived):
		return http.StatusConflict, ErrorResponse{Code: ErrCodeArchived, Message: "conversation is archived"}
	case errors.Is(err, services.ErrConcurrentUpdate),
		errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, ErrorResponse{Code: ErrCodeConflict, Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Code: ErrCodeInternal, Message: "internal server error"}
	}
}
