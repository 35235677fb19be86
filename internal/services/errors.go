// Package services defines the business logic for queries, conversations,
// feedback, history and profiles. This file centralizes service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/go-study-backend/internal/domain"
	"github.com/tbourn/go-study-backend/internal/inference"
)

var (
	// ErrValidation marks malformed or out-of-range input. It is raised before
	// any side effect.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates that the resource does not exist or is not owned
	// by the caller. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateFeedback is returned when the caller already rated the
	// message. It is wrapped by *FeedbackConflictError.
	ErrDuplicateFeedback = errors.New("feedback already exists")

	// ErrUpstreamUnavailable is returned when the inference service failed.
	// It is wrapped by *UpstreamError.
	ErrUpstreamUnavailable = errors.New("answer service unavailable")

	// ErrConcurrentUpdate is returned when a conversation kept changing
	// underneath a write.
	ErrConcurrentUpdate = errors.New("conversation was modified concurrently")

	// ErrArchived is returned when a query targets an archived conversation.
	ErrArchived = errors.New("conversation is archived")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// FeedbackConflictError carries the record that already exists for the
// (conversation, message, user) tuple.
type FeedbackConflictError struct {
	Existing *domain.Feedback
}

func (e *FeedbackConflictError) Error() string {
	return fmt.Sprintf("feedback already exists with rating %q", e.Existing.Rating)
}

func (e *FeedbackConflictError) Unwrap() error { return ErrDuplicateFeedback }

// UpstreamError reports a failed generation. The user's question has already
// been stored in ConversationID when this is returned.
type UpstreamError struct {
	ConversationID string
	IsNew          bool
	Kind           inference.Kind
	Err            error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("answer service unavailable (%s): %v", e.Kind, e.Err)
}

// Unwrap exposes both the sentinel and the inference error.
func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstreamUnavailable, e.Err} }
