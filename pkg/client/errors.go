package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes the API returns in its error envelope.
const (
	CodeBadRequest          = "bad_request"
	CodeUnauthorized        = "unauthorized"
	CodeNotFound            = "not_found"
	CodeConflict            = "conflict"
	CodeArchived            = "archived"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeRateLimited         = "too_many_requests"
)

// ErrStreamUnsupported is returned by StreamQuery when the server has no
// stream route.
var ErrStreamUnsupported = errors.New("client: streaming not supported by server")

// APIError is a non-2xx response decoded from the API error envelope, or an
// error frame of a stream (Status is 0 then).
type APIError struct {
	Status         int       `json:"-"`
	RequestID      string    `json:"request_id,omitempty"`
	Code           string    `json:"code"`
	Message        string    `json:"message"`
	Field          string    `json:"field,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	ExistingRating string    `json:"existingRating,omitempty"`
	Existing       *Feedback `json:"existing,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	s := fmt.Sprintf("%s: %s", e.Code, msg)
	if e.Status != 0 {
		s = fmt.Sprintf("%d %s", e.Status, s)
	}
	if e.Field != "" {
		s += " (field " + e.Field + ")"
	}
	if e.ConversationID != "" {
		s += " (conversation " + e.ConversationID + ")"
	}
	return s
}

// IsCode reports whether err is an *APIError with the given code.
func IsCode(err error, code string) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == code
}

// StatusOf returns the HTTP status of an *APIError, or 0.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}
