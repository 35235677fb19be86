package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/tbourn/go-study-backend/internal/domain"
	"github.com/tbourn/go-study-backend/internal/inference"
	"github.com/tbourn/go-study-backend/internal/services"
)

func TestDescribe(t *testing.T) {
	existing := &domain.Feedback{ID: "f1", Rating: "negative"}
	cases := []struct {
		name   string
		err    error
		status int
		code   string
		check  func(t *testing.T, r ErrorResponse)
	}{
		{
			name: "validation", err: &services.ValidationError{Field: "grade", Reason: "must be between 5 and 10"},
			status: http.StatusBadRequest, code: ErrCodeBadRequest,
			check: func(t *testing.T, r ErrorResponse) {
				if r.Field != "grade" || r.Message != "grade: must be between 5 and 10" {
					t.Fatalf("resp=%+v", r)
				}
			},
		},
		{name: "not found", err: fmt.Errorf("load: %w", services.ErrNotFound), status: http.StatusNotFound, code: ErrCodeNotFound},
		{
			name: "duplicate feedback", err: &services.FeedbackConflictError{Existing: existing},
			status: http.StatusConflict, code: ErrCodeConflict,
			check: func(t *testing.T, r ErrorResponse) {
				if r.ExistingRating != "negative" || r.Existing != existing {
					t.Fatalf("resp=%+v", r)
				}
			},
		},
		{
			name:   "upstream",
			err:    &services.UpstreamError{ConversationID: "c1", Kind: inference.KindOffline, Err: errors.New("refused")},
			status: http.StatusServiceUnavailable, code: ErrCodeUpstreamUnavailable,
			check: func(t *testing.T, r ErrorResponse) {
				if r.ConversationID != "c1" {
					t.Fatalf("resp=%+v", r)
				}
			},
		},
		{name: "archived", err: services.ErrArchived, status: http.StatusConflict, code: ErrCodeArchived},
		{name: "concurrent", err: services.ErrConcurrentUpdate, status: http.StatusConflict, code: ErrCodeConflict},
		{name: "transition", err: services.ErrInvalidTransition, status: http.StatusConflict, code: ErrCodeConflict},
		{
			name: "unknown", err: errors.New("disk on fire"),
			status: http.StatusInternalServerError, code: ErrCodeInternal,
			check: func(t *testing.T, r ErrorResponse) {
				if r.Message == "disk on fire" {
					t.Fatal("internal error text leaked to the client")
				}
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, resp := describe(tc.err)
			if status != tc.status || resp.Code != tc.code {
				t.Fatalf("got %d/%s want %d/%s", status, resp.Code, tc.status, tc.code)
			}
			if tc.check != nil {
				tc.check(t, resp)
			}
		})
	}
}
