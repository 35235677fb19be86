// Package services – ConversationService
//
// This file implements ConversationService, which exposes a single
// conversation to its owner: fetching it with its turn log, archiving and
// restoring it, and changing its grade/subject/language settings.
//
// Conversations are never hard-deleted; archival is the only delete
// primitive. Status moves active -> archived -> active and nothing else.
package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-study-backend/internal/domain"
	"github.com/tbourn/go-study-backend/internal/repo"
)

// ErrInvalidTransition is returned when archiving an archived conversation
// or restoring an active one.
var ErrInvalidTransition = errors.New("invalid status transition")

// ConversationRepo defines the repository contract required by
// ConversationService.
type ConversationRepo interface {
	// GetConversation loads a conversation with its messages, scoped to the owner.
	GetConversation(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Conversation, error)

	// GetConversationHeader loads the conversation row without messages.
	GetConversationHeader(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Conversation, error)

	// SetConversationStatus moves status from one value to another.
	SetConversationStatus(ctx context.Context, db *gorm.DB, id, userID, from, to string) error

	// UpdateConversationMetadata replaces the metadata if version still matches.
	UpdateConversationMetadata(ctx context.Context, db *gorm.DB, id, userID string, version int64, meta domain.ConversationMetadata) error
}

// ConversationService manages individual conversations.
type ConversationService struct {
	DB   *gorm.DB
	Repo ConversationRepo
}

// SettingsPatch lists the metadata fields to change. Nil fields are kept.
type SettingsPatch struct {
	Grade    *int
	Subject  *string
	Language *string
}

// Get returns the conversation with its messages. Missing and foreign
// conversations both yield ErrNotFound.
func (s *ConversationService) Get(ctx context.Context, userID, id string) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(
			attribute.String("conversation.id", id),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	c, err := s.Repo.GetConversation(ctx, s.DB, id, userID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return c, nil
}

// Archive soft-deletes an active conversation.
func (s *ConversationService) Archive(ctx context.Context, userID, id string) error {
	return s.transition(ctx, userID, id, domain.StatusActive, domain.StatusArchived)
}

// Restore reactivates an archived conversation.
func (s *ConversationService) Restore(ctx context.Context, userID, id string) error {
	return s.transition(ctx, userID, id, domain.StatusArchived, domain.StatusActive)
}

func (s *ConversationService) transition(ctx context.Context, userID, id, from, to string) error {
	err := s.Repo.SetConversationStatus(ctx, s.DB, id, userID, from, to)
	if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	// Nothing matched: tell "wrong status" apart from "not yours".
	if _, herr := s.Repo.GetConversationHeader(ctx, s.DB, id, userID); herr != nil {
		return mapNotFound(herr)
	}
	return ErrInvalidTransition
}

// UpdateSettings applies p to the conversation metadata and returns the
// updated conversation.
func (s *ConversationService) UpdateSettings(ctx context.Context, userID, id string, p SettingsPatch) (*domain.Conversation, error) {
	if p.Grade == nil && p.Subject == nil && p.Language == nil {
		return nil, invalid("settings", "at least one of grade, subject or language is required")
	}
	c, err := s.Repo.GetConversationHeader(ctx, s.DB, id, userID)
	if err != nil {
		return nil, mapNotFound(err)
	}

	meta := c.Metadata
	if p.Grade != nil {
		if *p.Grade < domain.MinGrade || *p.Grade > domain.MaxGrade {
			return nil, invalid("grade", "must be between 5 and 10")
		}
		meta.Grade = *p.Grade
	}
	if p.Subject != nil {
		sub, ok := normalizeSubject(*p.Subject)
		if !ok {
			return nil, invalid("subject", "is not a known subject")
		}
		meta.Subject = sub
	}
	if p.Language != nil {
		lang, ok := domain.ParseLanguage(strings.TrimSpace(*p.Language))
		if !ok {
			return nil, invalid("language", "must be english or hindi")
		}
		meta.Language = lang
	}

	if err := s.Repo.UpdateConversationMetadata(ctx, s.DB, id, userID, c.Version, meta); err != nil {
		if errors.Is(err, repo.ErrVersionConflict) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

func mapNotFound(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
