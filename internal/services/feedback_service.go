// Package services – FeedbackService
//
// This file implements FeedbackService, the ledger of per-message ratings.
// A user may rate each assistant message of their own conversations at most
// once; the rating can later be changed or withdrawn.
//
// Uniqueness of (conversation, message index, user) is enforced by a unique
// index. Two concurrent submissions are not serialized here: the loser's
// insert fails in the store and is turned into a *FeedbackConflictError
// carrying the winner's rating.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-study-backend/internal/domain"
	"github.com/tbourn/go-study-backend/internal/repo"
	"github.com/tbourn/go-study-backend/internal/utils"
)

// FeedbackInput is a rating submitted for one message.
type FeedbackInput struct {
	ConversationID string
	MessageIndex   int
	Rating         string
	Comment        string
}

// FeedbackRepo defines the repository contract required by FeedbackService.
type FeedbackRepo interface {
	GetConversationHeader(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Conversation, error)
	GetMessageRole(ctx context.Context, db *gorm.DB, conversationID string, position int) (domain.Role, error)

	// CreateFeedback fails with repo.ErrDuplicate when the message is already rated.
	CreateFeedback(ctx context.Context, db *gorm.DB, fb *domain.Feedback) error
	FindFeedback(ctx context.Context, db *gorm.DB, conversationID string, messageIndex int, userID string) (*domain.Feedback, error)
	GetFeedback(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Feedback, error)
	UpdateFeedback(ctx context.Context, db *gorm.DB, id, userID, rating, comment string) error
	DeleteFeedback(ctx context.Context, db *gorm.DB, id, userID string) error
	CountFeedbackByUser(ctx context.Context, db *gorm.DB, userID, rating string) (int64, error)
	ListFeedbackByUserPage(ctx context.Context, db *gorm.DB, userID, rating string, offset, limit int) ([]domain.Feedback, error)
	ListFeedbackByConversation(ctx context.Context, db *gorm.DB, conversationID, userID string) ([]domain.Feedback, error)
}

// FeedbackService implements the use-cases around message feedback.
type FeedbackService struct {
	DB   *gorm.DB
	Repo FeedbackRepo
}

func normalizeRating(r string) (string, error) {
	switch v := strings.ToLower(strings.TrimSpace(r)); v {
	case domain.RatingPositive, domain.RatingNegative:
		return v, nil
	default:
		return "", invalid("rating", "must be positive or negative")
	}
}

func normalizeComment(c string) (string, error) {
	c = strings.TrimSpace(c)
	if utf8.RuneCountInString(c) > domain.MaxCommentRunes {
		return "", invalid("comment", "must be at most 500 characters")
	}
	return c, nil
}

// Submit records a rating.
//
// Semantics:
//   - The conversation must be owned by userID; otherwise ErrNotFound.
//   - MessageIndex must point at an existing assistant message; otherwise a
//     *ValidationError.
//   - A second rating for the same message yields *FeedbackConflictError.
func (s *FeedbackService) Submit(ctx context.Context, userID string, in FeedbackInput) (*domain.Feedback, error) {
	tr := otel.Tracer("services/FeedbackService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("conversation.id", in.ConversationID),
			attribute.Int("message.index", in.MessageIndex),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	rating, err := normalizeRating(in.Rating)
	if err != nil {
		return nil, err
	}
	comment, err := normalizeComment(in.Comment)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ConversationID) == "" {
		return nil, invalid("conversationId", "is required")
	}
	if in.MessageIndex < 0 {
		return nil, invalid("messageIndex", "must not be negative")
	}

	if _, err := s.Repo.GetConversationHeader(ctx, s.DB, in.ConversationID, userID); err != nil {
		return nil, mapNotFound(err)
	}
	role, err := s.Repo.GetMessageRole(ctx, s.DB, in.ConversationID, in.MessageIndex)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, invalid("messageIndex", "does not reference a message")
		}
		return nil, err
	}
	if role != domain.RoleAssistant {
		return nil, invalid("messageIndex", "feedback is only accepted on assistant messages")
	}

	fb := &domain.Feedback{
		ConversationID: in.ConversationID,
		MessageIndex:   in.MessageIndex,
		UserID:         userID,
		Rating:         rating,
		Comment:        comment,
	}
	if err := s.Repo.CreateFeedback(ctx, s.DB, fb); err != nil {
		if !errors.Is(err, repo.ErrDuplicate) {
			return nil, err
		}
		existing, ferr := s.Repo.FindFeedback(ctx, s.DB, in.ConversationID, in.MessageIndex, userID)
		if ferr != nil {
			return nil, ferr
		}
		return nil, &FeedbackConflictError{Existing: existing}
	}
	return fb, nil
}

// Update changes rating and comment of a record owned by userID.
func (s *FeedbackService) Update(ctx context.Context, userID, id, rating, comment string) (*domain.Feedback, error) {
	r, err := normalizeRating(rating)
	if err != nil {
		return nil, err
	}
	c, err := normalizeComment(comment)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.UpdateFeedback(ctx, s.DB, id, userID, r, c); err != nil {
		return nil, mapNotFound(err)
	}
	fb, err := s.Repo.GetFeedback(ctx, s.DB, id, userID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return fb, nil
}

// Delete withdraws a record owned by userID.
func (s *FeedbackService) Delete(ctx context.Context, userID, id string) error {
	return mapNotFound(s.Repo.DeleteFeedback(ctx, s.DB, id, userID))
}

// ListMine returns a page of the caller's ratings, newest first. rating may
// be empty to list both values.
func (s *FeedbackService) ListMine(ctx context.Context, userID, rating string, page, limit int) ([]domain.Feedback, utils.Page, error) {
	if rating != "" {
		r, err := normalizeRating(rating)
		if err != nil {
			return nil, utils.Page{}, err
		}
		rating = r
	}
	total, err := s.Repo.CountFeedbackByUser(ctx, s.DB, userID, rating)
	if err != nil {
		return nil, utils.Page{}, err
	}
	pg := utils.NewPage(page, limit, total)
	if total == 0 {
		return []domain.Feedback{}, pg, nil
	}
	items, err := s.Repo.ListFeedbackByUserPage(ctx, s.DB, userID, rating, utils.Offset(page, limit), limit)
	if err != nil {
		return nil, utils.Page{}, err
	}
	return items, pg, nil
}

// ListForConversation returns the caller's ratings in one of their
// conversations.
func (s *FeedbackService) ListForConversation(ctx context.Context, userID, conversationID string) ([]domain.Feedback, error) {
	if _, err := s.Repo.GetConversationHeader(ctx, s.DB, conversationID, userID); err != nil {
		return nil, mapNotFound(err)
	}
	items, err := s.Repo.ListFeedbackByConversation(ctx, s.DB, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Feedback{}
	}
	return items, nil
}
