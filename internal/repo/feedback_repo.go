// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Feedback
// model.
//
// Error semantics:
//   - Duplicate feedback (same conversation_id, message_index, user_id) is
//     rejected by the database unique index and returned as ErrDuplicate.
//     The service layer translates that into a conflict carrying the
//     existing rating.
//   - Lookups scoped to an owner return ErrNotFound for rows owned by
//     someone else.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-study-backend/internal/domain"
)

// CreateFeedback inserts fb, assigning its ID and timestamps. The unique
// index on (conversation_id, message_index, user_id) is the only guard
// against concurrent duplicates; a violation is reported as ErrDuplicate.
func CreateFeedback(ctx context.Context, db *gorm.DB, fb *domain.Feedback) error {
	now := time.Now().UTC()
	fb.ID = uuid.NewString()
	fb.CreatedAt = now
	fb.UpdatedAt = now
	if err := db.WithContext(ctx).Omit("Conversation").Create(fb).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// FindFeedback returns the feedback a user left on one message.
func FindFeedback(ctx context.Context, db *gorm.DB, conversationID string, messageIndex int, userID string) (*domain.Feedback, error) {
	var fb domain.Feedback
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND message_index = ? AND user_id = ?", conversationID, messageIndex, userID).
		First(&fb).Error
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

// GetFeedback fetches a feedback row by id and owner.
func GetFeedback(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Feedback, error) {
	var fb domain.Feedback
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&fb).Error
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

// UpdateFeedback sets rating and comment on a feedback row owned by userID.
// Updating clears the reviewed flag so the change is triaged again.
func UpdateFeedback(ctx context.Context, db *gorm.DB, id, userID, rating, comment string) error {
	res := db.WithContext(ctx).
		Model(&domain.Feedback{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"rating":     rating,
			"comment":    comment,
			"reviewed":   false,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFeedback removes a feedback row owned by userID.
func DeleteFeedback(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Feedback{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountFeedbackByUser returns how many ratings userID left, optionally
// restricted to one rating value.
func CountFeedbackByUser(ctx context.Context, db *gorm.DB, userID, rating string) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.Feedback{}).Where("user_id = ?", userID)
	if rating != "" {
		q = q.Where("rating = ?", rating)
	}
	err := q.Count(&total).Error
	return total, err
}

// ListFeedbackByUserPage returns a page of the user's feedback, newest first.
func ListFeedbackByUserPage(ctx context.Context, db *gorm.DB, userID, rating string, offset, limit int) ([]domain.Feedback, error) {
	var out []domain.Feedback
	q := db.WithContext(ctx).Where("user_id = ?", userID)
	if rating != "" {
		q = q.Where("rating = ?", rating)
	}
	err := q.Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListFeedbackByConversation returns the user's feedback inside one
// conversation ordered by message index.
func ListFeedbackByConversation(ctx context.Context, db *gorm.DB, conversationID, userID string) ([]domain.Feedback, error) {
	var out []domain.Feedback
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Order("message_index ASC").
		Find(&out).Error
	return out, err
}
