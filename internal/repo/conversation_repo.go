// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation aggregate: the conversation row plus its append-only message
// rows.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
//
// Error semantics:
//   - A conversation that does not exist and one owned by another user both
//     yield ErrNotFound; callers cannot tell them apart.
//   - SaveConversation returns ErrVersionConflict when the stored version
//     moved since the aggregate was loaded.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-study-backend/internal/domain"
)

// ErrVersionConflict is returned when a compare-and-swap save loses a race.
var ErrVersionConflict = errors.New("conversation version conflict")

// previewRunes bounds LastMessagePreview.
const previewRunes = 120

// ConversationFilter narrows history listings. Zero values mean "any".
type ConversationFilter struct {
	Status  string
	Subject domain.Subject
	Grade   int
}

func (f ConversationFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Subject != "" {
		q = q.Where("subject = ?", f.Subject)
	}
	if f.Grade != 0 {
		q = q.Where("grade = ?", f.Grade)
	}
	return q
}

// SaveConversation persists c and the messages from index persisted onward.
//
// A conversation with Version 0 has never been stored and is inserted. For a
// stored conversation the row update is conditioned on the version it was
// loaded with; if another writer got there first nothing is written and
// ErrVersionConflict is returned. The row and the new message rows are
// written in one transaction. On success c.Version is advanced.
func SaveConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation, persisted int) error {
	now := time.Now().UTC()
	count := len(c.Messages)
	preview := ""
	if count > 0 {
		preview = domain.Preview(c.Messages[count-1].Text(), previewRunes)
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.Version == 0 {
			row := *c
			row.Version = 1
			row.MessageCount = count
			row.LastMessagePreview = preview
			row.CreatedAt = now
			row.UpdatedAt = now
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		} else {
			res := tx.Model(&domain.Conversation{}).
				Where("id = ? AND user_id = ? AND version = ?", c.ID, c.UserID, c.Version).
				Updates(map[string]any{
					"title":                c.Title,
					"message_count":        count,
					"last_message_preview": preview,
					"version":              c.Version + 1,
					"updated_at":           now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrVersionConflict
			}
		}

		for i := persisted; i < count; i++ {
			rec, err := domain.ToRecord(c.ID, i, c.Messages[i])
			if err != nil {
				return err
			}
			rec.ID = uuid.NewString()
			if err := tx.Omit("Conversation").Create(&rec).Error; err != nil {
				if isUniqueViolation(err) {
					return ErrVersionConflict
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if c.Version == 0 {
		c.CreatedAt = now
	}
	c.Version++
	c.MessageCount = count
	c.LastMessagePreview = preview
	c.UpdatedAt = now
	return nil
}

// GetConversation loads the conversation id owned by userID together with
// its messages in turn order.
func GetConversation(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Conversation, error) {
	c, err := GetConversationHeader(ctx, db, id, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := ListMessages(ctx, db, c.ID)
	if err != nil {
		return nil, err
	}
	c.Messages = msgs
	return c, nil
}

// GetConversationHeader loads the conversation row without its messages.
func GetConversationHeader(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListMessages returns the typed messages of a conversation ordered by position.
func ListMessages(ctx context.Context, db *gorm.DB, conversationID string) ([]domain.Message, error) {
	var rows []domain.MessageRecord
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(rows))
	for _, r := range rows {
		m, err := domain.FromRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// GetMessageRole returns the role of the message at position in the
// conversation, or ErrNotFound if there is no such message.
func GetMessageRole(ctx context.Context, db *gorm.DB, conversationID string, position int) (domain.Role, error) {
	var row domain.MessageRecord
	err := db.WithContext(ctx).
		Select("role").
		Where("conversation_id = ? AND position = ?", conversationID, position).
		First(&row).Error
	if err != nil {
		return "", err
	}
	return domain.Role(row.Role), nil
}

// CountConversations returns how many conversations of userID match f.
func CountConversations(ctx context.Context, db *gorm.DB, userID string, f ConversationFilter) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.Conversation{}).Where("user_id = ?", userID)
	err := f.apply(q).Count(&total).Error
	return total, err
}

// ListConversationsPage returns a page of conversations for userID, most
// recently updated first. Ties are broken by id so pages never overlap.
func ListConversationsPage(ctx context.Context, db *gorm.DB, userID string, f ConversationFilter, offset, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	q := db.WithContext(ctx).Where("user_id = ?", userID)
	err := f.apply(q).
		Order("updated_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SetConversationStatus moves a conversation from one status to another.
// It returns ErrNotFound when no row with that id, owner and current status
// exists.
func SetConversationStatus(ctx context.Context, db *gorm.DB, id, userID, from, to string) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, from).
		Updates(map[string]any{
			"status":     to,
			"version":    gorm.Expr("version + 1"),
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

// UpdateConversationMetadata replaces the metadata of a conversation if its
// version still matches.
func UpdateConversationMetadata(ctx context.Context, db *gorm.DB, id, userID string, version int64, meta domain.ConversationMetadata) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ? AND user_id = ? AND version = ?", id, userID, version).
		Updates(map[string]any{
			"grade":      meta.Grade,
			"subject":    meta.Subject,
			"language":   meta.Language,
			"version":    version + 1,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}
