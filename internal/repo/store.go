package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-study-backend/internal/domain"
)

// Store exposes the package functions as methods so services can depend on
// narrow repository interfaces. It carries no state; the *gorm.DB travels
// with each call.
type Store struct{}

func (Store) SaveConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation, persisted int) error {
	return SaveConversation(ctx, db, c, persisted)
}

func (Store) GetConversation(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Conversation, error) {
	return GetConversation(ctx, db, id, userID)
}

func (Store) GetConversationHeader(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Conversation, error) {
	return GetConversationHeader(ctx, db, id, userID)
}

func (Store) GetMessageRole(ctx context.Context, db *gorm.DB, conversationID string, position int) (domain.Role, error) {
	return GetMessageRole(ctx, db, conversationID, position)
}

func (Store) SetConversationStatus(ctx context.Context, db *gorm.DB, id, userID, from, to string) error {
	return SetConversationStatus(ctx, db, id, userID, from, to)
}

func (Store) UpdateConversationMetadata(ctx context.Context, db *gorm.DB, id, userID string, version int64, meta domain.ConversationMetadata) error {
	return UpdateConversationMetadata(ctx, db, id, userID, version, meta)
}

func (Store) CountConversations(ctx context.Context, db *gorm.DB, userID string, f ConversationFilter) (int64, error) {
	return CountConversations(ctx, db, userID, f)
}

func (Store) ListConversationsPage(ctx context.Context, db *gorm.DB, userID string, f ConversationFilter, offset, limit int) ([]domain.Conversation, error) {
	return ListConversationsPage(ctx, db, userID, f, offset, limit)
}

// ConversationsStats backs the history ETag.
func (Store) ConversationsStats(ctx context.Context, db *gorm.DB, userID string, f ConversationFilter) (int64, *time.Time, error) {
	return ConversationsStats(ctx, db, userID, f)
}

func (Store) CreateFeedback(ctx context.Context, db *gorm.DB, fb *domain.Feedback) error {
	return CreateFeedback(ctx, db, fb)
}

func (Store) FindFeedback(ctx context.Context, db *gorm.DB, conversationID string, messageIndex int, userID string) (*domain.Feedback, error) {
	return FindFeedback(ctx, db, conversationID, messageIndex, userID)
}

func (Store) GetFeedback(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Feedback, error) {
	return GetFeedback(ctx, db, id, userID)
}

func (Store) UpdateFeedback(ctx context.Context, db *gorm.DB, id, userID, rating, comment string) error {
	return UpdateFeedback(ctx, db, id, userID, rating, comment)
}

func (Store) DeleteFeedback(ctx context.Context, db *gorm.DB, id, userID string) error {
	return DeleteFeedback(ctx, db, id, userID)
}

func (Store) CountFeedbackByUser(ctx context.Context, db *gorm.DB, userID, rating string) (int64, error) {
	return CountFeedbackByUser(ctx, db, userID, rating)
}

func (Store) ListFeedbackByUserPage(ctx context.Context, db *gorm.DB, userID, rating string, offset, limit int) ([]domain.Feedback, error) {
	return ListFeedbackByUserPage(ctx, db, userID, rating, offset, limit)
}

func (Store) ListFeedbackByConversation(ctx context.Context, db *gorm.DB, conversationID, userID string) ([]domain.Feedback, error) {
	return ListFeedbackByConversation(ctx, db, conversationID, userID)
}

func (Store) GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.UserProfile, error) {
	return GetProfile(ctx, db, userID)
}

func (Store) UpsertProfile(ctx context.Context, db *gorm.DB, userID string, lang domain.Language) (*domain.UserProfile, error) {
	return UpsertProfile(ctx, db, userID, lang)
}
