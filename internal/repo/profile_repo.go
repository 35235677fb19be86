package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-study-backend/internal/domain"
)

// GetProfile returns the stored profile for userID or ErrNotFound.
func GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile creates or replaces the preferences of userID.
func UpsertProfile(ctx context.Context, db *gorm.DB, userID string, lang domain.Language) (*domain.UserProfile, error) {
	now := time.Now().UTC()
	p := &domain.UserProfile{UserID: userID, PreferredLanguage: lang, CreatedAt: now, UpdatedAt: now}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"preferred_language", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return nil, err
	}
	return GetProfile(ctx, db, userID)
}
