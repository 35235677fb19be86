package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-study-backend/internal/domain"
	"github.com/tbourn/go-study-backend/internal/repo"
)

// ProfileRepo defines the repository contract required by ProfileService.
type ProfileRepo interface {
	GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.UserProfile, error)
	UpsertProfile(ctx context.Context, db *gorm.DB, userID string, lang domain.Language) (*domain.UserProfile, error)
}

// ProfileService reads and writes user preferences.
type ProfileService struct {
	DB   *gorm.DB
	Repo ProfileRepo
}

// Get returns the caller's profile. A user who never saved one gets an
// empty profile rather than an error.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	p, err := s.Repo.GetProfile(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		now := time.Now().UTC()
		return &domain.UserProfile{UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
	}
	return p, err
}

// SetPreferredLanguage stores lang as the caller's sticky language. An
// empty value clears the preference.
func (s *ProfileService) SetPreferredLanguage(ctx context.Context, userID, lang string) (*domain.UserProfile, error) {
	var l domain.Language
	if strings.TrimSpace(lang) != "" {
		v, ok := domain.ParseLanguage(lang)
		if !ok {
			return nil, invalid("preferredLanguage", "must be english or hindi")
		}
		l = v
	}
	return s.Repo.UpsertProfile(ctx, s.DB, userID, l)
}
