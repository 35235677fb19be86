// Package services – HistoryService
//
// This file implements HistoryService, which pages through a user's
// conversations most recently updated first, and GroupByRecency, a pure
// function bucketing an already fetched page by calendar day.
package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-study-backend/internal/domain"
	"github.com/tbourn/go-study-backend/internal/repo"
	"github.com/tbourn/go-study-backend/internal/utils"
)

// HistoryRepo defines the repository contract required by HistoryService.
type HistoryRepo interface {
	// CountConversations returns the number of matching conversations.
	CountConversations(ctx context.Context, db *gorm.DB, userID string, f repo.ConversationFilter) (int64, error)

	// ListConversationsPage returns one page ordered by recency.
	ListConversationsPage(ctx context.Context, db *gorm.DB, userID string, f repo.ConversationFilter, offset, limit int) ([]domain.Conversation, error)

	// ConversationsStats returns count and latest update for ETags.
	ConversationsStats(ctx context.Context, db *gorm.DB, userID string, f repo.ConversationFilter) (int64, *time.Time, error)
}

// HistoryFilter holds raw filter values from the caller. Status "" means
// active only; "all" disables the status filter.
type HistoryFilter struct {
	Status  string
	Subject string
	Grade   int
}

// HistoryPage is one page of conversation previews.
type HistoryPage struct {
	Items      []domain.ConversationPreview
	Pagination utils.Page
}

// HistoryService lists conversation history.
type HistoryService struct {
	DB   *gorm.DB
	Repo HistoryRepo
}

func (f HistoryFilter) resolve() (repo.ConversationFilter, error) {
	var out repo.ConversationFilter
	switch st := strings.ToLower(strings.TrimSpace(f.Status)); st {
	case "":
		out.Status = domain.StatusActive
	case "all":
	case domain.StatusActive, domain.StatusArchived:
		out.Status = st
	default:
		return out, invalid("status", "must be active, archived or all")
	}
	if strings.TrimSpace(f.Subject) != "" {
		sub, ok := normalizeSubject(f.Subject)
		if !ok {
			return out, invalid("subject", "is not a known subject")
		}
		out.Subject = sub
	}
	if f.Grade != 0 {
		if f.Grade < domain.MinGrade || f.Grade > domain.MaxGrade {
			return out, invalid("grade", "must be between 5 and 10")
		}
		out.Grade = f.Grade
	}
	return out, nil
}

// List returns page of the user's conversations. page and limit must
// already be clamped by the caller.
func (s *HistoryService) List(ctx context.Context, userID string, f HistoryFilter, page, limit int) (*HistoryPage, error) {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", limit),
		),
	)
	defer span.End()

	rf, err := f.resolve()
	if err != nil {
		return nil, err
	}
	total, err := s.Repo.CountConversations(ctx, s.DB, userID, rf)
	if err != nil {
		return nil, err
	}
	out := &HistoryPage{Items: []domain.ConversationPreview{}, Pagination: utils.NewPage(page, limit, total)}
	if total == 0 {
		return out, nil
	}
	rows, err := s.Repo.ListConversationsPage(ctx, s.DB, userID, rf, utils.Offset(page, limit), limit)
	if err != nil {
		return nil, err
	}
	for _, c := range rows {
		out.Items = append(out.Items, c.Preview())
	}
	return out, nil
}

// Stats returns the count and latest update time of the matching
// conversations, for conditional responses.
func (s *HistoryService) Stats(ctx context.Context, userID string, f HistoryFilter) (int64, *time.Time, error) {
	rf, err := f.resolve()
	if err != nil {
		return 0, nil, err
	}
	return s.Repo.ConversationsStats(ctx, s.DB, userID, rf)
}

// Recency group labels in display order.
const (
	GroupToday     = "Today"
	GroupYesterday = "Yesterday"
	GroupLastWeek  = "Last 7 Days"
	GroupOlder     = "Older"
)

// HistoryGroup is one recency bucket.
type HistoryGroup struct {
	Label         string                       `json:"label"`
	Conversations []domain.ConversationPreview `json:"conversations"`
}

// GroupByRecency partitions items by the calendar day of UpdatedAt in loc,
// relative to now. Today and Yesterday are calendar days, not 24h windows;
// "Last 7 Days" covers the five days before yesterday. Timestamps in the
// future count as Today. Input order is kept inside each group and empty
// groups are omitted.
func GroupByRecency(items []domain.ConversationPreview, now time.Time, loc *time.Location) []HistoryGroup {
	if loc == nil {
		loc = time.Local
	}
	today := startOfDay(now.In(loc))

	labels := []string{GroupToday, GroupYesterday, GroupLastWeek, GroupOlder}
	buckets := make(map[string][]domain.ConversationPreview, len(labels))
	for _, it := range items {
		days := daysBetween(startOfDay(it.UpdatedAt.In(loc)), today)
		var label string
		switch {
		case days <= 0:
			label = GroupToday
		case days == 1:
			label = GroupYesterday
		case days < 7:
			label = GroupLastWeek
		default:
			label = GroupOlder
		}
		buckets[label] = append(buckets[label], it)
	}

	out := make([]HistoryGroup, 0, len(labels))
	for _, l := range labels {
		if len(buckets[l]) > 0 {
			out = append(out, HistoryGroup{Label: l, Conversations: buckets[l]})
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b. Both must be midnights in
// the same location; rounding absorbs DST shifts.
func daysBetween(a, b time.Time) int {
	h := b.Sub(a).Hours()
	if h >= 0 {
		return int(h/24 + 0.5)
	}
	return -int(-h/24 + 0.5)
}
