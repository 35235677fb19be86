// Package handlers: service contracts and handler wiring.
//
// Handlers depend on the narrow interfaces below rather than on concrete
// services, so tests can substitute fakes and the router decides the wiring.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-study-backend/internal/domain"
	"github.com/tbourn/go-study-backend/internal/http/middleware"
	"github.com/tbourn/go-study-backend/internal/services"
	"github.com/tbourn/go-study-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// QueryService answers questions and replays recorded turns.
type QueryService interface {
	Ask(ctx context.Context, userID string, req services.QueryRequest) (*services.QueryResult, error)
	Replay(ctx context.Context, userID, conversationID string, index int, isNew bool) (*services.QueryResult, error)
}

// ConversationService exposes a single conversation to its owner.
type ConversationService interface {
	Get(ctx context.Context, userID, id string) (*domain.Conversation, error)
	Archive(ctx context.Context, userID, id string) error
	Restore(ctx context.Context, userID, id string) error
	UpdateSettings(ctx context.Context, userID, id string, p services.SettingsPatch) (*domain.Conversation, error)
}

// HistoryService lists a user's conversations.
type HistoryService interface {
	List(ctx context.Context, userID string, f services.HistoryFilter, page, limit int) (*services.HistoryPage, error)
	Stats(ctx context.Context, userID string, f services.HistoryFilter) (int64, *time.Time, error)
}

// FeedbackService manages per-message ratings.
type FeedbackService interface {
	Submit(ctx context.Context, userID string, in services.FeedbackInput) (*domain.Feedback, error)
	Update(ctx context.Context, userID, id, rating, comment string) (*domain.Feedback, error)
	Delete(ctx context.Context, userID, id string) error
	ListMine(ctx context.Context, userID, rating string, page, limit int) ([]domain.Feedback, utils.Page, error)
	ListForConversation(ctx context.Context, userID, conversationID string) ([]domain.Feedback, error)
}

// ProfileService reads and updates user preferences.
type ProfileService interface {
	Get(ctx context.Context, userID string) (*domain.UserProfile, error)
	SetPreferredLanguage(ctx context.Context, userID, lang string) (*domain.UserProfile, error)
}

// IdempotencyStore records completed query turns by (user, scope, key).
// Get returns an error when no live record exists.
type IdempotencyStore interface {
	Get(ctx context.Context, userID, scope, key string, now time.Time) (*domain.Idempotency, error)
	Save(ctx context.Context, userID, scope, key string, res *services.QueryResult) error
}

//
// Handler wiring
//

// Deps lists everything the handlers need. Idem may be nil, which disables
// replay and recording.
type Deps struct {
	Query         QueryService
	Conversations ConversationService
	History       HistoryService
	Feedback      FeedbackService
	Profiles      ProfileService
	Idem          IdempotencyStore

	// StreamInterval paces token frames on the stream endpoint.
	StreamInterval time.Duration
	// HeartbeatInterval is how often the stream sends a keep-alive comment
	// while an answer is being generated. Zero means 15s.
	HeartbeatInterval time.Duration
	// Location is the calendar used for recency grouping.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handlers groups HTTP endpoints for queries, conversations, feedback and
// profiles.
type Handlers struct {
	query   QueryService
	convs   ConversationService
	history HistoryService
	fb      FeedbackService
	profile ProfileService
	idem    IdempotencyStore

	streamInterval time.Duration
	heartbeat      time.Duration
	loc            *time.Location
	now            func() time.Time
}

// New constructs and returns a Handlers instance bound to the given services.
func New(d Deps) *Handlers {
	h := &Handlers{
		query:          d.Query,
		convs:          d.Conversations,
		history:        d.History,
		fb:             d.Feedback,
		profile:        d.Profiles,
		idem:           d.Idem,
		streamInterval: d.StreamInterval,
		heartbeat:      d.HeartbeatInterval,
		loc:            d.Location,
		now:            d.Now,
	}
	if h.heartbeat <= 0 {
		h.heartbeat = 15 * time.Second
	}
	if h.loc == nil {
		h.loc = time.Local
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// userID returns the identity set by the auth middleware.
func userID(c *gin.Context) string {
	return middleware.UserID(c)
}

// pathUUID reads a UUID path parameter and fails with 400 otherwise.
func pathUUID(c *gin.Context, name, what string) (string, bool) {
	id := strings.TrimSpace(c.Param(name))
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, what+" id must be a UUID")
		return "", false
	}
	return id, true
}

// clampPagination parses page and limit (page_size is accepted as an alias)
// and bounds them to sane defaults and limits.
func clampPagination(c *gin.Context) (page, limit int) {
	const (
		defaultPage  = 1
		defaultLimit = 20
		maxLimit     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	raw := c.Query("limit")
	if raw == "" {
		raw = c.Query("page_size")
	}
	limit = utils.AtoiDefault(raw, defaultLimit)
	return utils.ClampPage(page, limit, defaultLimit, maxLimit)
}
