// Package services – QueryService
//
// This file implements QueryService, the workflow that turns a question into
// a persisted conversation turn. It validates input, resolves the effective
// language, loads or creates the conversation, calls the inference service and
// stores the user/assistant message pair in one save.
//
// When the inference service fails the user's message is still stored and an
// *UpstreamError naming the conversation is returned, so a retry does not
// have to resend the question as a new turn.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-study-backend/internal/domain"
	"github.com/tbourn/go-study-backend/internal/inference"
	"github.com/tbourn/go-study-backend/internal/repo"
)

const (
	defaultTopK        = 5
	maxTopK            = 10
	defaultQueryRunes  = 500
	defaultSaveRetries = 3
)

// QueryRequest is an inbound question.
type QueryRequest struct {
	Query          string
	Grade          int
	Subject        string
	Language       string // optional
	ConversationID string // optional; empty starts a new conversation
	TopK           int    // optional; 0 means the default
}

// QueryResult is the client-facing outcome of a successful query.
type QueryResult struct {
	ConversationID    string                `json:"conversationId"`
	IsNewConversation bool                  `json:"isNewConversation"`
	MessageIndex      int                   `json:"messageIndex"`
	Answer            string                `json:"answer"`
	Citations         []domain.Citation     `json:"citations"`
	SourceChunks      []domain.SourceChunk  `json:"sourceChunks"`
	Language          domain.Language       `json:"language"`
	InScope           bool                  `json:"inScope"`
	Metadata          domain.AnswerMetadata `json:"metadata"`
}

// QueryRepo defines the repository contract required by QueryService.
type QueryRepo interface {
	GetConversation(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Conversation, error)

	// SaveConversation appends the messages past persisted and bumps the
	// version; a stale version yields repo.ErrVersionConflict.
	SaveConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation, persisted int) error

	GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.UserProfile, error)
}

// QueryService orchestrates question answering.
type QueryService struct {
	DB        *gorm.DB
	Repo      QueryRepo
	Generator inference.Generator

	// DefaultLanguage applies when neither profile nor request set one.
	DefaultLanguage domain.Language
	// MaxQueryRunes caps the trimmed question (default 500).
	MaxQueryRunes int
	// SaveAttempts bounds compare-and-swap retries (default 3).
	SaveAttempts int

	// Now is used for message timestamps; nil means time.Now.
	Now func() time.Time
}

type validQuery struct {
	query    string
	grade    int
	subject  domain.Subject
	language domain.Language
	topK     int
}

func (s *QueryService) validate(req QueryRequest) (validQuery, error) {
	v := validQuery{query: strings.TrimSpace(req.Query), grade: req.Grade, topK: req.TopK}

	limit := s.MaxQueryRunes
	if limit <= 0 {
		limit = defaultQueryRunes
	}
	switch n := utf8.RuneCountInString(v.query); {
	case n == 0:
		return v, invalid("query", "must not be empty")
	case n > limit:
		return v, invalid("query", "is too long")
	}
	if v.grade < domain.MinGrade || v.grade > domain.MaxGrade {
		return v, invalid("grade", "must be between 5 and 10")
	}
	sub, ok := normalizeSubject(req.Subject)
	if !ok {
		return v, invalid("subject", "is not a known subject")
	}
	v.subject = sub
	if strings.TrimSpace(req.Language) != "" {
		lang, ok := domain.ParseLanguage(req.Language)
		if !ok {
			return v, invalid("language", "must be english or hindi")
		}
		v.language = lang
	}
	switch {
	case v.topK == 0:
		v.topK = defaultTopK
	case v.topK < 1 || v.topK > maxTopK:
		return v, invalid("top_k", "must be between 1 and 10")
	}
	return v, nil
}

// Ask answers req on behalf of userID and records the turn.
//
// Errors:
//   - *ValidationError before any side effect.
//   - ErrNotFound when ConversationID is not owned by userID.
//   - ErrArchived when the conversation is archived.
//   - *UpstreamError after the user message was stored.
//   - ErrConcurrentUpdate when the save lost every retry.
func (s *QueryService) Ask(ctx context.Context, userID string, req QueryRequest) (*QueryResult, error) {
	tr := otel.Tracer("services/QueryService")
	ctx, span := tr.Start(ctx, "Ask",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("conversation.id", req.ConversationID),
		),
	)
	defer span.End()

	v, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	lang, err := s.effectiveLanguage(ctx, userID, v.language)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("study.language", string(lang)))

	conv, isNew, err := s.loadOrCreate(ctx, userID, req.ConversationID, domain.ConversationMetadata{
		Grade:    v.grade,
		Subject:  v.subject,
		Language: lang,
	})
	if err != nil {
		return nil, err
	}

	persisted := len(conv.Messages)
	var pending []domain.Message
	if !awaitingAnswer(conv, v.query) {
		userMsg := domain.UserMessage{Content: v.query, Timestamp: s.now(), Language: lang}
		appendMessages(conv, userMsg)
		pending = append(pending, userMsg)
	}

	start := time.Now()
	ans, genErr := s.Generator.Generate(ctx, inference.Request{
		Query:    v.query,
		Grade:    v.grade,
		Subject:  UpstreamSubject(string(v.subject)),
		Language: lang,
		TopK:     v.topK,
	})
	latency := time.Since(start)

	// The turn is stored even if the caller has gone away.
	saveCtx := context.WithoutCancel(ctx)

	if genErr != nil {
		kind := inference.KindOf(genErr)
		zerolog.Ctx(ctx).Warn().
			Err(genErr).
			Str("conversation_id", conv.ID).
			Str("kind", string(kind)).
			Dur("latency", latency).
			Msg("answer generation failed")
		span.RecordError(genErr)
		span.SetStatus(codes.Error, string(kind))

		if len(pending) > 0 {
			if err := s.save(saveCtx, conv, persisted, pending); err != nil {
				return nil, err
			}
		}
		return nil, &UpstreamError{ConversationID: conv.ID, IsNew: isNew, Kind: kind, Err: genErr}
	}

	asst := domain.AssistantMessage{
		Content:      ans.Text,
		Citations:    ans.Citations,
		SourceChunks: ans.SourceChunks,
		Timestamp:    s.now(),
		Metadata: domain.AnswerMetadata{
			Language:         lang,
			InScope:          ans.InScope,
			LatencyMs:        latency.Milliseconds(),
			ModelID:          ans.ModelID,
			Confidence:       ans.Confidence,
			TokensUsed:       ans.TokensUsed,
			ChunksRetrieved:  ans.ChunksRetrieved,
			ProcessingTimeMs: ans.ProcessingTimeMs,
		},
	}
	inference.NumberCitations(asst.Citations)
	appendMessages(conv, asst)

	if err := s.save(saveCtx, conv, persisted, append(pending, asst)); err != nil {
		return nil, err
	}

	return resultFrom(conv.ID, isNew, len(conv.Messages)-1, asst), nil
}

// Replay rebuilds the result of an earlier turn from the stored assistant
// message at index. It is used to answer retried idempotent requests.
func (s *QueryService) Replay(ctx context.Context, userID, conversationID string, index int, isNew bool) (*QueryResult, error) {
	conv, err := s.Repo.GetConversation(ctx, s.DB, conversationID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if index < 0 || index >= len(conv.Messages) {
		return nil, ErrNotFound
	}
	asst, ok := conv.Messages[index].(domain.AssistantMessage)
	if !ok {
		return nil, ErrNotFound
	}
	return resultFrom(conv.ID, isNew, index, asst), nil
}

func (s *QueryService) effectiveLanguage(ctx context.Context, userID string, requested domain.Language) (domain.Language, error) {
	var preferred domain.Language
	p, err := s.Repo.GetProfile(ctx, s.DB, userID)
	switch {
	case err == nil:
		preferred = p.PreferredLanguage
	case errors.Is(err, repo.ErrNotFound):
	default:
		return "", err
	}
	def := s.DefaultLanguage
	if def == "" {
		def = domain.LanguageEnglish
	}
	return ResolveLanguage(preferred, requested, def), nil
}

func (s *QueryService) loadOrCreate(ctx context.Context, userID, id string, meta domain.ConversationMetadata) (*domain.Conversation, bool, error) {
	if strings.TrimSpace(id) == "" {
		return &domain.Conversation{
			ID:       uuid.NewString(),
			UserID:   userID,
			Metadata: meta,
			Status:   domain.StatusActive,
		}, true, nil
	}
	conv, err := s.Repo.GetConversation(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}
	if conv.Status == domain.StatusArchived {
		return nil, false, ErrArchived
	}
	return conv, false, nil
}

// save persists conv. On a version conflict it reloads the conversation,
// re-appends pending and tries again, up to SaveAttempts times.
func (s *QueryService) save(ctx context.Context, conv *domain.Conversation, persisted int, pending []domain.Message) error {
	attempts := s.SaveAttempts
	if attempts <= 0 {
		attempts = defaultSaveRetries
	}
	for attempt := 1; ; attempt++ {
		err := s.Repo.SaveConversation(ctx, s.DB, conv, persisted)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repo.ErrVersionConflict) {
			return err
		}
		if attempt >= attempts {
			return ErrConcurrentUpdate
		}
		fresh, err := s.Repo.GetConversation(ctx, s.DB, conv.ID, conv.UserID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		persisted = len(fresh.Messages)
		appendMessages(fresh, pending...)
		*conv = *fresh
	}
}

func (s *QueryService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// awaitingAnswer reports whether the last turn of c is the same question
// still without an answer, as left behind by a failed generation. A retry
// answers that turn instead of asking it again.
func awaitingAnswer(c *domain.Conversation, query string) bool {
	if len(c.Messages) == 0 {
		return false
	}
	last, ok := c.Messages[len(c.Messages)-1].(domain.UserMessage)
	return ok && last.Content == query
}

// appendMessages adds msgs to the turn log and derives the title from the
// first user message if none is set.
func appendMessages(c *domain.Conversation, msgs ...domain.Message) {
	c.Messages = append(c.Messages, msgs...)
	if c.Title != "" {
		return
	}
	for _, m := range c.Messages {
		if m.Role() == domain.RoleUser {
			c.Title = domain.Preview(m.Text(), domain.MaxTitleRunes)
			return
		}
	}
}

func resultFrom(conversationID string, isNew bool, index int, m domain.AssistantMessage) *QueryResult {
	cites := m.Citations
	if cites == nil {
		cites = []domain.Citation{}
	}
	chunks := m.SourceChunks
	if chunks == nil {
		chunks = []domain.SourceChunk{}
	}
	return &QueryResult{
		ConversationID:    conversationID,
		IsNewConversation: isNew,
		MessageIndex:      index,
		Answer:            m.Content,
		Citations:         cites,
		SourceChunks:      chunks,
		Language:          m.Metadata.Language,
		InScope:           m.Metadata.InScope,
		Metadata:          m.Metadata,
	}
}
