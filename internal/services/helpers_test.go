package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-study-backend/internal/domain"
	"github.com/tbourn/go-study-backend/internal/inference"
	"github.com/tbourn/go-study-backend/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeGenerator returns a canned answer or error and records calls.
type fakeGenerator struct {
	mu     sync.Mutex
	answer *inference.Answer
	err    error
	calls  int
	last   inference.Request
	// during runs inside Generate, before it returns.
	during func()
}

func (f *fakeGenerator) Generate(ctx context.Context, req inference.Request) (*inference.Answer, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	during := f.during
	f.mu.Unlock()
	if during != nil {
		during()
	}
	if f.err != nil {
		return nil, f.err
	}
	a := *f.answer
	a.Citations = append([]domain.Citation(nil), f.answer.Citations...)
	a.SourceChunks = append([]domain.SourceChunk(nil), f.answer.SourceChunks...)
	return &a, nil
}

func (f *fakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// cannedAnswer has upstream-style numbering with gaps.
func cannedAnswer() *inference.Answer {
	return &inference.Answer{
		Text: "Photosynthesis is how plants make food.",
		Citations: []domain.Citation{
			{Number: 4, Source: "NCERT Science 8", Chapter: "7", Page: 80, Relevance: 0.91, RelevancePercent: 91, ChunkID: "c1"},
			{Number: 9, Source: "NCERT Science 8", Chapter: "7", Page: 81, Relevance: 0.5, RelevancePercent: 50, ChunkID: "c2"},
		},
		SourceChunks: []domain.SourceChunk{{ChunkID: "c1", FullText: "Plants use sunlight.", Relevance: 0.91, RelevancePercent: 91}},
		InScope:      true,
		ModelID:      "m1",
		Confidence:   0.8,
		TokensUsed:   120,
	}
}

// seedTurns stores a conversation for userID with n user/assistant pairs.
func seedTurns(t *testing.T, db *gorm.DB, userID string, n int) *domain.Conversation {
	t.Helper()
	c := &domain.Conversation{
		ID:       uuid.NewString(),
		UserID:   userID,
		Metadata: domain.ConversationMetadata{Grade: 8, Subject: domain.SubjectScience, Language: domain.LanguageEnglish},
		Status:   domain.StatusActive,
	}
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		appendMessages(c,
			domain.UserMessage{Content: fmt.Sprintf("question %d", i), Timestamp: now, Language: domain.LanguageEnglish},
			domain.AssistantMessage{Content: fmt.Sprintf("answer %d", i), Timestamp: now},
		)
	}
	if err := repo.SaveConversation(context.Background(), db, c, 0); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	return c
}
