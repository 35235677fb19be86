package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-study-backend/internal/domain"
	"github.com/tbourn/go-study-backend/internal/http/middleware"
	"github.com/tbourn/go-study-backend/internal/inference"
	"github.com/tbourn/go-study-backend/internal/repo"
	"github.com/tbourn/go-study-backend/internal/services"
)

// ---------- test helpers ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:h_%s?mode=memory&cache=shared", uuid.NewString())
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

// stubGen returns a fixed answer or error and counts calls.
type stubGen struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (g *stubGen) Generate(ctx context.Context, req inference.Request) (*inference.Answer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &inference.Answer{
		Text: g.text,
		Citations: []domain.Citation{
			{Number: 1, Source: "NCERT Science 8", Chapter: "7", Page: 80, Relevance: 0.9, RelevancePercent: 90, ChunkID: "c1"},
			{Number: 2, Source: "NCERT Science 8", Chapter: "7", Page: 81, Relevance: 0.4, RelevancePercent: 40, ChunkID: "c2"},
		},
		SourceChunks: []domain.SourceChunk{{ChunkID: "c1", FullText: "Plants use sunlight.", Relevance: 0.9, RelevancePercent: 90}},
		InScope:      true,
		ModelID:      "stub",
	}, nil
}

func (g *stubGen) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *stubGen) fail(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

type repoIdem struct{ db *gorm.DB }

func (s repoIdem) Get(ctx context.Context, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, s.db, userID, scope, key, now)
}

func (s repoIdem) Save(ctx context.Context, userID, scope, key string, res *services.QueryResult) error {
	_, err := repo.CreateIdempotency(ctx, s.db, userID, scope, key,
		res.ConversationID, res.MessageIndex, res.IsNewConversation, http.StatusOK, time.Hour)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

type testEnv struct {
	db  *gorm.DB
	gen *stubGen
	r   *gin.Engine
}

// newEnv wires real services over sqlite behind a gin engine. The caller is
// taken from the X-Test-User header, defaulting to "u1". opts adjust the
// handler dependencies before construction.
func newEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	gen := &stubGen{text: "Photosynthesis is how plants make food."}
	deps := Deps{
		Query:             &services.QueryService{DB: db, Repo: repo.Store{}, Generator: gen, DefaultLanguage: domain.LanguageEnglish},
		Conversations:     &services.ConversationService{DB: db, Repo: repo.Store{}},
		History:           &services.HistoryService{DB: db, Repo: repo.Store{}},
		Feedback:          &services.FeedbackService{DB: db, Repo: repo.Store{}},
		Profiles:          &services.ProfileService{DB: db, Repo: repo.Store{}},
		Idem:              repoIdem{db: db},
		HeartbeatInterval: 5 * time.Millisecond,
	}
	for _, o := range opts {
		o(&deps)
	}
	h := New(deps)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		uid := c.GetHeader("X-Test-User")
		if uid == "" {
			uid = "u1"
		}
		c.Set("userID", uid)
		c.Next()
	})
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{
		Scope: func(c *gin.Context) string {
			switch c.FullPath() {
			case "/query":
				return "query"
			case "/query/stream":
				return "query_stream"
			}
			return ""
		},
	}, func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}))

	r.POST("/query", h.Query)
	r.POST("/query/stream", h.StreamQuery)
	r.GET("/conversation", h.ListConversations)
	r.GET("/conversation/:id", h.GetConversation)
	r.DELETE("/conversation/:id", h.ArchiveConversation)
	r.PUT("/conversation/:id/restore", h.RestoreConversation)
	r.PATCH("/conversation/:id/settings", h.UpdateSettings)
	r.POST("/feedback", h.SubmitFeedback)
	r.GET("/feedback/my-feedback", h.ListMyFeedback)
	r.GET("/feedback/conversation/:id", h.ListConversationFeedback)
	r.PUT("/feedback/:id", h.UpdateFeedback)
	r.DELETE("/feedback/:id", h.DeleteFeedback)
	r.GET("/profile", h.GetProfile)
	r.PUT("/profile", h.UpdateProfile)

	return &testEnv{db: db, gen: gen, r: r}
}

// do sends a request with an optional JSON body and extra headers given as
// name/value pairs.
func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, isStr := body.(string); isStr {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

// ask posts a valid question and returns the decoded result.
func (e *testEnv) ask(t *testing.T, conversationID string, headers ...string) QueryResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/query", QueryRequest{
		Query:          "What is photosynthesis?",
		Grade:          8,
		Subject:        "science",
		ConversationID: conversationID,
	}, headers...)
	if w.Code != http.StatusOK {
		t.Fatalf("ask status=%d body=%s", w.Code, w.Body.String())
	}
	var out QueryResponse
	decode(t, w, &out)
	return out
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

// conversationView is the wire shape of GET /conversation/:id.
type conversationView struct {
	Success bool `json:"success"`
	Data    struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Title    string `json:"title"`
		Metadata struct {
			Grade    int    `json:"grade"`
			Subject  string `json:"subject"`
			Language string `json:"language"`
		} `json:"metadata"`
		Messages []struct {
			Role      string            `json:"role"`
			Content   string            `json:"content"`
			Citations []domain.Citation `json:"citations"`
		} `json:"messages"`
	} `json:"data"`
}

func (e *testEnv) conversation(t *testing.T, id string) conversationView {
	t.Helper()
	w := e.do(t, http.MethodGet, "/conversation/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get conversation status=%d body=%s", w.Code, w.Body.String())
	}
	var out conversationView
	decode(t, w, &out)
	return out
}
