// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, authentication, idempotency, and rate
// limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Every API route sits behind bearer authentication
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-study-backend/docs"
	"github.com/tbourn/go-study-backend/internal/config"
	"github.com/tbourn/go-study-backend/internal/domain"
	"github.com/tbourn/go-study-backend/internal/http/handlers"
	"github.com/tbourn/go-study-backend/internal/http/middleware"
	"github.com/tbourn/go-study-backend/internal/inference"
	"github.com/tbourn/go-study-backend/internal/repo"
	"github.com/tbourn/go-study-backend/internal/services"
)

// Idempotency scopes. Stored records are keyed by (user, scope, key), so a
// key used on /query never replays a stream and vice versa.
const (
	scopeQuery       = "query"
	scopeQueryStream = "query_stream"
)

// idemStore records completed query turns in the idempotency table.
type idemStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// Get proxies repo.GetIdempotency.
func (s idemStore) Get(ctx context.Context, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, s.db, userID, scope, key, now)
}

// Save stores res under key. A concurrent request that already recorded the
// same key wins; that is not an error.
func (s idemStore) Save(ctx context.Context, userID, scope, key string, res *services.QueryResult) error {
	_, err := repo.CreateIdempotency(ctx, s.db, userID, scope, key,
		res.ConversationID, res.MessageIndex, res.IsNewConversation, http.StatusOK, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// lookup answers whether a live record exists; it backs the idempotency
// middleware.
func (s idemStore) lookup(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
	_, err := repo.GetIdempotency(ctx, s.db, userID, scope, key, now)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repo.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), compression, CORS
// and security headers, health, metrics and docs endpoints, and then mounts
// the authenticated API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. AccessLog: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Gzip (never on the event stream)
//  8. CORS and Security headers
//
// and, on the API group only:
//  9. Auth: bearer token → user id
//  10. Idempotency validator (before rate limiter to allow bypass on replay)
//  11. Rate limiter (per user, bypass on replay)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, gen inference.Generator, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	apiBase := strings.TrimRight(cfg.APIBasePath, "/") // e.g. "/api/v1"

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.AccessLog(middleware.AccessLogOptions{
		MaskHeaders:   []string{"X-API-Key", middleware.HeaderIdempotencyKey},
		LogHeaders:    cfg.LogLevel == "debug",
		SlowThreshold: 2 * time.Second,
		SlowExempt:    []string{apiBase + "/query", apiBase + "/query/stream"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compression; buffering would defeat incremental delivery on the stream
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{apiBase + "/query/stream", "/metrics"})))

	// 8) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", handlers.HeaderIdempotencyReplayed}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		CacheControl: "private, no-cache",
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/inference
	idem := idemStore{db: db, ttl: cfg.IdempotencyTTL}
	h := handlers.New(handlers.Deps{
		Query: &services.QueryService{
			DB:              db,
			Repo:            repo.Store{},
			Generator:       gen,
			DefaultLanguage: domain.Language(cfg.DefaultLanguage),
			MaxQueryRunes:   cfg.MaxQueryRunes,
		},
		Conversations:  &services.ConversationService{DB: db, Repo: repo.Store{}},
		History:        &services.HistoryService{DB: db, Repo: repo.Store{}},
		Feedback:       &services.FeedbackService{DB: db, Repo: repo.Store{}},
		Profiles:       &services.ProfileService{DB: db, Repo: repo.Store{}},
		Idem:           idem,
		StreamInterval: cfg.StreamChunkInterval,
		Location:       cfg.HistoryLocation,
	})

	// Public API
	api := groupWithPrefix(r, apiBase)

	// 9) Bearer authentication; every failure is the same 401
	api.Use(middleware.Auth(middleware.AuthOptions{
		Secret: []byte(cfg.Auth.JWTSecret),
		Issuer: cfg.Auth.Issuer,
	}))

	// 10) Idempotency validation (before rate limiting)
	api.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
			Scope: func(c *gin.Context) string {
				switch c.FullPath() {
				case apiBase + "/query":
					return scopeQuery
				case apiBase + "/query/stream":
					return scopeQueryStream
				}
				return ""
			},
		},
		idem.lookup,
	))

	// 11) Token-bucket rate limiter per user; questions have their own budget
	rl := middleware.NewRateLimiter(middleware.RateLimitOptions{
		RPS:           cfg.RateRPS,
		Burst:         cfg.RateBurst,
		QuestionRPS:   cfg.QueryRateRPS,
		QuestionBurst: cfg.QueryRateBurst,
		IsQuestion: func(c *gin.Context) bool {
			p := c.FullPath()
			return p == apiBase+"/query" || p == apiBase+"/query/stream"
		},
		Key: middleware.KeyByUserOrIP(),
	})
	api.Use(rl.Handler())

	{
		// Questions
		api.POST("/query", h.Query)
		api.POST("/query/stream", h.StreamQuery)

		// Conversations
		api.GET("/conversation", h.ListConversations)
		api.GET("/conversation/:id", h.GetConversation)
		api.DELETE("/conversation/:id", h.ArchiveConversation)
		api.PUT("/conversation/:id/restore", h.RestoreConversation)
		api.PATCH("/conversation/:id/settings", h.UpdateSettings)

		// Feedback
		api.POST("/feedback", h.SubmitFeedback)
		api.GET("/feedback/my-feedback", h.ListMyFeedback)
		api.GET("/feedback/conversation/:id", h.ListConversationFeedback)
		api.PUT("/feedback/:id", h.UpdateFeedback)
		api.DELETE("/feedback/:id", h.DeleteFeedback)

		// Profile
		api.GET("/profile", h.GetProfile)
		api.PUT("/profile", h.UpdateProfile)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
