package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client's replay key for a question
// submission. Resending the same key returns the stored turn instead of
// generating a new answer.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemScope  = "idem.scope"
	ctxKeyIdemReplay = "idem.replay"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key of the request, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// GetIdempotencyScope returns the scope the key was validated under.
func GetIdempotencyScope(c *gin.Context) string {
	return c.GetString(ctxKeyIdemScope)
}

// IsReplay reports whether a completed turn is stored for the request's
// (user, scope, key).
func IsReplay(c *gin.Context) bool {
	return c.GetBool(ctxKeyIdemReplay)
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length. Defaults to 200.
	MaxLen int
	// Pattern restricts the key alphabet. Defaults to ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Scope names the operation a key belongs to, so one key sent to two
	// routes is two operations. An empty scope validates the header but
	// skips the lookup. Nil uses the matched route.
	Scope func(*gin.Context) string
}

// IdempotencyLookup reports whether a completed, unexpired turn exists for
// (userID, scope, key). Expiry is the lookup's concern.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error)

// IdempotencyValidator validates the Idempotency-Key header and marks
// requests whose turn is already stored, so the handler can replay it and
// the rate limiter can let it through. Requests without the header pass
// untouched. A lookup failure is logged and the request is processed
// normally.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}
	scopeOf := opts.Scope
	if scopeOf == nil {
		scopeOf = func(c *gin.Context) string { return c.FullPath() }
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": requestIDOf(c),
				"code":       "bad_request",
				"message":    "invalid Idempotency-Key header",
				"field":      HeaderIdempotencyKey,
			})
			return
		}

		scope := scopeOf(c)
		c.Set(ctxKeyIdemKey, key)
		c.Set(ctxKeyIdemScope, scope)

		if lookup != nil && scope != "" {
			found, err := lookup(c.Request.Context(), replayOwner(c), scope, key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency lookup failed")
			}
			if found {
				c.Set(ctxKeyIdemReplay, true)
				idempotentReplays.WithLabelValues(scope).Inc()
			}
		}
		c.Next()
	}
}

// replayOwner is the user a key belongs to. Keys sent without an identity
// share the "anonymous" namespace.
func replayOwner(c *gin.Context) string {
	if s := UserID(c); s != "" {
		return s
	}
	return "anonymous"
}
