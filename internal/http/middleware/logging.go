// Package middleware holds the Gin middleware of the study API: request
// correlation, access logging, panic recovery, bearer authentication,
// idempotent question replay, per-user rate limiting, security headers and
// Prometheus metrics.
//
// Every middleware that rejects a request answers with the same JSON error
// envelope the handlers use: {"request_id", "code", "message"}.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	ctxKeyLogger    = "logger"

	// maxQueryLogLength caps the raw query string written to the access log.
	maxQueryLogLength = 1024
)

// inbound ids are echoed into headers and logs, so only tame ones are kept.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,128}$`)

// RequestID propagates a well-formed X-Request-ID or mints a UUID, stores it
// in the context and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !requestIDPattern.MatchString(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}

// requestIDOf prefers the id RequestID stored, then the response header, then
// the inbound header.
func requestIDOf(c *gin.Context) string {
	if s := c.GetString(requestIDKey); s != "" {
		return s
	}
	if rid := c.Writer.Header().Get(requestIDHeader); rid != "" {
		return rid
	}
	return c.GetHeader(requestIDHeader)
}

// AccessLogOptions configures AccessLog.
type AccessLogOptions struct {
	// MaskHeaders are masked in addition to Authorization, Cookie and
	// Set-Cookie. Matching is case-insensitive.
	MaskHeaders []string
	// LogHeaders adds the scrubbed request headers to each line.
	LogHeaders bool
	// SlowThreshold promotes successful requests slower than this to WARN.
	// Routes listed in SlowExempt are never promoted. Zero disables it.
	SlowThreshold time.Duration
	SlowExempt    []string
}

// scrubber blanks identifiers that may reach the log through query strings
// and headers. Bodies, and so question text, are never logged.
type scrubber struct {
	id, email, phone *regexp.Regexp
}

func newScrubber() scrubber {
	return scrubber{
		id:    regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`),
		email: regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`),
		phone: regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`),
	}
}

// scrub replaces ids before phone numbers; the phone pattern would otherwise
// eat the digit groups of a UUID.
func (s scrubber) scrub(v string) string {
	if v == "" {
		return v
	}
	v = s.id.ReplaceAllString(v, "[REDACTED:id]")
	v = s.email.ReplaceAllString(v, "[REDACTED:email]")
	return s.phone.ReplaceAllString(v, "[REDACTED:phone]")
}

// AccessLog attaches a request-scoped zerolog logger (request_id, route) to
// the Gin context and the request context, then writes one line per request.
// The line is ERROR for 5xx, WARN for 4xx and slow requests, INFO otherwise.
func AccessLog(opts AccessLogOptions) gin.HandlerFunc {
	sc := newScrubber()
	masked := map[string]bool{"authorization": true, "cookie": true, "set-cookie": true}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = true
		}
	}
	exempt := make(map[string]bool, len(opts.SlowExempt))
	for _, p := range opts.SlowExempt {
		exempt[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		route := routeOf(c)
		rid := requestIDOf(c)

		l := log.With().Str("request_id", rid).Str("route", route).Logger()
		c.Set(ctxKeyLogger, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		slow := opts.SlowThreshold > 0 && latency > opts.SlowThreshold && !exempt[route]

		var ev *zerolog.Event
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = log.Error()
		case status >= 400 || slow:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		ev = ev.
			Str("request_id", rid).
			Str("user_id", UserID(c)).
			Str("method", c.Request.Method).
			Str("route", route).
			Str("query", truncate(sc.scrub(c.Request.URL.RawQuery), maxQueryLogLength)).
			Int("status", status).
			Int64("bytes_in", c.Request.ContentLength).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", latency)
		if slow {
			ev = ev.Bool("slow", true)
		}
		if IsReplay(c) {
			ev = ev.Bool("replayed", true)
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		if opts.LogHeaders {
			hdrs := zerolog.Dict()
			for k, vv := range c.Request.Header {
				v := "[REDACTED]"
				if !masked[strings.ToLower(k)] {
					v = sc.scrub(strings.Join(vv, ", "))
				}
				hdrs = hdrs.Str(k, v)
			}
			ev = ev.Dict("headers", hdrs)
		}
		ev.Msg("http_request")
	}
}

// Recovery turns a panic into a 500 error envelope and logs the stack with
// the request-scoped logger. A panic after the response started only aborts.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": requestIDOf(c),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// AccessLog is not installed.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(ctxKeyLogger); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.Logger
	return &l
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
