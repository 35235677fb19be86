package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Route classes of the limiter. Question routes call the generator and get
// a budget of their own; everything else shares the general one.
const (
	ClassGeneral  = "general"
	ClassQuestion = "question"
)

// keyFunc selects the identity a bucket belongs to.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by the authenticated user and falls back to
// the client IP for anonymous requests.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid := UserID(c); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

// RateLimitOptions configures NewRateLimiter.
type RateLimitOptions struct {
	RPS   float64
	Burst int
	// QuestionRPS and QuestionBurst apply to requests IsQuestion accepts.
	QuestionRPS   float64
	QuestionBurst int
	IsQuestion    func(*gin.Context) bool
	Key           keyFunc
	// IdleTTL is how long an unused bucket is kept. Defaults to 10 minutes.
	IdleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local token-bucket limiter with one bucket per
// (class, identity). It is safe for concurrent use.
type RateLimiter struct {
	opts RateLimitOptions

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups int
	now     func() time.Time
}

// sweepEvery is the number of lookups between idle-bucket sweeps.
const sweepEvery = 4096

// NewRateLimiter returns a limiter for opts. Bursts below 1 become 1.
func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	if opts.QuestionBurst < 1 {
		opts.QuestionBurst = 1
	}
	if opts.Key == nil {
		opts.Key = KeyByUserOrIP()
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{opts: opts, buckets: make(map[string]*bucket), now: time.Now}
}

func (rl *RateLimiter) classOf(c *gin.Context) string {
	if rl.opts.IsQuestion != nil && rl.opts.IsQuestion(c) {
		return ClassQuestion
	}
	return ClassGeneral
}

// limiter returns the bucket for (class, key), creating it on first use.
// Idle buckets are swept before the lookup so a stale bucket is never
// revived.
func (rl *RateLimiter) limiter(class, key string) *rate.Limiter {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= sweepEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.opts.IdleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	id := class + "|" + key
	if b, ok := rl.buckets[id]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(rate.Limit(rl.opts.RPS), rl.opts.Burst)
	if class == ClassQuestion {
		lim = rate.NewLimiter(rate.Limit(rl.opts.QuestionRPS), rl.opts.QuestionBurst)
	}
	rl.buckets[id] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// Handler rejects requests over budget with 429 and a Retry-After header.
// Replays detected by IdempotencyValidator pass without spending a token,
// since they do not reach the generator.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsReplay(c) {
			c.Next()
			return
		}

		class := rl.classOf(c)
		lim := rl.limiter(class, rl.opts.Key(c))
		now := rl.now()
		res := lim.ReserveN(now, 1)
		if res.OK() && res.DelayFrom(now) == 0 {
			c.Next()
			return
		}
		retry := 1
		if res.OK() {
			retry = int(math.Ceil(res.DelayFrom(now).Seconds()))
			res.CancelAt(now)
		}
		rateLimited.WithLabelValues(class).Inc()

		c.Header("Retry-After", strconv.Itoa(max(retry, 1)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": requestIDOf(c),
			"code":       "too_many_requests",
			"message":    "too many requests, retry later",
		})
	}
}
