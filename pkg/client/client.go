// Package client is a Go client for the study assistant API.
//
// It covers asking questions (plain, streamed over SSE, or streamed with a
// local emulation fallback), browsing history and rating answers. Ratings
// go through an injected feedbackcache.Cache so a message that was already
// rated is answered locally.
package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tbourn/go-study-backend/pkg/feedbackcache"
)

const (
	// DefaultTimeout covers answer generation, which can take minutes.
	DefaultTimeout = 6 * time.Minute
	// DefaultEmulationInterval is the delay between emulated chunks.
	DefaultEmulationInterval = 25 * time.Millisecond

	headerIdempotencyKey      = "Idempotency-Key"
	headerIdempotencyReplayed = "Idempotency-Replayed"
)

// Client talks to one API base URL, e.g. "http://localhost:8080/api/v1".
// It is safe for concurrent use.
type Client struct {
	http     *resty.Client
	cache    feedbackcache.Cache
	interval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.http.SetAuthToken(token) }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithHTTPClient swaps the underlying transport, e.g. for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		base := c.http.BaseURL
		token := c.http.Token
		c.http = resty.NewWithClient(hc).SetBaseURL(base)
		if token != "" {
			c.http.SetAuthToken(token)
		}
	}
}

// WithFeedbackCache sets the cache consulted by SubmitFeedback. The default
// is an in-memory cache private to the Client.
func WithFeedbackCache(cache feedbackcache.Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithEmulationInterval sets the delay between chunks in emulated streams.
func WithEmulationInterval(d time.Duration) Option {
	return func(c *Client) { c.interval = d }
}

// New returns a Client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Accept", "application/json").
			SetTimeout(DefaultTimeout),
		interval: DefaultEmulationInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = feedbackcache.NewMemory()
	}
	return c
}

func (c *Client) req(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx).SetError(&APIError{})
}

// check turns a failed response into an *APIError.
func check(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	ae, ok := resp.Error().(*APIError)
	if !ok || ae == nil || ae.Code == "" {
		ae = &APIError{Code: codeForStatus(resp.StatusCode()), Message: http.StatusText(resp.StatusCode())}
	}
	ae.Status = resp.StatusCode()
	return ae
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusServiceUnavailable:
		return CodeUpstreamUnavailable
	}
	return "http_" + strconv.Itoa(status)
}

// Query asks a question and waits for the complete answer. An upstream
// failure is an *APIError with Code CodeUpstreamUnavailable whose
// ConversationID names the conversation that already holds the question.
func (c *Client) Query(ctx context.Context, q QueryRequest) (*Result, error) {
	var env queryEnvelope
	r := c.req(ctx).SetBody(q).SetResult(&env)
	if q.IdempotencyKey != "" {
		r.SetHeader(headerIdempotencyKey, q.IdempotencyKey)
	}
	resp, err := r.Post("/query")
	if err != nil {
		return nil, err
	}
	if err := check(resp); err != nil {
		return nil, err
	}
	res := env.Result
	res.Replayed = resp.Header().Get(headerIdempotencyReplayed) == "true"
	return &res, nil
}

// History returns one page of the caller's conversations.
func (c *Client) History(ctx context.Context, p HistoryParams) (*HistoryPage, error) {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Status != "" {
		v.Set("status", p.Status)
	}
	if p.Subject != "" {
		v.Set("subject", p.Subject)
	}
	if p.Grade > 0 {
		v.Set("grade", strconv.Itoa(p.Grade))
	}
	if p.Group {
		v.Set("group", "recency")
	}

	var page HistoryPage
	resp, err := c.req(ctx).SetQueryParamsFromValues(v).SetResult(&page).Get("/conversation")
	if err != nil {
		return nil, err
	}
	if err := check(resp); err != nil {
		return nil, err
	}
	return &page, nil
}

// Conversation returns a conversation with all its messages.
func (c *Client) Conversation(ctx context.Context, id string) (*Conversation, error) {
	var env dataEnvelope[Conversation]
	resp, err := c.req(ctx).SetPathParam("id", id).SetResult(&env).Get("/conversation/{id}")
	if err != nil {
		return nil, err
	}
	if err := check(resp); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Archive hides a conversation from the default history and blocks new
// turns on it.
func (c *Client) Archive(ctx context.Context, id string) error {
	resp, err := c.req(ctx).SetPathParam("id", id).Delete("/conversation/{id}")
	if err != nil {
		return err
	}
	return check(resp)
}

// Restore reverses Archive.
func (c *Client) Restore(ctx context.Context, id string) error {
	resp, err := c.req(ctx).SetPathParam("id", id).Put("/conversation/{id}/restore")
	if err != nil {
		return err
	}
	return check(resp)
}

// Profile returns the caller's profile.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var env dataEnvelope[Profile]
	resp, err := c.req(ctx).SetResult(&env).Get("/profile")
	if err != nil {
		return nil, err
	}
	if err := check(resp); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// SetPreferredLanguage stores the caller's language preference. An empty
// language clears it.
func (c *Client) SetPreferredLanguage(ctx context.Context, language string) (*Profile, error) {
	var env dataEnvelope[Profile]
	resp, err := c.req(ctx).
		SetBody(map[string]string{"preferredLanguage": language}).
		SetResult(&env).
		Put("/profile")
	if err != nil {
		return nil, err
	}
	if err := check(resp); err != nil {
		return nil, err
	}
	return &env.Data, nil
}
