// Package inference is the adapter to the external answer-generation
// service. It builds the outbound request, executes it with a long timeout,
// classifies failures and translates the wire response into the internal
// Citation/SourceChunk/Answer shapes. It holds no state besides the HTTP
// client and is safe for concurrent use.
package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tbourn/go-study-backend/internal/config"
	"github.com/tbourn/go-study-backend/internal/domain"
)

// answerPath is the upstream route that produces an answer.
const answerPath = "/query"

// Request is the internal shape of a generation request. Subject must
// already be expressed in the upstream vocabulary.
type Request struct {
	Query    string
	Grade    int
	Subject  string
	Language domain.Language
	TopK     int
}

// Answer is a translated upstream answer. Citation numbers are 1..N in
// upstream order and every RelevancePercent is derived from Relevance.
type Answer struct {
	Text             string
	Citations        []domain.Citation
	SourceChunks     []domain.SourceChunk
	InScope          bool
	ModelID          string
	Confidence       float64
	TokensUsed       int
	ChunksRetrieved  int
	ProcessingTimeMs int64
}

// Generator produces answers. *Client and *Mock implement it.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Answer, error)
}

// Client calls the inference service over HTTP.
type Client struct {
	http *resty.Client
}

// NewClient returns a Client for cfg. The timeout is applied per request and
// is independent from the API server's own timeouts.
func NewClient(cfg config.InferenceConfig) *Client {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}
	return &Client{http: c}
}

var tracer = otel.Tracer("github.com/tbourn/go-study-backend/internal/inference")

// Generate sends req upstream and translates the answer. Every failure is
// returned as an *Error carrying its Kind.
func (c *Client) Generate(ctx context.Context, req Request) (*Answer, error) {
	ctx, span := tracer.Start(ctx, "inference.generate")
	defer span.End()
	span.SetAttributes(
		attribute.Int("study.grade", req.Grade),
		attribute.String("study.subject", req.Subject),
		attribute.String("study.language", string(req.Language)),
		attribute.Int("study.top_k", req.TopK),
	)

	start := time.Now()
	ans, err := c.generate(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		genFailures.WithLabelValues(outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	genLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return ans, err
}

func (c *Client) generate(ctx context.Context, req Request) (*Answer, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(toWire(req)).
		Post(answerPath)
	if err != nil {
		return nil, classifyTransport(err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &Error{
			Kind:    KindUpstream,
			Status:  resp.StatusCode(),
			Message: upstreamMessage(resp.StatusCode(), resp.Body()),
		}
	}

	var wr wireResponse
	if err := json.Unmarshal(resp.Body(), &wr); err != nil {
		return nil, &Error{Kind: KindInvalidResponse, Message: "response is not valid JSON", Err: err}
	}
	ans, err := fromWire(wr)
	if err != nil {
		return nil, &Error{Kind: KindInvalidResponse, Message: err.Error(), Err: err}
	}
	return ans, nil
}

// upstreamMessage extracts a human-readable message from an error body,
// trying the common JSON envelopes before falling back to raw text.
func upstreamMessage(status int, body []byte) string {
	var env struct {
		Detail  any    `json:"detail"`
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &env) == nil {
		for _, v := range []any{env.Detail, env.Error, env.Message} {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return domain.Preview(s, 200)
	}
	return http.StatusText(status)
}

// New returns the Generator selected by cfg: the deterministic mock when
// cfg.Mock is set, the HTTP client otherwise.
func New(cfg config.InferenceConfig) (Generator, error) {
	if cfg.Mock {
		m, err := NewMock(cfg.CorpusPath)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	if cfg.BaseURL == "" {
		return nil, &Error{Kind: KindOffline, Message: "INFERENCE_BASE_URL is empty"}
	}
	return NewClient(cfg), nil
}
