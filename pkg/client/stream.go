package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tbourn/go-study-backend/pkg/sse"
)

// EventKind tells which field of an Event is set.
type EventKind int

const (
	EventChunk EventKind = iota + 1
	EventCitation
	EventComplete
	EventError
)

// Event is one step of an answer stream.
//
//   - EventChunk:    Delta is the new text, Text everything received so far.
//   - EventCitation: Citation is the next citation.
//   - EventComplete: Result is the full answer. It is the last event.
//   - EventError:    Err ended the stream. It is the last event.
type Event struct {
	Kind     EventKind
	Delta    string
	Text     string
	Citation *Citation
	Result   *Result
	Err      error
}

// Handler receives stream events as callbacks. Nil fields are skipped.
type Handler struct {
	OnChunk    func(delta, text string)
	OnCitation func(Citation)
	OnComplete func(*Result)
	OnError    func(error)
}

// Stream delivers the events of one answer. Cancelling the context it was
// started with ends the stream quietly: the channel closes without an
// EventError.
type Stream struct {
	events chan Event
	done   chan struct{}
}

func newStream() *Stream {
	return &Stream{events: make(chan Event), done: make(chan struct{})}
}

// Events returns the channel of events. It is closed when the stream ends.
func (s *Stream) Events() <-chan Event { return s.events }

// Done is closed once the producer has stopped.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Handle dispatches events to h until the stream ends. It returns the error
// of an EventError, and nil on completion or cancellation.
func (s *Stream) Handle(h Handler) error {
	var last error
	for ev := range s.events {
		switch ev.Kind {
		case EventChunk:
			if h.OnChunk != nil {
				h.OnChunk(ev.Delta, ev.Text)
			}
		case EventCitation:
			if h.OnCitation != nil {
				h.OnCitation(*ev.Citation)
			}
		case EventComplete:
			if h.OnComplete != nil {
				h.OnComplete(ev.Result)
			}
		case EventError:
			last = ev.Err
			if h.OnError != nil {
				h.OnError(ev.Err)
			}
		}
	}
	return last
}

// emit sends ev unless ctx is done first.
func (s *Stream) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// fail emits err unless the stream was cancelled, which is not a failure.
func (s *Stream) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	s.emit(ctx, Event{Kind: EventError, Err: err})
}

func (s *Stream) close() {
	close(s.events)
	close(s.done)
}

// StreamQuery asks a question over the SSE route. Connection problems and
// non-2xx statuses are returned directly; ErrStreamUnsupported means the
// server has no stream route. Everything after the response headers arrives
// as events.
func (c *Client) StreamQuery(ctx context.Context, q QueryRequest) (*Stream, error) {
	r := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "text/event-stream").
		SetBody(q)
	if q.IdempotencyKey != "" {
		r.SetHeader(headerIdempotencyKey, q.IdempotencyKey)
	}
	resp, err := r.Post("/query/stream")
	if err != nil {
		return nil, err
	}
	body := resp.RawBody()

	switch status := resp.StatusCode(); {
	case status == http.StatusNotFound || status == http.StatusMethodNotAllowed:
		_ = body.Close()
		return nil, ErrStreamUnsupported
	case status < 200 || status >= 300:
		ae := &APIError{}
		if json.NewDecoder(io.LimitReader(body, 1<<16)).Decode(ae) != nil || ae.Code == "" {
			ae = &APIError{Code: codeForStatus(status), Message: http.StatusText(status)}
		}
		ae.Status = status
		_ = body.Close()
		return nil, ae
	case !strings.HasPrefix(resp.Header().Get("Content-Type"), "text/event-stream"):
		_ = body.Close()
		return nil, ErrStreamUnsupported
	}

	replayed := resp.Header().Get(headerIdempotencyReplayed) == "true"
	s := newStream()
	go func() {
		defer s.close()
		defer body.Close()
		consume(ctx, s, body, replayed)
	}()
	return s, nil
}

func consume(ctx context.Context, s *Stream, body io.Reader, replayed bool) {
	rd := sse.NewReader(body)
	var text strings.Builder
	for {
		f, err := rd.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			s.fail(ctx, fmt.Errorf("stream ended before completion: %w", err))
			return
		}

		switch f.Type {
		case sse.TypeToken:
			text.WriteString(f.Content)
			if !s.emit(ctx, Event{Kind: EventChunk, Delta: f.Content, Text: text.String()}) {
				return
			}
		case sse.TypeCitation:
			var cit Citation
			if err := json.Unmarshal(f.Citation, &cit); err != nil {
				s.fail(ctx, fmt.Errorf("citation frame: %w", err))
				return
			}
			if !s.emit(ctx, Event{Kind: EventCitation, Citation: &cit}) {
				return
			}
		case sse.TypeDone:
			var res Result
			if err := json.Unmarshal(f.Result, &res); err != nil {
				s.fail(ctx, fmt.Errorf("done frame: %w", err))
				return
			}
			res.Replayed = replayed
			s.emit(ctx, Event{Kind: EventComplete, Result: &res})
			return
		case sse.TypeError:
			ae := &APIError{Code: CodeUpstreamUnavailable, Message: "stream failed"}
			if f.Error != nil {
				ae = &APIError{
					Code:           f.Error.Code,
					Message:        f.Error.Message,
					Field:          f.Error.Field,
					ConversationID: f.Error.ConversationID,
				}
			}
			s.fail(ctx, ae)
			return
		}
	}
}

// Emulate replays a complete answer as a stream: the answer is cut into
// whitespace-delimited chunks delivered one per interval, followed by its
// citations and completion.
func (c *Client) Emulate(ctx context.Context, res *Result) *Stream {
	return emulate(ctx, res, c.interval)
}

func emulate(ctx context.Context, res *Result, interval time.Duration) *Stream {
	s := newStream()
	go func() {
		defer s.close()

		var tick <-chan time.Time
		if interval > 0 {
			t := time.NewTicker(interval)
			defer t.Stop()
			tick = t.C
		}

		var text strings.Builder
		for _, tok := range sse.SplitTokens(res.Answer) {
			if tick != nil {
				select {
				case <-tick:
				case <-ctx.Done():
					return
				}
			}
			text.WriteString(tok)
			if !s.emit(ctx, Event{Kind: EventChunk, Delta: tok, Text: text.String()}) {
				return
			}
		}
		for i := range res.Citations {
			if !s.emit(ctx, Event{Kind: EventCitation, Citation: &res.Citations[i]}) {
				return
			}
		}
		s.emit(ctx, Event{Kind: EventComplete, Result: res})
	}()
	return s
}

// Ask streams an answer, falling back to a plain query replayed through
// Emulate when the server cannot stream. A failed plain query is delivered
// as the stream's EventError so callers handle one shape.
func (c *Client) Ask(ctx context.Context, q QueryRequest) (*Stream, error) {
	s, err := c.StreamQuery(ctx, q)
	if !errors.Is(err, ErrStreamUnsupported) {
		return s, err
	}

	res, err := c.Query(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		out := newStream()
		go func() {
			defer out.close()
			out.fail(ctx, err)
		}()
		return out, nil
	}
	return c.Emulate(ctx, res), nil
}
