// Stream HTTP handler.
//
// This file exposes the incremental variant of the query endpoint:
//   - POST /query/stream
//
// The response is a text/event-stream of "data: {json}" records:
//
//	data: {"type":"token","content":"Photosynthesis "}
//	data: {"type":"citation","citation":{"number":1,...}}
//	data: {"type":"done","result":{"conversationId":"...",...}}
//
// Headers are committed before the answer is generated, so failures after
// that point are reported as a single {"type":"error"} record instead of an
// HTTP status. While the inference service works, ": ping" comments keep
// intermediaries from timing the connection out.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-study-backend/internal/http/middleware"
	"github.com/tbourn/go-study-backend/internal/services"
	"github.com/tbourn/go-study-backend/pkg/sse"
)

// StreamQuery godoc
// @ID          streamQuestion
// @Summary     Ask a question (streamed)
// @Description Same contract as POST /query, delivered as server-sent events of type token, citation, done or error.
// @Tags        Query
// @Accept      json
// @Produce     text/event-stream
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false  "Replay key for retried submissions"
// @Param       body             body    handlers.QueryRequest  true  "Question"
//
// @Success     200  {string}  string  "event stream"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid JSON body"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /query/stream [post]
func (h *Handlers) StreamQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ctx := c.Request.Context()

	res := h.replayed(c)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	if res == nil {
		type outcome struct {
			res *services.QueryResult
			err error
		}
		done := make(chan outcome, 1)
		uid := userID(c)
		go func() {
			r, err := h.query.Ask(ctx, uid, req.toService())
			done <- outcome{r, err}
		}()

		tick := time.NewTicker(h.heartbeat)
		defer tick.Stop()
	wait:
		for {
			select {
			case o := <-done:
				if o.err != nil {
					h.streamError(c, o.err)
					return
				}
				res = o.res
				break wait
			case <-tick.C:
				_ = sse.WriteComment(c.Writer, "ping")
				c.Writer.Flush()
			}
		}
		h.record(c, res)
	}

	tokens := sse.SplitTokens(res.Answer)
	h.extendWriteDeadline(c, len(tokens))
	for i, tok := range tokens {
		if i > 0 && h.streamInterval > 0 {
			t := time.NewTimer(h.streamInterval)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		writeFrame(c, sse.Frame{Type: sse.TypeToken, Content: tok})
	}
	for _, cit := range res.Citations {
		raw, err := json.Marshal(cit)
		if err != nil {
			continue
		}
		writeFrame(c, sse.Frame{Type: sse.TypeCitation, Citation: raw})
	}

	raw, err := json.Marshal(res)
	if err != nil {
		h.streamError(c, err)
		return
	}
	writeFrame(c, sse.Frame{Type: sse.TypeDone, Result: raw})
}

// streamError writes the terminal error record for err.
func (h *Handlers) streamError(c *gin.Context, err error) {
	status, resp := describe(err)
	if status == http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().Err(err).Msg("stream failed")
	}
	writeFrame(c, sse.Frame{Type: sse.TypeError, Error: &sse.FrameError{
		Code:           resp.Code,
		Message:        resp.Message,
		Field:          resp.Field,
		ConversationID: resp.ConversationID,
	}})
}

// streamGrace is the write budget of a stream beyond token pacing.
const streamGrace = 30 * time.Second

// extendWriteDeadline moves the connection's write deadline past the paced
// delivery of n tokens. The server write timeout only covers generation;
// pacing starts after it. Writers without deadline support are left alone.
func (h *Handlers) extendWriteDeadline(c *gin.Context, n int) {
	budget := streamGrace + time.Duration(n)*h.streamInterval
	rc := http.NewResponseController(c.Writer)
	if err := rc.SetWriteDeadline(time.Now().Add(budget)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		middleware.LoggerFrom(c).Debug().Err(err).Msg("stream write deadline not extended")
	}
}

func writeFrame(c *gin.Context, f sse.Frame) {
	if err := sse.Write(c.Writer, f); err != nil {
		middleware.LoggerFrom(c).Debug().Err(err).Str("frame", f.Type).Msg("stream write failed")
		return
	}
	c.Writer.Flush()
}
