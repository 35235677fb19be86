// Query HTTP handlers.
//
// This file exposes the question-answering endpoint:
//   - POST /query   (answer a question, creating or continuing a conversation)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// turn exists for (user, scope, key), the handler returns that recorded turn
// and sets `Idempotency-Replayed: true`. The inference service is not called
// and no messages are appended.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-study-backend/internal/http/middleware"
	"github.com/tbourn/go-study-backend/internal/services"
)

// HeaderIdempotencyReplayed marks a response served from a recorded turn.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

//
// DTOs
//

// QueryRequest is the JSON payload for asking a question.
type QueryRequest struct {
	// Query is the question, 1-500 characters after trimming.
	Query string `json:"query" example:"What is photosynthesis?"`
	// Grade is the class level, 5-10.
	Grade int `json:"grade" example:"8"`
	// Subject is one of science, mathematics, social_science (aliases accepted).
	Subject string `json:"subject" example:"science"`
	// Language is english or hindi. A stored profile preference wins over it.
	Language string `json:"language,omitempty" example:"english"`
	// ConversationID continues an existing conversation when set.
	ConversationID string `json:"conversationId,omitempty" example:"0b6f3c0e-8a53-4c43-9d43-6f9d8f1b2f4a"`
	// TopK is the retrieval depth, 1-10 (default 5).
	TopK int `json:"top_k,omitempty" example:"5"`
}

func (r QueryRequest) toService() services.QueryRequest {
	return services.QueryRequest{
		Query:          r.Query,
		Grade:          r.Grade,
		Subject:        r.Subject,
		Language:       r.Language,
		ConversationID: r.ConversationID,
		TopK:           r.TopK,
	}
}

// QueryResponse is the success envelope of POST /query.
type QueryResponse struct {
	Success bool `json:"success" example:"true"`
	services.QueryResult
}

//
// Handlers
//

// Query godoc
// @ID          askQuestion
// @Summary     Ask a question
// @Description Answers a question with citations. Without conversationId a new conversation is created.
// @Description On an upstream failure the question is still stored and the 503 body names the conversation.
// @Tags        Query
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false  "Replay key for retried submissions"  example(7f6c2a9e-retry-1)
// @Param       body             body    handlers.QueryRequest  true  "Question"
//
// @Success     200  {object}  handlers.QueryResponse
// @Header      200  {string}  Idempotency-Replayed  "true when served from a recorded turn"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Conversation archived or concurrently modified"
// @Failure     429  {object}  handlers.ErrorResponse  "Too many requests"
// @Failure     503  {object}  handlers.ErrorResponse  "Answer service unavailable"
// @Router      /query [post]
func (h *Handlers) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if res := h.replayed(c); res != nil {
		ok(c, http.StatusOK, QueryResponse{Success: true, QueryResult: *res})
		return
	}

	res, err := h.query.Ask(c.Request.Context(), userID(c), req.toService())
	if err != nil {
		failService(c, err)
		return
	}
	h.record(c, res)

	ok(c, http.StatusOK, QueryResponse{Success: true, QueryResult: *res})
}

//
// Idempotency helpers (shared with the stream handler)
//

// replayed returns the recorded turn for a request the idempotency
// middleware flagged as a replay, or nil to process it normally.
func (h *Handlers) replayed(c *gin.Context) *services.QueryResult {
	if h.idem == nil || !middleware.IsReplay(c) {
		return nil
	}
	key, _ := middleware.GetIdempotencyKey(c)
	scope := middleware.GetIdempotencyScope(c)
	ctx := c.Request.Context()
	uid := userID(c)

	rec, err := h.idem.Get(ctx, uid, scope, key, h.now().UTC())
	if err != nil {
		// Expired between the middleware lookup and now.
		return nil
	}
	res, err := h.query.Replay(ctx, uid, rec.ConversationID, rec.MessageIndex, rec.IsNew)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).
			Str("conversation_id", rec.ConversationID).
			Msg("recorded turn could not be replayed")
		return nil
	}
	c.Header(HeaderIdempotencyReplayed, "true")
	return res
}

// record stores a completed turn under the request's idempotency key.
// Failures are logged and otherwise ignored.
func (h *Handlers) record(c *gin.Context, res *services.QueryResult) {
	if h.idem == nil {
		return
	}
	key, present := middleware.GetIdempotencyKey(c)
	scope := middleware.GetIdempotencyScope(c)
	if !present || scope == "" {
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.idem.Save(ctx, userID(c), scope, key, res); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency record not saved")
	}
}
