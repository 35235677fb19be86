// Feedback HTTP handlers.
//
// This file exposes REST endpoints for ratings of assistant messages:
//   - POST   /feedback                     (rate a message once)
//   - GET    /feedback/my-feedback         (caller's ratings, paginated)
//   - GET    /feedback/conversation/{id}   (caller's ratings in one conversation)
//   - PUT    /feedback/{id}                (change rating/comment)
//   - DELETE /feedback/{id}                (withdraw a rating)
//
// Handlers in this file are transport-thin: they validate input, delegate to
// application services, and translate domain/service errors into HTTP results.
// A second rating for the same message is a 409 carrying the existing rating.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-study-backend/internal/domain"
	"github.com/tbourn/go-study-backend/internal/services"
	"github.com/tbourn/go-study-backend/internal/utils"
)

// SubmitFeedbackRequest is the JSON payload for rating an assistant message.
type SubmitFeedbackRequest struct {
	ConversationID string `json:"conversationId" example:"0b6f3c0e-8a53-4c43-9d43-6f9d8f1b2f4a"`
	// MessageIndex is the position of the assistant message in the conversation.
	MessageIndex *int `json:"messageIndex" example:"1"`
	// Rating is positive or negative.
	Rating  string `json:"rating" example:"positive"`
	Comment string `json:"comment,omitempty" example:"Clear explanation"`
}

// UpdateFeedbackRequest is the JSON payload for changing a rating.
type UpdateFeedbackRequest struct {
	Rating  string `json:"rating" example:"negative"`
	Comment string `json:"comment,omitempty" example:"Missed the second step"`
}

// FeedbackListResponse is a page of the caller's ratings.
type FeedbackListResponse struct {
	Success    bool              `json:"success" example:"true"`
	Data       []domain.Feedback `json:"data"`
	Pagination utils.Page        `json:"pagination"`
}

// SubmitFeedback godoc
// @ID          submitFeedback
// @Summary     Rate an assistant message
// @Description Records one rating per (conversation, message, user). Ratings on user messages are rejected.
// @Tags        Feedback
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.SubmitFeedbackRequest  true  "Rating"
//
// @Success     201  {object}  handlers.DataResponse[domain.Feedback]
// @Failure     400  {object}  handlers.ErrorResponse "Invalid target message or rating"
// @Failure     404  {object}  handlers.ErrorResponse "Conversation not found"
// @Failure     409  {object}  handlers.ErrorResponse "Already rated (carries existingRating)"
// @Router      /feedback [post]
func (h *Handlers) SubmitFeedback(c *gin.Context) {
	var req SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.MessageIndex == nil {
		abort(c, http.StatusBadRequest, ErrorResponse{
			Code:    ErrCodeBadRequest,
			Message: "messageIndex: is required",
			Field:   "messageIndex",
		})
		return
	}

	fb, err := h.fb.Submit(c.Request.Context(), userID(c), services.FeedbackInput{
		ConversationID: req.ConversationID,
		MessageIndex:   *req.MessageIndex,
		Rating:         req.Rating,
		Comment:        req.Comment,
	})
	if err != nil {
		failService(c, err)
		return
	}
	okData(c, http.StatusCreated, fb)
}

// ListMyFeedback godoc
// @ID          listMyFeedback
// @Summary     List my feedback
// @Tags        Feedback
// @Produce     json
// @Security    BearerAuth
//
// @Param       page    query  int     false  "Page number"     minimum(1) default(1)
// @Param       limit   query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Param       rating  query  string  false  "positive or negative"
//
// @Success     200  {object}  handlers.FeedbackListResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad rating filter"
// @Router      /feedback/my-feedback [get]
func (h *Handlers) ListMyFeedback(c *gin.Context) {
	page, limit := clampPagination(c)
	items, pg, err := h.fb.ListMine(c.Request.Context(), userID(c), c.Query("rating"), page, limit)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, FeedbackListResponse{Success: true, Data: items, Pagination: pg})
}

// ListConversationFeedback godoc
// @ID          listConversationFeedback
// @Summary     List my feedback in a conversation
// @Description Used by clients to hydrate their local feedback cache.
// @Tags        Feedback
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Conversation ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.DataResponse[[]domain.Feedback]
// @Failure     404  {object}  handlers.ErrorResponse "Conversation not found"
// @Router      /feedback/conversation/{id} [get]
func (h *Handlers) ListConversationFeedback(c *gin.Context) {
	id, valid := pathUUID(c, "id", "conversation")
	if !valid {
		return
	}
	items, err := h.fb.ListForConversation(c.Request.Context(), userID(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	okData(c, http.StatusOK, items)
}

// UpdateFeedback godoc
// @ID          updateFeedback
// @Summary     Change a rating
// @Tags        Feedback
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Feedback ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateFeedbackRequest  true  "New rating"
//
// @Success     200  {object}  handlers.DataResponse[domain.Feedback]
// @Failure     400  {object}  handlers.ErrorResponse "Validation error"
// @Failure     404  {object}  handlers.ErrorResponse "Feedback not found"
// @Router      /feedback/{id} [put]
func (h *Handlers) UpdateFeedback(c *gin.Context) {
	id, valid := pathUUID(c, "id", "feedback")
	if !valid {
		return
	}
	var req UpdateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	fb, err := h.fb.Update(c.Request.Context(), userID(c), id, req.Rating, req.Comment)
	if err != nil {
		failService(c, err)
		return
	}
	okData(c, http.StatusOK, fb)
}

// DeleteFeedback godoc
// @ID          deleteFeedback
// @Summary     Withdraw a rating
// @Tags        Feedback
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Feedback ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse "Feedback not found"
// @Router      /feedback/{id} [delete]
func (h *Handlers) DeleteFeedback(c *gin.Context) {
	id, valid := pathUUID(c, "id", "feedback")
	if !valid {
		return
	}
	if err := h.fb.Delete(c.Request.Context(), userID(c), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
