// Conversation HTTP handlers.
//
// This file exposes REST endpoints for conversation resources:
//   - GET    /conversation                 (history, paginated, ETag support)
//   - GET    /conversation/{id}            (full conversation with messages)
//   - DELETE /conversation/{id}            (archive; conversations are never hard-deleted)
//   - PUT    /conversation/{id}/restore    (reactivate an archived conversation)
//   - PATCH  /conversation/{id}/settings   (change grade/subject/language)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-study-backend/internal/domain"
	"github.com/tbourn/go-study-backend/internal/services"
	"github.com/tbourn/go-study-backend/internal/utils"
)

//
// DTOs
//

// HistoryResponse wraps a page of conversation previews. Groups is only
// present when the request asked for ?group=recency.
type HistoryResponse struct {
	Success    bool                         `json:"success" example:"true"`
	Data       []domain.ConversationPreview `json:"data"`
	Pagination utils.Page                   `json:"pagination"`
	Groups     []services.HistoryGroup      `json:"groups,omitempty"`
}

// UpdateSettingsRequest is the JSON payload for changing conversation
// settings. Omitted fields are kept.
type UpdateSettingsRequest struct {
	Grade    *int    `json:"grade,omitempty" example:"9"`
	Subject  *string `json:"subject,omitempty" example:"mathematics"`
	Language *string `json:"language,omitempty" example:"hindi"`
}

//
// Helpers
//

func historyFilter(c *gin.Context) (services.HistoryFilter, bool) {
	f := services.HistoryFilter{
		Status:  c.Query("status"),
		Subject: c.Query("subject"),
	}
	if g := strings.TrimSpace(c.Query("grade")); g != "" {
		n := utils.AtoiDefault(g, -1)
		if n < 0 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "grade must be an integer")
			return f, false
		}
		f.Grade = n
	}
	return f, true
}

//
// Handlers
//

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations (paginated)
// @Description Returns the caller's conversations, most recently updated first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"conversations:u1:3:1700000000\")
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       limit          query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Param       status         query   string  false  "active (default), archived or all"
// @Param       subject        query   string  false  "Subject filter"
// @Param       grade          query   int     false  "Grade filter"  minimum(5) maximum(10)
// @Param       group          query   string  false  "recency adds Today/Yesterday/Last 7 Days/Older groups"
//
// @Success     200  {object}  handlers.HistoryResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /conversation [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, limit := clampPagination(c)
	f, valid := historyFilter(c)
	if !valid {
		return
	}
	group := strings.EqualFold(c.Query("group"), "recency")

	// ETag pre-check (best effort).
	if count, maxTS, err := h.history.Stats(ctx, uid, f); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"conversations:%s:%d:%d:%d:%d:%s:%s:%d:%t"`,
			uid, count, ts, page, limit, f.Status, f.Subject, f.Grade, group)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	res, err := h.history.List(ctx, uid, f, page, limit)
	if err != nil {
		failService(c, err)
		return
	}

	resp := HistoryResponse{Success: true, Data: res.Items, Pagination: res.Pagination}
	if group {
		resp.Groups = services.GroupByRecency(res.Items, h.now(), h.loc)
		if resp.Groups == nil {
			resp.Groups = []services.HistoryGroup{}
		}
	}
	ok(c, http.StatusOK, resp)
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Get a conversation
// @Description Returns the conversation with its full message log. Missing and foreign conversations both return 404.
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Conversation ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.DataResponse[domain.Conversation]
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Conversation not found"
// @Router      /conversation/{id} [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	id, valid := pathUUID(c, "id", "conversation")
	if !valid {
		return
	}
	conv, err := h.convs.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	if conv.Messages == nil {
		conv.Messages = []domain.Message{}
	}
	okData(c, http.StatusOK, conv)
}

// ArchiveConversation godoc
// @ID          archiveConversation
// @Summary     Archive a conversation
// @Description Soft-deletes an active conversation. It can be restored later.
// @Tags        Conversations
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Conversation ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse "Conversation not found"
// @Failure     409  {object}  handlers.ErrorResponse "Already archived"
// @Router      /conversation/{id} [delete]
func (h *Handlers) ArchiveConversation(c *gin.Context) {
	id, valid := pathUUID(c, "id", "conversation")
	if !valid {
		return
	}
	if err := h.convs.Archive(c.Request.Context(), userID(c), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// RestoreConversation godoc
// @ID          restoreConversation
// @Summary     Restore a conversation
// @Description Reactivates an archived conversation.
// @Tags        Conversations
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Conversation ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse "Conversation not found"
// @Failure     409  {object}  handlers.ErrorResponse "Not archived"
// @Router      /conversation/{id}/restore [put]
func (h *Handlers) RestoreConversation(c *gin.Context) {
	id, valid := pathUUID(c, "id", "conversation")
	if !valid {
		return
	}
	if err := h.convs.Restore(c.Request.Context(), userID(c), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// UpdateSettings godoc
// @ID          updateConversationSettings
// @Summary     Change conversation settings
// @Description Updates grade, subject or language of a conversation. This is the only way its metadata changes after creation.
// @Tags        Conversations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Conversation ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateSettingsRequest  true  "Fields to change"
//
// @Success     200  {object}  handlers.DataResponse[domain.Conversation]
// @Failure     400  {object}  handlers.ErrorResponse "Validation error"
// @Failure     404  {object}  handlers.ErrorResponse "Conversation not found"
// @Failure     409  {object}  handlers.ErrorResponse "Concurrent update"
// @Router      /conversation/{id}/settings [patch]
func (h *Handlers) UpdateSettings(c *gin.Context) {
	id, valid := pathUUID(c, "id", "conversation")
	if !valid {
		return
	}
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.Grade == nil && req.Subject == nil && req.Language == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "nothing to update")
		return
	}
	conv, err := h.convs.UpdateSettings(c.Request.Context(), userID(c), id, services.SettingsPatch{
		Grade:    req.Grade,
		Subject:  req.Subject,
		Language: req.Language,
	})
	if err != nil {
		failService(c, err)
		return
	}
	okData(c, http.StatusOK, conv)
}
