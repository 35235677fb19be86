// Profile HTTP handlers.
//
//   - GET /profile   (caller's preferences)
//   - PUT /profile   (set or clear the preferred language)
//
// The preferred language overrides the language a query asks for.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UpdateProfileRequest is the JSON payload for PUT /profile. An empty
// preferredLanguage clears the preference.
type UpdateProfileRequest struct {
	PreferredLanguage string `json:"preferredLanguage" example:"hindi"`
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Get my profile
// @Tags        Profile
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.DataResponse[domain.UserProfile]
// @Router      /profile [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	p, err := h.profile.Get(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err)
		return
	}
	okData(c, http.StatusOK, p)
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Set my preferred language
// @Tags        Profile
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.UpdateProfileRequest  true  "Preference"
// @Success     200  {object}  handlers.DataResponse[domain.UserProfile]
// @Failure     400  {object}  handlers.ErrorResponse "Unknown language"
// @Router      /profile [put]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.profile.SetPreferredLanguage(c.Request.Context(), userID(c), req.PreferredLanguage)
	if err != nil {
		failService(c, err)
		return
	}
	okData(c, http.StatusOK, p)
}
