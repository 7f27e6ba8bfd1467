// internal/handlers/auth/oauth_handler.go
package auth

import (
	"errors"
	"net/http"

	"blog-session/internal/domain/auth"
	"blog-session/internal/middleware"
	xerrors "blog-session/internal/pkg/errors"
	"blog-session/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Authorize stands in for the provider redirect. Called with an access token
// it starts a link flow for that account.
func (h *AuthHandler) Authorize(c *gin.Context) {
	var req auth.OAuthAuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	linkUser, _ := middleware.GetUserID(c)
	token, err := h.accountService.Authorize(c.Param("provider"), req.External, linkUser)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Data(c, http.StatusOK, auth.OAuthTokenResponse{Token: token})
}

// OAuthUserInfo signs in with a hand-off token.
func (h *AuthHandler) OAuthUserInfo(c *gin.Context) {
	handoff := middleware.BearerToken(c)
	if handoff == "" {
		response.Unauthorized(c, "missing authorization token")
		return
	}

	resp, err := h.accountService.OAuthUserInfo(c.Request.Context(), handoff, c.Query("deviceId"))
	if err != nil {
		if errors.Is(err, xerrors.ErrUnauthorized) {
			response.Unauthorized(c, "oauth token rejected")
			return
		}
		h.logger.Error("oauth sign in failed", zap.Error(err))
		response.FromError(c, err)
		return
	}
	response.Data(c, http.StatusOK, resp)
}

func (h *AuthHandler) LinkOAuth(c *gin.Context) {
	handoff := middleware.BearerToken(c)
	if handoff == "" {
		response.Unauthorized(c, "missing authorization token")
		return
	}

	var req auth.OAuthLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	info, err := h.accountService.LinkOAuth(c.Request.Context(), c.Param("provider"), handoff)
	if err != nil {
		if errors.Is(err, xerrors.ErrUnauthorized) {
			response.Unauthorized(c, "oauth token rejected")
			return
		}
		response.FromError(c, err)
		return
	}
	response.Data(c, http.StatusOK, info)
}

// UnlinkOAuth requires a regular access token.
func (h *AuthHandler) UnlinkOAuth(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	info, err := h.accountService.UnlinkOAuth(c.Request.Context(), userID, c.Param("provider"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Data(c, http.StatusOK, info)
}
