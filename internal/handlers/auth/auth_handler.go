// internal/handlers/auth/auth_handler.go
package auth

import (
	"errors"
	"net/http"

	"blog-session/internal/domain/auth"
	"blog-session/internal/middleware"
	xerrors "blog-session/internal/pkg/errors"
	"blog-session/internal/pkg/response"
	"blog-session/internal/service/account"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	accountService *account.AccountService
	logger         *zap.Logger
}

func NewAuthHandler(accountService *account.AccountService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// ========== Registration & Login ==========

// Register handles user registration (public endpoint)
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	resp, err := h.accountService.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, xerrors.ErrConflict) {
			response.Error(c, http.StatusConflict, "username already taken", nil)
			return
		}
		h.logger.Error("registration failed", zap.String("username", req.Username), zap.Error(err))
		response.FromError(c, err)
		return
	}

	response.Data(c, http.StatusCreated, resp)
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	resp, err := h.accountService.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, xerrors.ErrUnauthorized) {
			response.Unauthorized(c, "invalid username or password")
			return
		}
		h.logger.Error("login failed", zap.String("username", req.Username), zap.Error(err))
		response.FromError(c, err)
		return
	}

	h.logger.Info("user logged in", zap.String("user_id", resp.ID))
	response.Data(c, http.StatusOK, resp)
}

// ========== Sessions ==========

// Refresh exchanges a refresh token for a new token pair (public endpoint)
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	resp, err := h.accountService.Refresh(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, xerrors.ErrUnauthorized) {
			response.Unauthorized(c, "refresh token rejected")
			return
		}
		h.logger.Error("refresh failed", zap.Error(err))
		response.FromError(c, err)
		return
	}

	response.Data(c, http.StatusOK, resp)
}

// Logout handles user logout (requires auth)
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req auth.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.accountService.Logout(c.Request.Context(), userID, req.DeviceID); err != nil {
		h.logger.Error("logout failed", zap.String("user_id", userID), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "logout failed", err)
		return
	}

	response.Success(c, http.StatusOK, "logout successful", nil)
}

// ========== Passwords ==========

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req auth.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.accountService.ChangePassword(c.Request.Context(), userID, &req); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "password changed", nil)
}

func (h *AuthHandler) SetPassword(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req auth.SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.accountService.SetPassword(c.Request.Context(), userID, &req); err != nil {
		if errors.Is(err, xerrors.ErrConflict) {
			response.Error(c, http.StatusConflict, "password already set, use change-password", nil)
			return
		}
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "password set", nil)
}

// ========== Administration ==========

func (h *AuthHandler) JoinAdmin(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req auth.JoinAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	info, err := h.accountService.JoinAdmin(c.Request.Context(), userID, &req)
	if err != nil {
		h.logger.Warn("join admin refused", zap.String("user_id", userID), zap.Error(err))
		response.FromError(c, err)
		return
	}

	response.Data(c, http.StatusOK, info)
}

func (h *AuthHandler) DeleteUser(c *gin.Context) {
	userID := middleware.MustGetUserID(c)
	target := c.Param("id")

	if err := h.accountService.DeleteUser(c.Request.Context(), userID, middleware.IsAdmin(c), target); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "user deleted", nil)
}

// ListUsers is admin only.
func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.accountService.ListUsers(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Data(c, http.StatusOK, users)
}
