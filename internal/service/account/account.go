// internal/service/account/account.go
package account

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"blog-session/internal/domain/auth"
	xerrors "blog-session/internal/pkg/errors"
	"blog-session/internal/pkg/jwt"
	"blog-session/internal/repository/memory"
	"blog-session/internal/repository/redisrepo"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AccountService is the backend side of the auth endpoints.
type AccountService struct {
	accounts    *memory.AccountRepository
	posts       *memory.PostRepository
	sessions    *redisrepo.SessionRepository
	jwtManager  *jwt.Manager
	adminSecret string
	logger      *zap.Logger
}

func NewAccountService(
	accounts *memory.AccountRepository,
	posts *memory.PostRepository,
	sessions *redisrepo.SessionRepository,
	jwtManager *jwt.Manager,
	adminSecret string,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		accounts:    accounts,
		posts:       posts,
		sessions:    sessions,
		jwtManager:  jwtManager,
		adminSecret: adminSecret,
		logger:      logger,
	}
}

// ========== Registration & Login ==========

// Register creates an account; the first account becomes admin.
func (s *AccountService) Register(ctx context.Context, req *auth.RegisterRequest) (*auth.AuthResponse, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	acc := &auth.Account{
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
		IsAdmin:      s.accounts.Count(ctx) == 0,
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		return nil, err
	}

	s.logger.Info("account registered", zap.String("user_id", acc.ID), zap.Bool("is_admin", acc.IsAdmin))
	return s.issue(ctx, acc, req.DeviceID)
}

// Login checks the password. Unknown users and bad passwords are
// indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, req *auth.LoginRequest) (*auth.AuthResponse, error) {
	acc, err := s.accounts.FindByUsername(ctx, req.Username)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, xerrors.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !acc.HasPassword() {
		return nil, xerrors.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
		return nil, xerrors.ErrUnauthorized
	}
	return s.issue(ctx, acc, req.DeviceID)
}

// ========== Sessions ==========

// Refresh rotates the refresh session and issues a new pair. The refresh
// token must be live, unconsumed, and bound to the same device.
func (s *AccountService) Refresh(ctx context.Context, req *auth.RefreshRequest) (*auth.AuthResponse, error) {
	claims, err := s.jwtManager.Verifier.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, xerrors.ErrUnauthorized
	}

	stored, err := s.sessions.Get(ctx, claims.ID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, xerrors.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if stored.DeviceID != req.DeviceID || stored.UserID != claims.UserID() {
		s.logger.Warn("refresh token presented from another device", zap.String("user_id", stored.UserID))
		return nil, xerrors.ErrUnauthorized
	}

	acc, err := s.accounts.FindByID(ctx, stored.UserID)
	if err != nil {
		return nil, xerrors.ErrUnauthorized
	}

	resp, next, err := s.mint(acc, req.DeviceID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Rotate(ctx, stored, next); err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrUnauthorized
		}
		return nil, err
	}
	return resp, nil
}

// Logout revokes the device's refresh sessions.
func (s *AccountService) Logout(ctx context.Context, userID, deviceID string) error {
	n, err := s.sessions.DeleteForDevice(ctx, userID, deviceID)
	if err != nil {
		return err
	}
	s.logger.Info("logged out", zap.String("user_id", userID), zap.Int("sessions", n))
	return nil
}

// ========== Passwords ==========

func (s *AccountService) ChangePassword(ctx context.Context, userID string, req *auth.ChangePasswordRequest) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = s.accounts.Update(ctx, userID, func(acc *auth.Account) error {
		if !acc.HasPassword() {
			return xerrors.Wrap(xerrors.ErrInvalidInput, "account has no password, use set-password")
		}
		if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.OldPassword)) != nil {
			return xerrors.Wrap(xerrors.ErrInvalidInput, "current password is incorrect")
		}
		acc.PasswordHash = string(hashed)
		return nil
	})
	return err
}

// SetPassword is only allowed while the account has no password.
func (s *AccountService) SetPassword(ctx context.Context, userID string, req *auth.SetPasswordRequest) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = s.accounts.Update(ctx, userID, func(acc *auth.Account) error {
		if acc.HasPassword() {
			return xerrors.ErrConflict
		}
		acc.PasswordHash = string(hashed)
		return nil
	})
	return err
}

// ========== Administration ==========

func (s *AccountService) JoinAdmin(ctx context.Context, userID string, req *auth.JoinAdminRequest) (*auth.UserInfo, error) {
	if s.adminSecret == "" || req.Secret != s.adminSecret {
		return nil, xerrors.ErrForbidden
	}
	acc, err := s.accounts.Update(ctx, userID, func(acc *auth.Account) error {
		acc.IsAdmin = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	info := acc.Info()
	return &info, nil
}

// DeleteUser lets admins delete anyone and users delete themselves.
func (s *AccountService) DeleteUser(ctx context.Context, callerID string, callerAdmin bool, targetID string) error {
	if targetID != callerID && !callerAdmin {
		return xerrors.ErrForbidden
	}
	if err := s.accounts.Delete(ctx, targetID); err != nil {
		return err
	}
	if err := s.sessions.DeleteAllForUser(ctx, targetID); err != nil {
		s.logger.Error("failed to revoke sessions of deleted user", zap.String("user_id", targetID), zap.Error(err))
	}
	s.posts.ForgetUser(ctx, targetID)
	return nil
}

func (s *AccountService) ListUsers(ctx context.Context) ([]auth.UserInfo, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]auth.UserInfo, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, acc.Info())
	}
	return out, nil
}

// ========== OAuth ==========

// Authorize stands in for a provider redirect and mints a hand-off token.
func (s *AccountService) Authorize(provider, external, linkUserID string) (string, error) {
	if !auth.IsSupportedProvider(provider) {
		return "", xerrors.Wrap(xerrors.ErrInvalidInput, "unsupported provider")
	}
	tok, _, err := s.jwtManager.Generator.GenerateOAuthToken(provider, external, linkUserID)
	return tok, err
}

// OAuthUserInfo signs in with a hand-off token, creating an OAuth-only
// account on first use.
func (s *AccountService) OAuthUserInfo(ctx context.Context, handoff, deviceID string) (*auth.AuthResponse, error) {
	claims, err := s.jwtManager.Verifier.VerifyOAuthToken(handoff)
	if err != nil {
		return nil, xerrors.ErrUnauthorized
	}
	if deviceID == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "deviceId is required")
	}

	acc, err := s.accounts.FindByExternal(ctx, claims.Provider, claims.UserID())
	if errors.Is(err, xerrors.ErrNotFound) {
		acc, err = s.createOAuthAccount(ctx, claims.Provider, claims.UserID())
	}
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, acc, deviceID)
}

// LinkOAuth attaches the provider identity to the account the flow was
// started for.
func (s *AccountService) LinkOAuth(ctx context.Context, provider, handoff string) (*auth.UserInfo, error) {
	claims, err := s.jwtManager.Verifier.VerifyOAuthToken(handoff)
	if err != nil || claims.LinkUser == "" {
		return nil, xerrors.ErrUnauthorized
	}
	if claims.Provider != provider {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "token was issued for another provider")
	}

	acc, err := s.accounts.Update(ctx, claims.LinkUser, func(acc *auth.Account) error {
		if acc.OAuth == nil {
			acc.OAuth = map[string]string{}
		}
		acc.OAuth[provider] = claims.UserID()
		return nil
	})
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, xerrors.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	info := acc.Info()
	return &info, nil
}

// UnlinkOAuth refuses to remove the last way to sign in.
func (s *AccountService) UnlinkOAuth(ctx context.Context, userID, provider string) (*auth.UserInfo, error) {
	acc, err := s.accounts.Update(ctx, userID, func(acc *auth.Account) error {
		if _, ok := acc.OAuth[provider]; !ok {
			return xerrors.ErrNotFound
		}
		if !acc.HasPassword() && len(acc.OAuth) == 1 {
			return xerrors.Wrap(xerrors.ErrInvalidInput, "set a password before unlinking the last provider")
		}
		delete(acc.OAuth, provider)
		return nil
	})
	if err != nil {
		return nil, err
	}
	info := acc.Info()
	return &info, nil
}

// ========== Helpers ==========

func (s *AccountService) createOAuthAccount(ctx context.Context, provider, external string) (*auth.Account, error) {
	for i := 0; i < 10; i++ {
		username := external
		if i > 0 {
			username = external + strconv.Itoa(i)
		}
		acc := &auth.Account{
			Username: username,
			IsAdmin:  s.accounts.Count(ctx) == 0,
			OAuth:    map[string]string{provider: external},
		}
		err := s.accounts.Create(ctx, acc)
		if err == nil {
			s.logger.Info("oauth account created", zap.String("user_id", acc.ID), zap.String("provider", provider))
			return acc, nil
		}
		if !errors.Is(err, xerrors.ErrConflict) {
			return nil, err
		}
	}
	return nil, xerrors.ErrConflict
}

func (s *AccountService) issue(ctx context.Context, acc *auth.Account, deviceID string) (*auth.AuthResponse, error) {
	resp, sess, err := s.mint(acc, deviceID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *AccountService) mint(acc *auth.Account, deviceID string) (*auth.AuthResponse, *auth.RefreshSession, error) {
	gen := s.jwtManager.Generator

	accessToken, _, err := gen.GenerateAccessToken(acc.ID, acc.Username, acc.IsAdmin, deviceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, jti, err := gen.GenerateRefreshToken(acc.ID, deviceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := time.Now()
	sess := &auth.RefreshSession{
		JTI:       jti,
		UserID:    acc.ID,
		DeviceID:  deviceID,
		CreatedAt: now,
		ExpiresAt: now.Add(gen.RefreshTtl),
	}

	info := acc.Info()
	return &auth.AuthResponse{
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		ID:             info.ID,
		Username:       info.Username,
		AvatarURL:      info.AvatarURL,
		IsAdmin:        info.IsAdmin,
		OAuthProviders: info.OAuthProviders,
	}, sess, nil
}
