// internal/service/auth/service.go
package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"blog-session/internal/domain/auth"
	xerrors "blog-session/internal/pkg/errors"
	"blog-session/internal/pkg/session"
	"blog-session/internal/service/refresh"
	"blog-session/internal/transport"

	"go.uber.org/zap"
)

// AuthService issues the account calls and keeps the session store in step
// with their results.
type AuthService struct {
	dispatcher *transport.Dispatcher
	store      *session.Store
	devices    refresh.DeviceSource
	tokens     transport.TokenResolver
	logger     *zap.Logger
}

func NewAuthService(
	dispatcher *transport.Dispatcher,
	store *session.Store,
	devices refresh.DeviceSource,
	tokens transport.TokenResolver,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		dispatcher: dispatcher,
		store:      store,
		devices:    devices,
		tokens:     tokens,
		logger:     logger,
	}
}

// ========== Sign in ==========

// Login exchanges credentials for a session. A 401 here means bad
// credentials and is returned without ending any existing session.
func (s *AuthService) Login(ctx context.Context, username, password string) (*session.UserRecord, error) {
	deviceID, err := s.devices.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device id: %w", err)
	}

	req := auth.LoginRequest{Username: username, Password: password, DeviceID: deviceID}
	if err := auth.Validate(req); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, err.Error())
	}

	var resp auth.AuthResponse
	if err := s.dispatcher.Anonymous().JSON(ctx, http.MethodPost, "/auth/login", req, &resp, transport.WithBypass401()); err != nil {
		return nil, err
	}
	return s.establish(&resp)
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, username, password string) (*session.UserRecord, error) {
	deviceID, err := s.devices.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device id: %w", err)
	}

	req := auth.RegisterRequest{Username: username, Password: password, DeviceID: deviceID}
	if err := auth.Validate(req); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, err.Error())
	}

	var resp auth.AuthResponse
	if err := s.dispatcher.Optional().JSON(ctx, http.MethodPost, "/auth/register", req, &resp, transport.WithBypass401()); err != nil {
		return nil, err
	}
	return s.establish(&resp)
}

// Logout ends the server session for this device. The local session is
// cleared whatever the server answers.
func (s *AuthService) Logout(ctx context.Context) error {
	defer s.store.Clear()

	deviceID, err := s.devices.DeviceID(ctx)
	if err != nil {
		s.logger.Warn("logout without device id", zap.Error(err))
		return nil
	}

	req := auth.LogoutRequest{DeviceID: deviceID}
	if err := s.dispatcher.Mandatory().JSON(ctx, http.MethodPost, "/auth/logout", req, nil, transport.WithBypass401()); err != nil {
		s.logger.Info("server logout failed, clearing local session anyway", zap.Error(err))
	}
	return nil
}

// Refresh implements refresh.Refresher. 401s are left to the resolver so a
// failed refresh does not trigger a second login redirect.
func (s *AuthService) Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.AuthResponse, error) {
	var resp auth.AuthResponse
	if err := s.dispatcher.Anonymous().JSON(ctx, http.MethodPost, "/auth/refresh", req, &resp, transport.WithBypass401()); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ========== Passwords ==========

func (s *AuthService) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	req := auth.ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
	if err := auth.Validate(req); err != nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, err.Error())
	}
	return s.dispatcher.Mandatory().JSON(ctx, http.MethodPost, "/auth/change-password", req, nil)
}

// SetPassword gives an OAuth-only account a local password.
func (s *AuthService) SetPassword(ctx context.Context, newPassword string) error {
	req := auth.SetPasswordRequest{NewPassword: newPassword}
	if err := auth.Validate(req); err != nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, err.Error())
	}
	return s.dispatcher.Mandatory().JSON(ctx, http.MethodPost, "/auth/set-password", req, nil)
}

// ========== Administration ==========

// JoinAdmin promotes the current user and merges the updated record.
func (s *AuthService) JoinAdmin(ctx context.Context, secret string) (*session.UserRecord, error) {
	req := auth.JoinAdminRequest{Secret: secret}
	if err := auth.Validate(req); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, err.Error())
	}
	return s.doAndMerge(ctx, s.dispatcher.Mandatory(), http.MethodPut, "/auth/join-admin", req)
}

// DeleteUser removes an account. Deleting yourself ends the session.
func (s *AuthService) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "user id is required")
	}
	if err := s.dispatcher.Mandatory().JSON(ctx, http.MethodDelete, "/auth/"+url.PathEscape(userID), nil, nil); err != nil {
		return err
	}
	if current := s.store.User(); current != nil && current.ID == userID {
		s.logger.Info("current account deleted, ending session", zap.String("user_id", userID))
		s.store.Clear()
	}
	return nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]auth.UserInfo, error) {
	var users []auth.UserInfo
	if err := s.dispatcher.Mandatory().JSON(ctx, http.MethodGet, "/auth/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ========== OAuth ==========

// OAuthUserInfo signs in with a token handed over by an external OAuth
// redirect. The token is not in the store yet, so it is sent explicitly.
func (s *AuthService) OAuthUserInfo(ctx context.Context, token string) (*session.UserRecord, error) {
	if token == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "oauth token is required")
	}
	deviceID, err := s.devices.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device id: %w", err)
	}

	var resp auth.AuthResponse
	err = s.dispatcher.Anonymous().JSON(ctx, http.MethodGet, "/auth/oauth/userinfo", nil, &resp,
		transport.WithBearer(token),
		transport.WithQuery(url.Values{"deviceId": {deviceID}}),
	)
	if err != nil {
		return nil, err
	}
	return s.establish(&resp)
}

// LinkOAuth attaches a provider account using the freshly minted token.
func (s *AuthService) LinkOAuth(ctx context.Context, provider, token string) (*session.UserRecord, error) {
	if !auth.IsSupportedProvider(provider) {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("unsupported provider %q", provider))
	}
	if token == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "oauth token is required")
	}
	deviceID, err := s.devices.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device id: %w", err)
	}
	req := auth.OAuthLinkRequest{DeviceID: deviceID}
	return s.doAndMerge(ctx, s.dispatcher.Anonymous(), http.MethodPost, "/auth/oauth/"+provider, req, transport.WithBearer(token))
}

// UnlinkOAuth detaches a provider using the current session's token. The
// token is resolved here and sent as a session bearer, so a stale answer is
// refreshed and replayed and a missing session fails through the pipeline.
func (s *AuthService) UnlinkOAuth(ctx context.Context, provider string) (*session.UserRecord, error) {
	if !auth.IsSupportedProvider(provider) {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("unsupported provider %q", provider))
	}
	token, _ := s.tokens.Resolve(ctx, refresh.RequestBudget)
	return s.doAndMerge(ctx, s.dispatcher.Anonymous(), http.MethodDelete, "/auth/oauth/unlink/"+provider, nil, transport.WithSessionBearer(token))
}

// ========== Helpers ==========

func (s *AuthService) establish(resp *auth.AuthResponse) (*session.UserRecord, error) {
	if err := auth.Validate(resp); err != nil {
		return nil, fmt.Errorf("invalid auth response: %w", err)
	}
	s.store.Establish(resp.AccessToken, refresh.UserRecordFrom(resp))
	s.logger.Info("session established", zap.String("user_id", resp.ID), zap.String("username", resp.Username))
	return s.store.User(), nil
}

func (s *AuthService) doAndMerge(ctx context.Context, client *transport.Client, method, path string, body any, opts ...transport.Option) (*session.UserRecord, error) {
	req, err := transport.NewRequest(method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(ctx, req, opts...)
	if err != nil {
		return nil, err
	}
	if len(resp.Body) > 0 {
		if err := s.store.MergeUser(resp.Body); err != nil {
			return nil, fmt.Errorf("failed to merge user: %w", err)
		}
	}
	return s.store.User(), nil
}

// ========== Development ==========

// DevAuthorize runs the development backend's stand-in for a provider
// redirect and returns the hand-off token. With link set the current session
// is attached so the token links to this account.
func (s *AuthService) DevAuthorize(ctx context.Context, provider, external string, link bool) (string, error) {
	client := s.dispatcher.Anonymous()
	if link {
		client = s.dispatcher.Mandatory()
	}
	var out auth.OAuthTokenResponse
	req := auth.OAuthAuthorizeRequest{External: external}
	if err := client.JSON(ctx, http.MethodPost, "/dev/oauth/"+url.PathEscape(provider)+"/authorize", req, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}
