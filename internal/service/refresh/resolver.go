package refresh

import (
	"context"

	"blog-session/internal/domain/auth"
	xerrors "blog-session/internal/pkg/errors"
	"blog-session/internal/pkg/session"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Budgets callers pass to Resolve.
const (
	RequestBudget = 2 // request-issuing paths
	ReplayBudget  = 1 // single retry after a stale-token failure
)

// Refresher performs the refresh call, normally over the anonymous profile.
type Refresher interface {
	Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.AuthResponse, error)
}

// DeviceSource yields the device fingerprint.
type DeviceSource interface {
	DeviceID(ctx context.Context) (string, error)
}

// Resolver turns the current session state into a usable access token,
// refreshing when the token is gone but the user record remains.
type Resolver struct {
	store     *session.Store
	devices   DeviceSource
	refresher Refresher
	logger    *zap.Logger

	flights singleflight.Group
}

func NewResolver(store *session.Store, devices DeviceSource, refresher Refresher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:     store,
		devices:   devices,
		refresher: refresher,
		logger:    logger,
	}
}

// SetRefresher wires the refresh transport after construction; the
// anonymous profile and the resolver are built in a cycle.
func (r *Resolver) SetRefresher(refresher Refresher) {
	r.refresher = refresher
}

// Resolve returns an access token or ("", false). It never fails loudly;
// every failure path is encoded in the boolean.
func (r *Resolver) Resolve(ctx context.Context, budget int) (string, bool) {
	for {
		token, user, status := r.store.Snapshot()
		act := decide(status, token, user, budget)
		r.logger.Debug("resolve step",
			zap.String("status", string(status)),
			zap.Int("budget", budget),
			zap.String("action", act.String()),
		)

		switch act {
		case actionUseToken:
			return token, true
		case actionDropToken:
			r.store.SetAccessToken("")
			budget--
		case actionRefresh:
			return r.refresh(ctx, user.RefreshToken)
		default:
			return "", false
		}
	}
}

func (r *Resolver) refresh(ctx context.Context, refreshToken string) (string, bool) {
	ch := r.flights.DoChan(refreshToken, func() (interface{}, error) {
		return r.doRefresh(context.WithoutCancel(ctx), refreshToken)
	})

	select {
	case <-ctx.Done():
		return "", false
	case res := <-ch:
		if res.Err != nil {
			return "", false
		}
		token, _ := res.Val.(string)
		return token, token != ""
	}
}

func (r *Resolver) doRefresh(ctx context.Context, refreshToken string) (string, error) {
	if r.refresher == nil {
		r.logger.Error("no refresh transport configured")
		return "", xerrors.ErrInternal
	}

	deviceID, err := r.devices.DeviceID(ctx)
	if err != nil {
		r.logger.Warn("device id unavailable for refresh", zap.Error(err))
		return "", err
	}

	req := auth.RefreshRequest{DeviceID: deviceID, RefreshToken: refreshToken}
	if err := auth.Validate(req); err != nil {
		r.logger.Warn("invalid refresh request, clearing session", zap.Error(err))
		r.store.Clear()
		return "", xerrors.Wrap(xerrors.ErrInvalidInput, err.Error())
	}

	resp, err := r.refresher.Refresh(ctx, req)
	if err != nil {
		if apiErr, ok := xerrors.AsAPIError(err); ok && apiErr.Network {
			r.logger.Warn("refresh call got no response", zap.Error(err))
			return "", err
		}
		r.logger.Info("refresh rejected, clearing session",
			zap.Int("status", xerrors.StatusOf(err)),
			zap.Error(err),
		)
		r.store.Clear()
		return "", err
	}
	if resp == nil {
		r.store.Clear()
		return "", xerrors.ErrSessionExpired
	}
	if err := auth.Validate(resp); err != nil {
		r.logger.Warn("invalid refresh response, clearing session", zap.Error(err))
		r.store.Clear()
		return "", xerrors.Wrap(xerrors.ErrInvalidInput, err.Error())
	}

	// State may have moved while the call was in flight; the result only
	// lands if the session still holds the refresh token that was spent.
	if !r.store.EstablishIf(refreshToken, resp.AccessToken, UserRecordFrom(resp)) {
		if token := r.store.AccessToken(); token != "" {
			return token, nil
		}
		r.logger.Info("session changed during refresh, discarding result")
		return "", xerrors.ErrSessionExpired
	}

	r.logger.Debug("access token refreshed", zap.String("user_id", resp.ID))
	return resp.AccessToken, nil
}

// UserRecordFrom drops the access token from an auth response.
func UserRecordFrom(resp *auth.AuthResponse) session.UserRecord {
	return session.UserRecord{
		ID:             resp.ID,
		Username:       resp.Username,
		AvatarURL:      resp.AvatarURL,
		IsAdmin:        resp.IsAdmin,
		OAuthProviders: append([]string(nil), resp.OAuthProviders...),
		RefreshToken:   resp.RefreshToken,
	}
}
