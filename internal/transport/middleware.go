package transport

import (
	"context"
	"fmt"
	"net/http"

	xerrors "blog-session/internal/pkg/errors"
	"blog-session/internal/pkg/session"

	"go.uber.org/zap"
)

// Handler issues a request.
type Handler func(ctx context.Context, req *Request) (*Response, error)

// Middleware wraps a Handler.
type Middleware func(next Handler) Handler

// Chain wraps h so that mws[0] is the outermost middleware.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// TokenResolver yields an access token within a retry budget.
type TokenResolver interface {
	Resolve(ctx context.Context, budget int) (string, bool)
}

// Budgets mirror the refresh resolver's constants.
const (
	requestBudget = 2
	replayBudget  = 1
)

// Mode selects how a profile treats credentials.
type Mode int

const (
	ModeAnonymous Mode = iota
	ModeMandatory
	ModeOptional
)

func (m Mode) String() string {
	switch m {
	case ModeMandatory:
		return "mandatory"
	case ModeOptional:
		return "optional"
	default:
		return "anonymous"
	}
}

// AttachCredential resolves a token before transmission. Mandatory requests
// without a token are rejected with a local 401; optional ones proceed bare.
// A request already carrying an explicit bearer is left alone; one marked
// with WithSessionBearer but holding no token fails like a mandatory request.
func AttachCredential(mode Mode, resolver TokenResolver) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			if req.credentialed {
				if req.Bearer() == "" {
					return nil, xerrors.NewLocalUnauthorized(req.op())
				}
				return next(ctx, req)
			}
			if mode == ModeAnonymous || req.Bearer() != "" {
				return next(ctx, req)
			}

			token, ok := resolver.Resolve(ctx, requestBudget)
			if !ok {
				if mode == ModeMandatory {
					return nil, xerrors.NewLocalUnauthorized(req.op())
				}
				return next(ctx, req)
			}

			out := req.Clone()
			out.setBearer(token)
			out.credentialed = true
			return next(ctx, out)
		}
	}
}

// ReplayOnStale handles the stale-token status: the stale token is dropped,
// a fresh one resolved with the replay budget and the request sent once more.
// Any failure to recover escalates to a 401.
func ReplayOnStale(store *session.Store, resolver TokenResolver, logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			resp, err := next(ctx, req)
			if xerrors.StatusOf(err) != xerrors.StatusStaleToken {
				return resp, err
			}
			// Only a session token can be refreshed; hand-off tokens escalate.
			bearer := req.Bearer()
			if bearer == "" || !(req.credentialed || bearer == store.AccessToken()) {
				return nil, escalate(req, err)
			}

			store.InvalidateAccessToken(bearer)
			token, ok := resolver.Resolve(ctx, replayBudget)
			if !ok {
				logger.Info("stale token could not be refreshed", zap.String("op", req.op()))
				return nil, escalate(req, err)
			}

			replay := req.Clone()
			replay.setBearer(token)
			logger.Debug("replaying request with refreshed token", zap.String("op", req.op()))

			resp, err = next(ctx, replay)
			if xerrors.StatusOf(err) == xerrors.StatusStaleToken {
				return nil, escalate(req, err)
			}
			return resp, err
		}
	}
}

func escalate(req *Request, cause error) error {
	apiErr := &xerrors.APIError{
		Op:     req.op(),
		Status: http.StatusUnauthorized,
		Err:    fmt.Errorf("%w: %w", xerrors.ErrSessionExpired, cause),
	}
	if prev, ok := xerrors.AsAPIError(cause); ok {
		apiErr.Data = prev.Data
	}
	return apiErr
}

// ClassifyError applies the session policy to failures: 401 (unless bypassed)
// and 403 clear the session and redirect to login. Everything else is only
// logged. The error always reaches the caller.
func ClassifyError(store *session.Store, redirector Redirector, loginPath string, logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			resp, err := next(ctx, req)
			if err == nil {
				return resp, nil
			}

			apiErr, ok := xerrors.AsAPIError(err)
			if !ok {
				logger.Warn("request failed", zap.String("op", req.op()), zap.Error(err))
				return nil, err
			}

			switch {
			case apiErr.Status == http.StatusForbidden,
				apiErr.Status == http.StatusUnauthorized && !req.Bypasses401():
				logger.Info("authorization failed, ending session",
					zap.String("op", req.op()),
					zap.Int("status", apiErr.Status),
					zap.Bool("local", apiErr.Local),
				)
				store.Clear()
				redirector.RedirectToLogin(ctx, LoginURL(loginPath, ReturnToFrom(ctx)))
			case apiErr.Network:
				logger.Warn("network error", zap.String("op", req.op()), zap.Error(err))
			case apiErr.Status >= 500:
				logger.Error("server error", zap.String("op", req.op()), zap.Int("status", apiErr.Status))
			default:
				logger.Debug("request rejected", zap.String("op", req.op()), zap.Int("status", apiErr.Status))
			}
			return nil, err
		}
	}
}
