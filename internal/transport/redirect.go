package transport

import (
	"context"
	"net/url"

	"go.uber.org/zap"
)

// Redirector sends the user to the login entry point after a terminal auth
// failure.
type Redirector interface {
	RedirectToLogin(ctx context.Context, loginURL string)
}

// RedirectFunc adapts a function to Redirector.
type RedirectFunc func(ctx context.Context, loginURL string)

func (f RedirectFunc) RedirectToLogin(ctx context.Context, loginURL string) {
	f(ctx, loginURL)
}

// LogRedirector records the redirect; used where there is no browser to move.
type LogRedirector struct {
	Logger *zap.Logger
}

func (l LogRedirector) RedirectToLogin(_ context.Context, loginURL string) {
	if l.Logger != nil {
		l.Logger.Info("login required", zap.String("login_url", loginURL))
	}
}

// LoginURL builds the login entry point carrying returnTo as redirect target.
func LoginURL(loginPath, returnTo string) string {
	if loginPath == "" {
		loginPath = "/login"
	}
	if returnTo == "" {
		return loginPath
	}
	return loginPath + "?redirect=" + url.QueryEscape(returnTo)
}

type returnToKey struct{}

// WithReturnTo records the path the user should come back to after login.
func WithReturnTo(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, returnToKey{}, path)
}

// ReturnToFrom reads the path set by WithReturnTo.
func ReturnToFrom(ctx context.Context) string {
	path, _ := ctx.Value(returnToKey{}).(string)
	return path
}
