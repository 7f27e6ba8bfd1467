package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	xerrors "blog-session/internal/pkg/errors"
	"blog-session/internal/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeResolver hands out the stored token, or refreshes to next when the
// token is missing and a user is present.
type storeResolver struct {
	store *session.Store
	next  string
	fail  bool
	calls atomic.Int32
}

func (r *storeResolver) Resolve(_ context.Context, budget int) (string, bool) {
	r.calls.Add(1)
	if budget <= 0 {
		return "", false
	}
	if tok := r.store.AccessToken(); tok != "" {
		return tok, true
	}
	if r.store.User() == nil || r.fail {
		return "", false
	}
	r.store.SetAccessToken(r.next)
	return r.next, true
}

type recordingRedirector struct {
	mu   sync.Mutex
	urls []string
}

func (r *recordingRedirector) RedirectToLogin(_ context.Context, loginURL string) {
	r.mu.Lock()
	r.urls = append(r.urls, loginURL)
	r.mu.Unlock()
}

func (r *recordingRedirector) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}

type seen struct {
	mu      sync.Mutex
	bearers []string
}

func (s *seen) add(b string) {
	s.mu.Lock()
	s.bearers = append(s.bearers, b)
	s.mu.Unlock()
}

func (s *seen) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bearers...)
}

func signedIn(t *testing.T, token string) *session.Store {
	t.Helper()
	s := session.NewStore(context.Background(), nil, nil)
	s.Establish(token, session.UserRecord{ID: "u1", Username: "alice", RefreshToken: "r1"})
	return s
}

func statusErr(req *Request, status int) error {
	return &xerrors.APIError{Op: req.op(), Status: status, Data: []byte(`{"success":false,"message":"nope"}`), Err: errors.New("nope")}
}

func TestMandatoryAttachesStoredToken(t *testing.T) {
	store := signedIn(t, "t1")
	var s seen
	terminal := func(_ context.Context, req *Request) (*Response, error) {
		s.add(req.Bearer())
		return &Response{Status: http.StatusOK, Body: []byte(`{"ok":true}`)}, nil
	}
	d := NewWithHandler(terminal, "/login", store, &storeResolver{store: store}, &recordingRedirector{}, nil)

	var out struct{ OK bool }
	require.NoError(t, d.Mandatory().JSON(context.Background(), http.MethodGet, "/posts", nil, &out))
	assert.True(t, out.OK)
	assert.Equal(t, []string{"t1"}, s.all())
}

func TestMandatoryWithoutTokenFailsLocally(t *testing.T) {
	store := session.NewStore(context.Background(), nil, nil)
	var hits atomic.Int32
	terminal := func(context.Context, *Request) (*Response, error) {
		hits.Add(1)
		return &Response{Status: http.StatusOK}, nil
	}
	redirect := &recordingRedirector{}
	d := NewWithHandler(terminal, "/login", store, &storeResolver{store: store}, redirect, nil)

	err := d.Mandatory().JSON(context.Background(), http.MethodPost, "/posts/p1/like", nil, nil)
	require.Error(t, err)
	apiErr, ok := xerrors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.True(t, apiErr.Local)
	assert.ErrorIs(t, err, xerrors.ErrNoToken)
	assert.Zero(t, hits.Load(), "nothing should be transmitted")
	assert.Equal(t, []string{"/login"}, redirect.got(), "no page to return to")
}

func TestOptionalProceedsWithoutToken(t *testing.T) {
	store := session.NewStore(context.Background(), nil, nil)
	var s seen
	terminal := func(_ context.Context, req *Request) (*Response, error) {
		s.add(req.Bearer())
		return &Response{Status: http.StatusOK}, nil
	}
	d := NewWithHandler(terminal, "/login", store, &storeResolver{store: store}, nil, nil)

	require.NoError(t, d.Optional().JSON(context.Background(), http.MethodGet, "/posts", nil, nil))
	assert.Equal(t, []string{""}, s.all())
}

func TestAnonymousNeverAttachesStoredToken(t *testing.T) {
	store := signedIn(t, "t1")
	var s seen
	terminal := func(_ context.Context, req *Request) (*Response, error) {
		s.add(req.Bearer())
		return &Response{Status: http.StatusOK}, nil
	}
	resolver := &storeResolver{store: store}
	d := NewWithHandler(terminal, "/login", store, resolver, nil, nil)

	require.NoError(t, d.Anonymous().JSON(context.Background(), http.MethodPost, "/auth/login", map[string]string{"username": "a"}, nil))
	require.NoError(t, d.Anonymous().JSON(context.Background(), http.MethodGet, "/auth/oauth/userinfo", nil, nil, WithBearer("oauth-token")))
	assert.Equal(t, []string{"", "oauth-token"}, s.all())
	assert.Zero(t, resolver.calls.Load())
}

func TestStaleTokenReplaysOnceWithFreshToken(t *testing.T) {
	store := signedIn(t, "t1")
	var s seen
	terminal := func(_ context.Context, req *Request) (*Response, error) {
		s.add(req.Bearer())
		if req.Bearer() == "t1" {
			return nil, statusErr(req, xerrors.StatusStaleToken)
		}
		return &Response{Status: http.StatusOK, Body: []byte(`{"id":"p1"}`)}, nil
	}
	redirect := &recordingRedirector{}
	d := NewWithHandler(terminal, "/login", store, &storeResolver{store: store, next: "t2"}, redirect, nil)

	var out struct{ ID string }
	require.NoError(t, d.Mandatory().JSON(context.Background(), http.MethodGet, "/posts/p1", nil, &out))
	assert.Equal(t, "p1", out.ID)
	assert.Equal(t, []string{"t1", "t2"}, s.all())
	assert.Equal(t, "t2", store.AccessToken())
	assert.Empty(t, redirect.got())
}

func TestStaleTokenOnReplayEscalatesTo401(t *testing.T) {
	store := signedIn(t, "t1")
	var hits atomic.Int32
	terminal := func(_ context.Context, req *Request) (*Response, error) {
		hits.Add(1)
		return nil, statusErr(req, xerrors.StatusStaleToken)
	}
	redirect := &recordingRedirector{}
	d := NewWithHandler(terminal, "/login", store, &storeResolver{store: store, next: "t2"}, redirect, nil)

	err := d.Mandatory().JSON(context.Background(), http.MethodGet, "/posts/p1", nil, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, xerrors.StatusOf(err))
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
	assert.EqualValues(t, 2, hits.Load(), "original plus exactly one replay")
	assert.Equal(t, session.StatusUnauthenticated, store.Status())
	assert.Len(t, redirect.got(), 1)
}

func TestStaleTokenWithFailedRefreshEscalates(t *testing.T) {
	store := signedIn(t, "t1")
	var hits atomic.Int32
	terminal := func(_ context.Context, req *Request) (*Response, error) {
		hits.Add(1)
		return nil, statusErr(req, xerrors.StatusStaleToken)
	}
	d := NewWithHandler(terminal, "/login", store, &storeResolver{store: store, fail: true}, &recordingRedirector{}, nil)

	err := d.Mandatory().JSON(context.Background(), http.MethodGet, "/posts", nil, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, xerrors.StatusOf(err))
	assert.EqualValues(t, 1, hits.Load())
	assert.Nil(t, store.User())
}

func TestStaleHandoffTokenEscalates(t *testing.T) {
	store := signedIn(t, "t1")
	terminal := func(_ context.Context, req *Request) (*Response, error) {
		return nil, statusErr(req, xerrors.StatusStaleToken)
	}
	resolver := &storeResolver{store: store, next: "t2"}
	d := NewWithHandler(terminal, "/login", store, resolver, &recordingRedirector{}, nil)

	err := d.Anonymous().JSON(context.Background(), http.MethodGet, "/auth/oauth/userinfo", nil, nil, WithBearer("ext"))
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, xerrors.StatusOf(err))
	assert.Zero(t, resolver.calls.Load())
}

func TestStaleSessionBearerOnAnonymousIsReplayed(t *testing.T) {
	cases := []struct {
		name string
		opt  func(token string) Option
	}{
		{"marked session bearer", WithSessionBearer},
		{"explicit bearer equal to stored token", WithBearer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := signedIn(t, "t1")
			var s seen
			terminal := func(_ context.Context, req *Request) (*Response, error) {
				s.add(req.Bearer())
				if req.Bearer() == "t1" {
					return nil, statusErr(req, xerrors.StatusStaleToken)
				}
				return &Response{Status: http.StatusOK}, nil
			}
			redirect := &recordingRedirector{}
			d := NewWithHandler(terminal, "/login", store, &storeResolver{store: store, next: "t2"}, redirect, nil)

			err := d.Anonymous().JSON(context.Background(), http.MethodDelete, "/auth/oauth/unlink/github", nil, nil, tc.opt("t1"))
			require.NoError(t, err)
			assert.Equal(t, []string{"t1", "t2"}, s.all())
			assert.Equal(t, "t2", store.AccessToken())
			assert.Empty(t, redirect.got())
		})
	}
}

func TestEmptySessionBearerFailsThroughPipeline(t *testing.T) {
	store := session.NewStore(context.Background(), nil, nil)
	var hits atomic.Int32
	terminal := func(context.Context, *Request) (*Response, error) {
		hits.Add(1)
		return &Response{Status: http.StatusOK}, nil
	}
	redirect := &recordingRedirector{}
	d := NewWithHandler(terminal, "/login", store, &storeResolver{store: store}, redirect, nil)

	err := d.Anonymous().JSON(context.Background(), http.MethodDelete, "/auth/oauth/unlink/github", nil, nil, WithSessionBearer(""))
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrNoToken)
	assert.Zero(t, hits.Load())
	assert.Equal(t, []string{"/login"}, redirect.got())
}

func TestUnauthorizedClearsSessionAndRedirects(t *testing.T) {
	store := signedIn(t, "t1")
	terminal := func(_ context.Context, req *Request) (*Response, error) {
		return nil, statusErr(req, http.StatusUnauthorized)
	}
	redirect := &recordingRedirector{}
	d := NewWithHandler(terminal, "/login", store, &storeResolver{store: store}, redirect, nil)

	ctx := WithReturnTo(context.Background(), "/posts/p1?tab=comments")
	err := d.Mandatory().JSON(ctx, http.MethodGet, "/posts/p1", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.Equal(t, session.StatusUnauthenticated, store.Status())
	assert.Equal(t, []string{"/login?redirect=%2Fposts%2Fp1%3Ftab%3Dcomments"}, redirect.got())
}

func TestBypassedUnauthorizedLeavesSessionAlone(t *testing.T) {
	store := signedIn(t, "t1")
	terminal := func(_ context.Context, req *Request) (*Response, error) {
		return nil, statusErr(req, http.StatusUnauthorized)
	}
	redirect := &recordingRedirector{}
	d := NewWithHandler(terminal, "/login", store, &storeResolver{store: store}, redirect, nil)

	err := d.Anonymous().JSON(context.Background(), http.MethodPost, "/auth/login", map[string]string{"username": "alice"}, nil, WithBypass401())
	require.Error(t, err)
	apiErr, ok := xerrors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "nope", apiErr.Message())
	assert.Equal(t, session.StatusAuthenticated, store.Status())
	assert.Empty(t, redirect.got())
}

func TestForbiddenAlwaysClearsSession(t *testing.T) {
	store := signedIn(t, "t1")
	terminal := func(_ context.Context, req *Request) (*Response, error) {
		return nil, statusErr(req, http.StatusForbidden)
	}
	redirect := &recordingRedirector{}
	d := NewWithHandler(terminal, "/login", store, &storeResolver{store: store}, redirect, nil)

	err := d.Mandatory().JSON(context.Background(), http.MethodGet, "/auth/users", nil, nil, WithBypass401())
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrForbidden)
	assert.Equal(t, session.StatusUnauthenticated, store.Status())
	assert.Len(t, redirect.got(), 1)
}

func TestServerErrorDoesNotTouchSession(t *testing.T) {
	store := signedIn(t, "t1")
	terminal := func(_ context.Context, req *Request) (*Response, error) {
		return nil, statusErr(req, http.StatusInternalServerError)
	}
	redirect := &recordingRedirector{}
	d := NewWithHandler(terminal, "/login", store, &storeResolver{store: store}, redirect, nil)

	err := d.Mandatory().JSON(context.Background(), http.MethodGet, "/posts", nil, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, xerrors.StatusOf(err))
	assert.Equal(t, session.StatusAuthenticated, store.Status())
	assert.Empty(t, redirect.got())
}

func TestHTTPTransportNormalizesResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
			assert.Equal(t, "q=go", r.URL.RawQuery)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(body)
		case "/stale":
			w.WriteHeader(xerrors.StatusStaleToken)
			_, _ = w.Write([]byte(`{"success":false,"message":"token expired"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(srv.URL+"/", time.Second, nil)
	require.NoError(t, err)

	req, err := NewRequest(http.MethodPost, "ok", map[string]string{"hello": "world"})
	require.NoError(t, err)
	WithQuery(map[string][]string{"q": {"go"}})(req)
	resp, err := tr.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"hello":"world"}`, string(resp.Body))

	req, err = NewRequest(http.MethodGet, "/stale", nil)
	require.NoError(t, err)
	_, err = tr.Do(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrStaleToken)
	apiErr, ok := xerrors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "token expired", apiErr.Message())
}

func TestHTTPTransportNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	tr, err := NewHTTPTransport(url, time.Second, nil)
	require.NoError(t, err)
	req, err := NewRequest(http.MethodGet, "/posts", nil)
	require.NoError(t, err)

	_, err = tr.Do(context.Background(), req)
	require.Error(t, err)
	apiErr, ok := xerrors.AsAPIError(err)
	require.True(t, ok)
	assert.True(t, apiErr.Network)
	assert.Zero(t, apiErr.Status)
}

func TestNewHTTPTransportRejectsBadURL(t *testing.T) {
	_, err := NewHTTPTransport("not a url", time.Second, nil)
	require.Error(t, err)
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "/login", LoginURL("", ""))
	assert.Equal(t, "/signin?redirect=%2Fme", LoginURL("/signin", "/me"))
}
