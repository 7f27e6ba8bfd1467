package refresh

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"blog-session/internal/domain/auth"
	xerrors "blog-session/internal/pkg/errors"
	"blog-session/internal/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticDevice struct {
	id  string
	err error
}

func (d staticDevice) DeviceID(context.Context) (string, error) { return d.id, d.err }

type fakeRefresher struct {
	calls atomic.Int32
	mu    sync.Mutex
	reqs  []auth.RefreshRequest
	fn    func(req auth.RefreshRequest) (*auth.AuthResponse, error)
}

func (f *fakeRefresher) Refresh(_ context.Context, req auth.RefreshRequest) (*auth.AuthResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.fn(req)
}

func okRefresh(token string) func(auth.RefreshRequest) (*auth.AuthResponse, error) {
	return func(req auth.RefreshRequest) (*auth.AuthResponse, error) {
		return &auth.AuthResponse{
			AccessToken:  token,
			RefreshToken: "r2",
			ID:           "u1",
			Username:     "ann",
		}, nil
	}
}

func expiredStore() *session.Store {
	s := session.NewStore(context.Background(), session.NewMemoryStore(), nil)
	s.SetUser(session.UserRecord{ID: "u1", Username: "ann", RefreshToken: "r1"})
	return s
}

func TestDecideTable(t *testing.T) {
	withRefresh := &session.UserRecord{RefreshToken: "r1"}
	noRefresh := &session.UserRecord{}

	cases := []struct {
		name   string
		status session.Status
		token  string
		user   *session.UserRecord
		budget int
		want   action
	}{
		{"budget exhausted while authenticated", session.StatusAuthenticated, "t1", withRefresh, 0, actionFail},
		{"negative budget", session.StatusExpired, "", withRefresh, -1, actionFail},
		{"authenticated with token", session.StatusAuthenticated, "t1", nil, 2, actionUseToken},
		{"authenticated without token", session.StatusAuthenticated, "", nil, 2, actionDropToken},
		{"expired with refresh token", session.StatusExpired, "", withRefresh, 1, actionRefresh},
		{"expired without refresh token", session.StatusExpired, "", noRefresh, 2, actionFail},
		{"expired with nil user", session.StatusExpired, "", nil, 2, actionFail},
		{"unauthenticated", session.StatusUnauthenticated, "", nil, 2, actionFail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, decide(tc.status, tc.token, tc.user, tc.budget))
		})
	}
}

func TestResolveZeroBudgetAlwaysFails(t *testing.T) {
	stores := map[string]*session.Store{
		"authenticated":   session.NewStore(context.Background(), nil, nil),
		"expired":         expiredStore(),
		"unauthenticated": session.NewStore(context.Background(), nil, nil),
	}
	stores["authenticated"].SetAccessToken("t1")

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ref := &fakeRefresher{fn: okRefresh("t2")}
			r := NewResolver(store, staticDevice{id: "d1"}, ref, nil)

			token, ok := r.Resolve(context.Background(), 0)
			assert.False(t, ok)
			assert.Empty(t, token)
			assert.Zero(t, ref.calls.Load())
		})
	}
}

func TestResolveReturnsCurrentToken(t *testing.T) {
	store := session.NewStore(context.Background(), nil, nil)
	store.SetAccessToken("t1")
	ref := &fakeRefresher{fn: okRefresh("t2")}

	token, ok := NewResolver(store, staticDevice{id: "d1"}, ref, nil).Resolve(context.Background(), RequestBudget)
	require.True(t, ok)
	assert.Equal(t, "t1", token)
	assert.Zero(t, ref.calls.Load())
}

func TestResolveRefreshSuccess(t *testing.T) {
	store := expiredStore()
	ref := &fakeRefresher{fn: okRefresh("t2")}

	token, ok := NewResolver(store, staticDevice{id: "d1"}, ref, nil).Resolve(context.Background(), RequestBudget)
	require.True(t, ok)
	assert.Equal(t, "t2", token)
	assert.Equal(t, session.StatusAuthenticated, store.Status())
	assert.Equal(t, "r2", store.User().RefreshToken)

	require.Len(t, ref.reqs, 1)
	assert.Equal(t, auth.RefreshRequest{DeviceID: "d1", RefreshToken: "r1"}, ref.reqs[0])
}

func TestResolveRefreshRejectedClearsSession(t *testing.T) {
	store := expiredStore()
	ref := &fakeRefresher{fn: func(auth.RefreshRequest) (*auth.AuthResponse, error) {
		return nil, &xerrors.APIError{Op: "refresh", Status: http.StatusUnauthorized}
	}}

	token, ok := NewResolver(store, staticDevice{id: "d1"}, ref, nil).Resolve(context.Background(), RequestBudget)
	assert.False(t, ok)
	assert.Empty(t, token)
	assert.Equal(t, session.StatusUnauthenticated, store.Status())
	assert.Nil(t, store.User())
}

func TestResolveInvalidResponseClearsSession(t *testing.T) {
	store := expiredStore()
	ref := &fakeRefresher{fn: func(auth.RefreshRequest) (*auth.AuthResponse, error) {
		return &auth.AuthResponse{AccessToken: "t2"}, nil
	}}

	_, ok := NewResolver(store, staticDevice{id: "d1"}, ref, nil).Resolve(context.Background(), RequestBudget)
	assert.False(t, ok)
	assert.Equal(t, session.StatusUnauthenticated, store.Status())
}

func TestResolveInvalidRequestClearsSession(t *testing.T) {
	store := expiredStore()
	ref := &fakeRefresher{fn: okRefresh("t2")}

	_, ok := NewResolver(store, staticDevice{id: ""}, ref, nil).Resolve(context.Background(), RequestBudget)
	assert.False(t, ok)
	assert.Zero(t, ref.calls.Load(), "invalid body is never sent")
	assert.Equal(t, session.StatusUnauthenticated, store.Status())
}

func TestResolveNetworkErrorKeepsSession(t *testing.T) {
	store := expiredStore()
	ref := &fakeRefresher{fn: func(auth.RefreshRequest) (*auth.AuthResponse, error) {
		return nil, &xerrors.APIError{Op: "refresh", Network: true, Err: errors.New("connection refused")}
	}}

	_, ok := NewResolver(store, staticDevice{id: "d1"}, ref, nil).Resolve(context.Background(), RequestBudget)
	assert.False(t, ok)
	assert.Equal(t, session.StatusExpired, store.Status())
}

func TestResolveDeviceErrorFails(t *testing.T) {
	store := expiredStore()
	ref := &fakeRefresher{fn: okRefresh("t2")}

	_, ok := NewResolver(store, staticDevice{err: errors.New("probe failed")}, ref, nil).Resolve(context.Background(), RequestBudget)
	assert.False(t, ok)
	assert.Zero(t, ref.calls.Load())
	assert.Equal(t, session.StatusExpired, store.Status())
}

func TestResolveUnauthenticatedFails(t *testing.T) {
	store := session.NewStore(context.Background(), nil, nil)
	ref := &fakeRefresher{fn: okRefresh("t2")}

	_, ok := NewResolver(store, staticDevice{id: "d1"}, ref, nil).Resolve(context.Background(), RequestBudget)
	assert.False(t, ok)
	assert.Zero(t, ref.calls.Load())
}

func TestResolveWithoutRefresherFails(t *testing.T) {
	_, ok := NewResolver(expiredStore(), staticDevice{id: "d1"}, nil, nil).Resolve(context.Background(), RequestBudget)
	assert.False(t, ok)
}

func TestConcurrentResolvesCoalesceRefresh(t *testing.T) {
	store := expiredStore()
	release := make(chan struct{})
	ref := &fakeRefresher{fn: func(req auth.RefreshRequest) (*auth.AuthResponse, error) {
		<-release
		return okRefresh("t2")(req)
	}}
	r := NewResolver(store, staticDevice{id: "d1"}, ref, nil)

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], _ = r.Resolve(context.Background(), RequestBudget)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), ref.calls.Load())
	for _, tok := range tokens {
		assert.Equal(t, "t2", tok)
	}
	assert.Equal(t, session.StatusAuthenticated, store.Status())
}

func TestSessionClearedDuringRefreshIsNotResurrected(t *testing.T) {
	store := expiredStore()
	ref := &fakeRefresher{}
	ref.fn = func(req auth.RefreshRequest) (*auth.AuthResponse, error) {
		store.Clear()
		return okRefresh("t2")(req)
	}

	_, ok := NewResolver(store, staticDevice{id: "d1"}, ref, nil).Resolve(context.Background(), RequestBudget)
	assert.False(t, ok)
	assert.Equal(t, session.StatusUnauthenticated, store.Status())
}

func TestSessionReplacedDuringRefreshKeepsNewLogin(t *testing.T) {
	store := expiredStore()
	ref := &fakeRefresher{}
	ref.fn = func(req auth.RefreshRequest) (*auth.AuthResponse, error) {
		store.Establish("login-token", session.UserRecord{ID: "u1", Username: "ann", RefreshToken: "r-login"})
		return okRefresh("t2")(req)
	}

	tok, ok := NewResolver(store, staticDevice{id: "d1"}, ref, nil).Resolve(context.Background(), RequestBudget)
	require.True(t, ok)
	assert.Equal(t, "login-token", tok)
	assert.Equal(t, "r-login", store.User().RefreshToken)
}

func TestUserRecordFromDropsAccessToken(t *testing.T) {
	rec := UserRecordFrom(&auth.AuthResponse{
		AccessToken:    "t",
		RefreshToken:   "r",
		ID:             "u",
		Username:       "ann",
		IsAdmin:        true,
		OAuthProviders: []string{"github"},
	})
	assert.Equal(t, session.UserRecord{
		ID:             "u",
		Username:       "ann",
		IsAdmin:        true,
		OAuthProviders: []string{"github"},
		RefreshToken:   "r",
	}, rec)
}
