package blog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"blog-session/internal/domain/blog"
	xerrors "blog-session/internal/pkg/errors"
	"blog-session/internal/pkg/session"
	"blog-session/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticTokens resolves whatever the store holds and never refreshes.
type staticTokens struct{ store *session.Store }

func (s staticTokens) Resolve(context.Context, int) (string, bool) {
	tok := s.store.AccessToken()
	return tok, tok != ""
}

func newService(t *testing.T, h http.HandlerFunc) (*BlogService, *session.Store) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	store := session.NewStore(context.Background(), nil, nil)
	d, err := transport.New(transport.Config{BaseURL: srv.URL}, store, staticTokens{store}, transport.RedirectFunc(func(context.Context, string) {}), nil)
	require.NoError(t, err)
	return NewBlogService(d, nil), store
}

func TestListPostsAnonymousAndSignedIn(t *testing.T) {
	var auths, queries []string
	svc, store := newService(t, func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		queries = append(queries, r.URL.RawQuery)
		_ = json.NewEncoder(w).Encode([]blog.Post{{ID: "p1", Title: "Hello", Liked: r.Header.Get("Authorization") != ""}})
	})

	posts, err := svc.ListPosts(context.Background(), blog.ListQuery{Tag: "go"})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.False(t, posts[0].Liked)

	store.Establish("t1", session.UserRecord{ID: "u1", Username: "alice", RefreshToken: "r1"})
	posts, err = svc.ListPosts(context.Background(), blog.ListQuery{Search: "hello world"})
	require.NoError(t, err)
	assert.True(t, posts[0].Liked)

	assert.Equal(t, []string{"", "Bearer t1"}, auths)
	assert.Equal(t, []string{"tag=go", "search=hello+world"}, queries)
}

func TestLikeRequiresSession(t *testing.T) {
	hits := 0
	svc, _ := newService(t, func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_ = json.NewEncoder(w).Encode(blog.LikeResponse{Liked: true, Likes: 1})
	})

	_, err := svc.LikePost(context.Background(), "p1")
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrNoToken)
	assert.Zero(t, hits)
}

func TestAddCommentValidatesBody(t *testing.T) {
	svc, store := newService(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("request must not be sent")
	})
	store.Establish("t1", session.UserRecord{ID: "u1", Username: "alice", RefreshToken: "r1"})

	_, err := svc.AddComment(context.Background(), "p1", "")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	_, err = svc.GetPost(context.Background(), "")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestPostIDIsEscaped(t *testing.T) {
	var path string
	svc, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		_ = json.NewEncoder(w).Encode(blog.PostDetail{})
	})

	_, err := svc.GetPost(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "/posts/a%2Fb", path)
}
