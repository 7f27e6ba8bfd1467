package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleUser() UserRecord {
	return UserRecord{
		ID:             "u1",
		Username:       "ann",
		AvatarURL:      "https://cdn.example/ann.png",
		OAuthProviders: []string{"github"},
		RefreshToken:   "r1",
	}
}

func TestStatusDerivation(t *testing.T) {
	user := sampleUser()
	cases := []struct {
		name  string
		token string
		user  *UserRecord
		want  Status
	}{
		{"token and user", "t1", &user, StatusAuthenticated},
		{"token only", "t1", nil, StatusAuthenticated},
		{"user only", "", &user, StatusExpired},
		{"neither", "", nil, StatusUnauthenticated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore(context.Background(), NewMemoryStore(), nil)
			s.SetAccessToken(tc.token)
			if tc.user != nil {
				s.SetUser(*tc.user)
			}
			assert.Equal(t, tc.want, s.Status())
			assert.Equal(t, tc.want, DeriveStatus(tc.token, tc.user))
		})
	}
}

func TestMergeUserStripsAccessToken(t *testing.T) {
	mem := NewMemoryStore()
	s := NewStore(context.Background(), mem, nil)
	s.SetUser(sampleUser())

	patch := json.RawMessage(`{"avatarUrl":"https://cdn.example/new.png","accessToken":"leaked"}`)
	require.NoError(t, s.MergeUser(patch))

	raw := mem.Raw()
	assert.NotContains(t, string(raw), "accessToken")
	assert.NotContains(t, string(raw), "leaked")
	assert.Equal(t, StatusExpired, s.Status())
	assert.Empty(t, s.AccessToken())

	user := s.User()
	require.NotNil(t, user)
	assert.Equal(t, "https://cdn.example/new.png", user.AvatarURL)
	assert.Equal(t, "ann", user.Username, "fields absent from the patch are kept")
}

func TestMergeUserRejectsMalformedPatch(t *testing.T) {
	s := NewStore(context.Background(), NewMemoryStore(), nil)
	s.SetUser(sampleUser())

	assert.Error(t, s.MergeUser(json.RawMessage(`{"username":`)))
	assert.Equal(t, "ann", s.User().Username)
}

func TestAccessTokenNeverPersisted(t *testing.T) {
	mem := NewMemoryStore()
	s := NewStore(context.Background(), mem, nil)
	s.Establish("secret-access", sampleUser())

	assert.NotContains(t, string(mem.Raw()), "secret-access")

	reloaded := NewStore(context.Background(), mem, nil)
	assert.Equal(t, StatusExpired, reloaded.Status())
	assert.Equal(t, "r1", reloaded.User().RefreshToken)
}

func TestClearWipesPersistedState(t *testing.T) {
	mem := NewMemoryStore()
	s := NewStore(context.Background(), mem, nil)
	s.Establish("t1", sampleUser())

	s.Clear()

	assert.Equal(t, StatusUnauthenticated, s.Status())
	assert.Nil(t, s.User())
	assert.Empty(t, mem.Raw())
}

func TestInvalidateAccessTokenOnlyClearsStale(t *testing.T) {
	s := NewStore(context.Background(), NewMemoryStore(), nil)
	s.SetAccessToken("fresh")

	assert.False(t, s.InvalidateAccessToken("stale"))
	assert.Equal(t, "fresh", s.AccessToken())

	assert.True(t, s.InvalidateAccessToken("fresh"))
	assert.Empty(t, s.AccessToken())
	assert.False(t, s.InvalidateAccessToken(""))
}

func TestUserReturnsCopy(t *testing.T) {
	s := NewStore(context.Background(), NewMemoryStore(), nil)
	s.SetUser(sampleUser())

	u := s.User()
	u.OAuthProviders[0] = "mutated"
	u.Username = "mutated"

	assert.Equal(t, []string{"github"}, s.User().OAuthProviders)
	assert.Equal(t, "ann", s.User().Username)
}

type failingPersister struct{}

func (failingPersister) Load(context.Context) (*UserRecord, error) {
	return nil, errors.New("storage unavailable")
}
func (failingPersister) Save(context.Context, *UserRecord) error { return errors.New("storage unavailable") }
func (failingPersister) Clear(context.Context) error             { return errors.New("storage unavailable") }

func TestPersisterFailureStillUpdatesMemory(t *testing.T) {
	s := NewStore(context.Background(), failingPersister{}, nil)
	assert.Equal(t, StatusUnauthenticated, s.Status())

	s.SetUser(sampleUser())
	assert.Equal(t, StatusExpired, s.Status())

	s.SetAccessToken("t1")
	assert.Equal(t, StatusAuthenticated, s.Status())

	s.Clear()
	assert.Equal(t, StatusUnauthenticated, s.Status())
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	fs := NewFileStore(path)
	ctx := context.Background()

	user, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	s := NewStore(ctx, fs, nil)
	s.Establish("t1", sampleUser())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":{"id":"u1","username":"ann","avatarUrl":"https://cdn.example/ann.png","isAdmin":false,"oauthProviders":["github"],"refreshToken":"r1"}}`, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reloaded := NewStore(ctx, NewFileStore(path), nil)
	assert.Equal(t, StatusExpired, reloaded.Status())

	reloaded.Clear()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, fs.Clear(ctx), "clearing twice is fine")
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	rs := NewRedisStore(client, "")

	s := NewStore(ctx, rs, nil)
	s.Establish("t1", sampleUser())

	raw, err := mr.Get(DefaultKey)
	require.NoError(t, err)
	assert.NotContains(t, raw, "accessToken")
	assert.Contains(t, raw, `"refreshToken":"r1"`)

	reloaded := NewStore(ctx, NewRedisStore(client, DefaultKey), nil)
	assert.Equal(t, StatusExpired, reloaded.Status())
	assert.Equal(t, "ann", reloaded.User().Username)

	reloaded.Clear()
	assert.False(t, mr.Exists(DefaultKey))
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer func() { _ = client.Close() }()
	mr.Close()

	s := NewStore(context.Background(), NewRedisStore(client, "k"), nil)
	s.SetUser(sampleUser())
	assert.Equal(t, StatusExpired, s.Status())
}
