// internal/repository/redisrepo/session_repo.go
package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"blog-session/internal/domain/auth"
	xerrors "blog-session/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// SessionRepository stores refresh sessions keyed by refresh-token JTI, with
// a per-user index so every session of an account can be revoked.
type SessionRepository struct {
	client redis.Cmdable
	prefix string
}

func NewSessionRepository(client redis.Cmdable) *SessionRepository {
	return &SessionRepository{client: client, prefix: "authstub"}
}

// Create stores s until it expires.
func (r *SessionRepository) Create(ctx context.Context, s *auth.RefreshSession) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.sessionKey(s.JTI), data, ttl)
	pipe.SAdd(ctx, r.userKey(s.UserID), s.JTI)
	pipe.Expire(ctx, r.userKey(s.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session in redis: %w", err)
	}
	return nil
}

// Get returns xerrors.ErrNotFound for unknown or expired sessions.
func (r *SessionRepository) Get(ctx context.Context, jti string) (*auth.RefreshSession, error) {
	data, err := r.client.Get(ctx, r.sessionKey(jti)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var s auth.RefreshSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

// Rotate replaces old with next in one transaction. It fails with
// xerrors.ErrNotFound if old was already consumed.
func (r *SessionRepository) Rotate(ctx context.Context, old *auth.RefreshSession, next *auth.RefreshSession) error {
	removed, err := r.client.Del(ctx, r.sessionKey(old.JTI)).Result()
	if err != nil {
		return fmt.Errorf("failed to consume session: %w", err)
	}
	if removed == 0 {
		return xerrors.ErrNotFound
	}
	r.client.SRem(ctx, r.userKey(old.UserID), old.JTI)
	return r.Create(ctx, next)
}

// Delete revokes one session.
func (r *SessionRepository) Delete(ctx context.Context, s *auth.RefreshSession) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.sessionKey(s.JTI))
	pipe.SRem(ctx, r.userKey(s.UserID), s.JTI)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteForDevice revokes the user's sessions bound to deviceID.
func (r *SessionRepository) DeleteForDevice(ctx context.Context, userID, deviceID string) (int, error) {
	jtis, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	revoked := 0
	for _, jti := range jtis {
		s, err := r.Get(ctx, jti)
		if errors.Is(err, xerrors.ErrNotFound) {
			r.client.SRem(ctx, r.userKey(userID), jti)
			continue
		}
		if err != nil {
			return revoked, err
		}
		if s.DeviceID != deviceID {
			continue
		}
		if err := r.Delete(ctx, s); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

// DeleteAllForUser revokes every session of userID.
func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	jtis, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	keys := make([]string, 0, len(jtis)+1)
	for _, jti := range jtis {
		keys = append(keys, r.sessionKey(jti))
	}
	keys = append(keys, r.userKey(userID))
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}

func (r *SessionRepository) sessionKey(jti string) string {
	return fmt.Sprintf("%s:refresh:%s", r.prefix, jti)
}

func (r *SessionRepository) userKey(userID string) string {
	return fmt.Sprintf("%s:user:%s:sessions", r.prefix, userID)
}
