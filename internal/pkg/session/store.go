package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// persistTimeout bounds a single write to the persister.
const persistTimeout = 3 * time.Second

// Store is the single source of truth for session state. The access token
// lives only in memory; the user record is written through to the Persister.
//
// persistMu is held from a mutation of the user record until the persister
// has seen it, so persisted writes land in the same order as the in-memory
// ones and a Clear is never overwritten by an earlier Save.
type Store struct {
	persistMu sync.Mutex

	mu          sync.RWMutex
	accessToken string
	user        *UserRecord

	persister Persister
	logger    *zap.Logger
}

// NewStore builds a store and restores the persisted user record. A failing
// persister is logged and the store starts empty.
func NewStore(ctx context.Context, persister Persister, logger *zap.Logger) *Store {
	if persister == nil {
		persister = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{persister: persister, logger: logger}

	user, err := persister.Load(ctx)
	if err != nil {
		logger.Warn("failed to restore persisted session", zap.Error(err))
		return s
	}
	s.user = user
	return s
}

// Status derives the session status from current state. No side effects.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return DeriveStatus(s.accessToken, s.user)
}

// AccessToken returns the in-memory token, or "".
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// User returns a copy of the user record, or nil.
func (s *Store) User() *UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.clone()
}

// Snapshot reads token, user and derived status under one lock.
func (s *Store) Snapshot() (string, *UserRecord, Status) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken, s.user.clone(), DeriveStatus(s.accessToken, s.user)
}

// SetAccessToken replaces the in-memory token. Never persisted.
func (s *Store) SetAccessToken(token string) {
	s.mu.Lock()
	s.accessToken = token
	s.mu.Unlock()
}

// InvalidateAccessToken clears the token only if it is still the stale one,
// so a token already replaced by a concurrent refresh survives.
func (s *Store) InvalidateAccessToken(stale string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken == "" || s.accessToken != stale {
		return false
	}
	s.accessToken = ""
	return true
}

// SetUser replaces the user record and persists it.
func (s *Store) SetUser(rec UserRecord) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.user = rec.clone()
	snapshot := s.user.clone()
	s.mu.Unlock()

	s.persist(snapshot)
}

// MergeUser applies a partial JSON record over the current user. Keys that
// are not part of UserRecord, such as accessToken, are dropped.
func (s *Store) MergeUser(patch json.RawMessage) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	next := s.user.clone()
	if next == nil {
		next = &UserRecord{}
	}
	if err := json.Unmarshal(patch, next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("decode user patch: %w", err)
	}
	s.user = next
	snapshot := next.clone()
	s.mu.Unlock()

	s.persist(snapshot)
	return nil
}

// Establish stores a freshly minted session in one step.
func (s *Store) Establish(accessToken string, rec UserRecord) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.accessToken = accessToken
	s.user = rec.clone()
	snapshot := s.user.clone()
	s.mu.Unlock()

	s.persist(snapshot)
}

// EstablishIf stores a refreshed session only while the current user still
// holds refreshToken. The check and the write share one critical section, so
// a session cleared or replaced meanwhile is never brought back.
func (s *Store) EstablishIf(refreshToken, accessToken string, rec UserRecord) bool {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if s.user == nil || s.user.RefreshToken != refreshToken {
		s.mu.Unlock()
		return false
	}
	s.accessToken = accessToken
	s.user = rec.clone()
	snapshot := s.user.clone()
	s.mu.Unlock()

	s.persist(snapshot)
	return true
}

// Clear resets both fields and wipes persisted state.
func (s *Store) Clear() {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.accessToken = ""
	s.user = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.persister.Clear(ctx); err != nil {
		s.logger.Warn("failed to wipe persisted session", zap.Error(err))
	}
}

func (s *Store) persist(user *UserRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.persister.Save(ctx, user); err != nil {
		s.logger.Warn("failed to persist session user", zap.Error(err))
	}
}
