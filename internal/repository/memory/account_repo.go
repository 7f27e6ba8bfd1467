// internal/repository/memory/account_repo.go
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"blog-session/internal/domain/auth"
	xerrors "blog-session/internal/pkg/errors"

	"github.com/google/uuid"
)

// AccountRepository keeps accounts in process memory.
type AccountRepository struct {
	mu         sync.RWMutex
	byID       map[string]*auth.Account
	byUsername map[string]string // lower(username) -> id
	byExternal map[string]string // provider:external -> id
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:       make(map[string]*auth.Account),
		byUsername: make(map[string]string),
		byExternal: make(map[string]string),
	}
}

// ========== Reads ==========

func (r *AccountRepository) FindByID(_ context.Context, id string) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.byID[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return copyAccount(acc), nil
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	r.mu.RLock()
	id, ok := r.byUsername[strings.ToLower(username)]
	r.mu.RUnlock()
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

// FindByExternal looks an account up by a linked OAuth identity.
func (r *AccountRepository) FindByExternal(ctx context.Context, provider, external string) (*auth.Account, error) {
	r.mu.RLock()
	id, ok := r.byExternal[externalKey(provider, external)]
	r.mu.RUnlock()
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *AccountRepository) List(_ context.Context) ([]*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*auth.Account, 0, len(r.byID))
	for _, acc := range r.byID {
		out = append(out, copyAccount(acc))
	}
	sortAccounts(out)
	return out, nil
}

func (r *AccountRepository) Count(_ context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// ========== Writes ==========

// Create assigns an id and stores acc. Usernames are unique case-insensitively.
func (r *AccountRepository) Create(_ context.Context, acc *auth.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(acc.Username)
	if _, exists := r.byUsername[key]; exists {
		return xerrors.ErrConflict
	}
	for p, ext := range acc.OAuth {
		if _, exists := r.byExternal[externalKey(p, ext)]; exists {
			return xerrors.ErrConflict
		}
	}

	now := time.Now().UTC()
	acc.ID = uuid.NewString()
	acc.CreatedAt = now
	acc.UpdatedAt = now

	stored := copyAccount(acc)
	r.byID[stored.ID] = stored
	r.byUsername[key] = stored.ID
	for p, ext := range stored.OAuth {
		r.byExternal[externalKey(p, ext)] = stored.ID
	}
	return nil
}

// Update applies fn to the stored account under the write lock.
func (r *AccountRepository) Update(_ context.Context, id string, fn func(*auth.Account) error) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.byID[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	next := copyAccount(acc)
	if err := fn(next); err != nil {
		return nil, err
	}

	for p, ext := range next.OAuth {
		if owner, exists := r.byExternal[externalKey(p, ext)]; exists && owner != id {
			return nil, xerrors.ErrConflict
		}
	}
	for p, ext := range acc.OAuth {
		delete(r.byExternal, externalKey(p, ext))
	}
	for p, ext := range next.OAuth {
		r.byExternal[externalKey(p, ext)] = id
	}

	next.UpdatedAt = time.Now().UTC()
	r.byID[id] = next
	return copyAccount(next), nil
}

func (r *AccountRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.byID[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byUsername, strings.ToLower(acc.Username))
	for p, ext := range acc.OAuth {
		delete(r.byExternal, externalKey(p, ext))
	}
	return nil
}

// ========== Helpers ==========

func externalKey(provider, external string) string {
	return provider + ":" + external
}

func copyAccount(a *auth.Account) *auth.Account {
	c := *a
	if a.OAuth != nil {
		c.OAuth = make(map[string]string, len(a.OAuth))
		for k, v := range a.OAuth {
			c.OAuth[k] = v
		}
	}
	return &c
}
