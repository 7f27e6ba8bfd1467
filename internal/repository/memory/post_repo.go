// internal/repository/memory/post_repo.go
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"blog-session/internal/domain/blog"
	xerrors "blog-session/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
)

// PostRepository keeps posts, likes and comments in process memory.
type PostRepository struct {
	mu    sync.RWMutex
	posts map[string]*blog.Article
}

func NewPostRepository() *PostRepository {
	return &PostRepository{posts: make(map[string]*blog.Article)}
}

func (r *PostRepository) Create(_ context.Context, a *blog.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == "" {
		a.ID = ulid.Make().String()
	}
	if _, exists := r.posts[a.ID]; exists {
		return xerrors.ErrConflict
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	r.posts[a.ID] = copyArticle(a)
	return nil
}

// List filters by tag and a case-insensitive search over title and summary.
func (r *PostRepository) List(_ context.Context, q blog.ListQuery) ([]*blog.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]*blog.Article, 0, len(r.posts))
	for _, a := range r.posts {
		if q.Tag != "" && !hasTag(a, q.Tag) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.Title), search) &&
			!strings.Contains(strings.ToLower(a.Summary), search) {
			continue
		}
		out = append(out, copyArticle(a))
	}
	sortArticles(out)
	return out, nil
}

func (r *PostRepository) FindByID(_ context.Context, id string) (*blog.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.posts[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return copyArticle(a), nil
}

// SetLike records or removes userID's like; both are idempotent.
func (r *PostRepository) SetLike(_ context.Context, id, userID string, liked bool) (*blog.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.posts[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	if liked {
		a.LikedBy[userID] = struct{}{}
	} else {
		delete(a.LikedBy, userID)
	}
	return copyArticle(a), nil
}

func (r *PostRepository) AddComment(_ context.Context, id string, c blog.Comment) (*blog.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.posts[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	c.ID = ulid.Make().String()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	a.Comments = append(a.Comments, c)
	return &c, nil
}

// ForgetUser drops every like held by userID.
func (r *PostRepository) ForgetUser(_ context.Context, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.posts {
		delete(a.LikedBy, userID)
	}
}

func hasTag(a *blog.Article, tag string) bool {
	for _, t := range a.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func copyArticle(a *blog.Article) *blog.Article {
	c := *a
	c.Tags = append([]string(nil), a.Tags...)
	c.Comments = append([]blog.Comment(nil), a.Comments...)
	c.LikedBy = make(map[string]struct{}, len(a.LikedBy))
	for k := range a.LikedBy {
		c.LikedBy[k] = struct{}{}
	}
	return &c
}
