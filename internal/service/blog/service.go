package blog

import (
	"context"
	"net/http"
	"net/url"

	"blog-session/internal/domain/auth"
	"blog-session/internal/domain/blog"
	xerrors "blog-session/internal/pkg/errors"
	"blog-session/internal/transport"

	"go.uber.org/zap"
)

// BlogService reads posts through the optional profile and writes through the
// mandatory one.
type BlogService struct {
	dispatcher *transport.Dispatcher
	logger     *zap.Logger
}

func NewBlogService(dispatcher *transport.Dispatcher, logger *zap.Logger) *BlogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlogService{dispatcher: dispatcher, logger: logger}
}

// ListPosts returns posts; Liked is filled in when signed in.
func (s *BlogService) ListPosts(ctx context.Context, q blog.ListQuery) ([]blog.Post, error) {
	values := url.Values{}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.Tag != "" {
		values.Set("tag", q.Tag)
	}

	var posts []blog.Post
	if err := s.dispatcher.Optional().JSON(ctx, http.MethodGet, "/posts", nil, &posts, transport.WithQuery(values)); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *BlogService) GetPost(ctx context.Context, id string) (*blog.PostDetail, error) {
	if id == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "post id is required")
	}
	var post blog.PostDetail
	if err := s.dispatcher.Optional().JSON(ctx, http.MethodGet, postPath(id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *BlogService) LikePost(ctx context.Context, id string) (*blog.LikeResponse, error) {
	return s.like(ctx, http.MethodPost, id)
}

func (s *BlogService) UnlikePost(ctx context.Context, id string) (*blog.LikeResponse, error) {
	return s.like(ctx, http.MethodDelete, id)
}

func (s *BlogService) AddComment(ctx context.Context, id, body string) (*blog.Comment, error) {
	if id == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "post id is required")
	}
	req := blog.CommentRequest{Body: body}
	if err := auth.Validate(req); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, err.Error())
	}

	var comment blog.Comment
	if err := s.dispatcher.Mandatory().JSON(ctx, http.MethodPost, postPath(id)+"/comments", req, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (s *BlogService) like(ctx context.Context, method, id string) (*blog.LikeResponse, error) {
	if id == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "post id is required")
	}
	var out blog.LikeResponse
	if err := s.dispatcher.Mandatory().JSON(ctx, method, postPath(id)+"/like", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func postPath(id string) string {
	return "/posts/" + url.PathEscape(id)
}
