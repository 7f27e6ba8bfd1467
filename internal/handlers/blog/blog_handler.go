// internal/handlers/blog/blog_handler.go
package blog

import (
	"net/http"
	"time"

	"blog-session/internal/domain/blog"
	"blog-session/internal/middleware"
	"blog-session/internal/pkg/response"
	"blog-session/internal/repository/memory"

	"github.com/gin-gonic/gin"
)

type BlogHandler struct {
	posts *memory.PostRepository
}

func NewBlogHandler(posts *memory.PostRepository) *BlogHandler {
	return &BlogHandler{posts: posts}
}

// ListPosts is public; signed-in readers also get their liked flags.
func (h *BlogHandler) ListPosts(c *gin.Context) {
	viewer, _ := middleware.GetUserID(c)

	articles, err := h.posts.List(c.Request.Context(), blog.ListQuery{
		Search: c.Query("search"),
		Tag:    c.Query("tag"),
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	out := make([]blog.Post, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.View(viewer))
	}
	response.Data(c, http.StatusOK, out)
}

func (h *BlogHandler) GetPost(c *gin.Context) {
	viewer, _ := middleware.GetUserID(c)

	a, err := h.posts.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Data(c, http.StatusOK, a.Detail(viewer))
}

func (h *BlogHandler) Like(c *gin.Context) {
	h.setLike(c, true)
}

func (h *BlogHandler) Unlike(c *gin.Context) {
	h.setLike(c, false)
}

func (h *BlogHandler) AddComment(c *gin.Context) {
	var req blog.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	comment, err := h.posts.AddComment(c.Request.Context(), c.Param("id"), blog.Comment{
		Author:    middleware.GetUsername(c),
		Body:      req.Body,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Data(c, http.StatusCreated, comment)
}

func (h *BlogHandler) setLike(c *gin.Context, liked bool) {
	userID := middleware.MustGetUserID(c)

	a, err := h.posts.SetLike(c.Request.Context(), c.Param("id"), userID, liked)
	if err != nil {
		response.FromError(c, err)
		return
	}
	view := a.View(userID)
	response.Data(c, http.StatusOK, blog.LikeResponse{Likes: view.Likes, Liked: view.Liked})
}
