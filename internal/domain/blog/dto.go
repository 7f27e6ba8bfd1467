package blog

import "time"

// Post is a blog post as listed to readers.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Tags      []string  `json:"tags"`
	Likes     int       `json:"likes"`
	Liked     bool      `json:"liked"` // only meaningful when the request carried a token
	CreatedAt time.Time `json:"createdAt"`
}

// PostDetail adds the body and comments.
type PostDetail struct {
	Post
	Body     string    `json:"body"`
	Comments []Comment `json:"comments"`
}

// Comment on a post.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentRequest adds a comment.
type CommentRequest struct {
	Body string `json:"body" binding:"required,max=2000"`
}

// ListQuery filters the post listing.
type ListQuery struct {
	Search string
	Tag    string
}

// LikeResponse reports the like count after a toggle.
type LikeResponse struct {
	Likes int  `json:"likes"`
	Liked bool `json:"liked"`
}
