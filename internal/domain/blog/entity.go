package blog

import "time"

// Article is a post as the backend stores it.
type Article struct {
	ID        string
	Title     string
	Summary   string
	Body      string
	Tags      []string
	LikedBy   map[string]struct{} // user ids
	Comments  []Comment
	CreatedAt time.Time
}

// View renders the listing shape for viewerID ("" for anonymous readers).
func (a *Article) View(viewerID string) Post {
	_, liked := a.LikedBy[viewerID]
	return Post{
		ID:        a.ID,
		Title:     a.Title,
		Summary:   a.Summary,
		Tags:      append([]string(nil), a.Tags...),
		Likes:     len(a.LikedBy),
		Liked:     viewerID != "" && liked,
		CreatedAt: a.CreatedAt,
	}
}

// Detail renders the full post for viewerID.
func (a *Article) Detail(viewerID string) PostDetail {
	return PostDetail{
		Post:     a.View(viewerID),
		Body:     a.Body,
		Comments: append([]Comment{}, a.Comments...),
	}
}
