package memory

import (
	"context"
	"time"

	"blog-session/internal/domain/blog"
)

// SeedPosts loads a few sample posts for local development.
func SeedPosts(ctx context.Context, r *PostRepository) error {
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	samples := []blog.Article{
		{
			ID:      "hello-world",
			Title:   "Hello, world",
			Summary: "Why this blog exists.",
			Body:    "First post. Expect notes on Go, HTTP and auth plumbing.",
			Tags:    []string{"meta"},
		},
		{
			ID:      "refresh-tokens",
			Title:   "Refresh tokens without tears",
			Summary: "Rotating refresh tokens and replaying stale requests.",
			Body:    "A stale access token comes back as 498; the client refreshes once and replays.",
			Tags:    []string{"auth", "go"},
		},
		{
			ID:      "context-cancellation",
			Title:   "Context cancellation in practice",
			Summary: "Deadlines, WithoutCancel and shared work.",
			Body:    "Shared in-flight work must not die with the first caller.",
			Tags:    []string{"go"},
		},
	}
	for i := range samples {
		a := samples[i]
		a.CreatedAt = base.Add(time.Duration(i) * 24 * time.Hour)
		a.LikedBy = map[string]struct{}{}
		if err := r.Create(ctx, &a); err != nil {
			return err
		}
	}
	return nil
}
