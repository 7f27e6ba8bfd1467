package memory

import (
	"sort"

	"blog-session/internal/domain/auth"
	"blog-session/internal/domain/blog"
)

func sortAccounts(a []*auth.Account) {
	sort.Slice(a, func(i, j int) bool {
		if a[i].CreatedAt.Equal(a[j].CreatedAt) {
			return a[i].Username < a[j].Username
		}
		return a[i].CreatedAt.Before(a[j].CreatedAt)
	})
}

// newest first
func sortArticles(a []*blog.Article) {
	sort.Slice(a, func(i, j int) bool {
		if a[i].CreatedAt.Equal(a[j].CreatedAt) {
			return a[i].ID < a[j].ID
		}
		return a[i].CreatedAt.After(a[j].CreatedAt)
	})
}
