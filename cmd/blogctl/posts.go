package main

import (
	"fmt"
	"strings"

	"blog-session/internal/domain/blog"

	"github.com/spf13/cobra"
)

func newPostsCmd(a *app) *cobra.Command {
	var q blog.ListQuery
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			posts, err := a.client.Blog.ListPosts(cmd.Context(), q)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, p := range posts {
				mark := " "
				if p.Liked {
					mark = "*"
				}
				fmt.Fprintf(w, "%s %s  %-40s %3d likes  [%s]\n", mark, p.ID, p.Title, p.Likes, strings.Join(p.Tags, ","))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Search, "search", "", "full text filter")
	cmd.Flags().StringVar(&q.Tag, "tag", "", "tag filter")
	return cmd
}

func newPostCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "post ID",
		Short: "Show a post with its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := a.client.Blog.GetPost(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), post)
		},
	}
}

func newLikeCmd(a *app, like bool) *cobra.Command {
	use, short := "like ID", "Like a post"
	if !like {
		use, short = "unlike ID", "Remove your like from a post"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toggle := a.client.Blog.LikePost
			if !like {
				toggle = a.client.Blog.UnlikePost
			}
			out, err := toggle(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d likes\n", out.Likes)
			return nil
		},
	}
}

func newCommentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "comment ID TEXT...",
		Short: "Comment on a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client.Blog.AddComment(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "comment %s added\n", c.ID)
			return nil
		},
	}
}
