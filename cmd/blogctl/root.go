package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"blog-session/internal/client"
	"blog-session/internal/config"
	"blog-session/internal/pkg/logger"
	"blog-session/internal/transport"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type app struct {
	cfg    config.ClientConfig
	client *client.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "blogctl",
		Short:         "Command line client for the blog API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.client == nil {
				return nil
			}
			return a.client.Close()
		},
	}

	_ = godotenv.Load()
	a.cfg = config.Load()

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfg.APIBaseURL, "api", a.cfg.APIBaseURL, "blog API base url")
	flags.DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "request timeout")
	flags.StringVar(&a.cfg.StoreBackend, "store", a.cfg.StoreBackend, "session store: file, redis or memory")
	flags.StringVar(&a.cfg.StorePath, "session-file", a.cfg.StorePath, "session file for the file store")
	flags.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level")

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newPasswdCmd(a),
		newSetPasswordCmd(a),
		newPostsCmd(a),
		newPostCmd(a),
		newLikeCmd(a, true),
		newLikeCmd(a, false),
		newCommentCmd(a),
		newAdminCmd(a),
		newOAuthCmd(a),
		newDeviceCmd(a),
	)
	return root
}

func (a *app) open(cmd *cobra.Command) error {
	lg, err := logger.New(a.cfg.LogLevel)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	c, err := client.New(cmd.Context(), a.cfg, client.Options{
		Logger: lg,
		Redirector: transport.RedirectFunc(func(_ context.Context, loginURL string) {
			fmt.Fprintf(stderr, "session ended, sign in again (%s)\n", loginURL)
		}),
	})
	if err != nil {
		return err
	}
	a.client = c
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
