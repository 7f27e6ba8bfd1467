package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOAuthCmd(a *app) *cobra.Command {
	oauth := &cobra.Command{
		Use:   "oauth",
		Short: "Sign in with or link an OAuth provider",
	}

	signin := &cobra.Command{
		Use:   "signin PROVIDER [EXTERNAL_USER]",
		Short: "Sign in with a provider hand-off token",
		Long: "Sign in with the token an OAuth redirect handed back. Without --token " +
			"the development backend's authorize endpoint is used to mint one for EXTERNAL_USER.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := handoffToken(cmd, a, args, false)
			if err != nil {
				return err
			}
			user, err := a.client.Auth.OAuthUserInfo(cmd.Context(), token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", user.Username)
			return nil
		},
	}
	signin.Flags().String("token", "", "hand-off token from the provider redirect")

	link := &cobra.Command{
		Use:   "link PROVIDER [EXTERNAL_USER]",
		Short: "Link a provider account to the current account",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := handoffToken(cmd, a, args, true)
			if err != nil {
				return err
			}
			user, err := a.client.Auth.LinkOAuth(cmd.Context(), args[0], token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "linked providers: %v\n", user.OAuthProviders)
			return nil
		},
	}
	link.Flags().String("token", "", "hand-off token from the provider redirect")

	unlink := &cobra.Command{
		Use:   "unlink PROVIDER",
		Short: "Remove a linked provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.client.Auth.UnlinkOAuth(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "linked providers: %v\n", user.OAuthProviders)
			return nil
		},
	}

	oauth.AddCommand(signin, link, unlink)
	return oauth
}

func handoffToken(cmd *cobra.Command, a *app, args []string, link bool) (string, error) {
	if token, _ := cmd.Flags().GetString("token"); token != "" {
		return token, nil
	}
	if len(args) < 2 {
		return "", fmt.Errorf("either --token or EXTERNAL_USER is required")
	}
	return a.client.Auth.DevAuthorize(cmd.Context(), args[0], args[1], link)
}
