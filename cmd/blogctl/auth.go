package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func passwordFlag(cmd *cobra.Command, name string) (string, error) {
	p, _ := cmd.Flags().GetString(name)
	if p == "" {
		p = os.Getenv("BLOG_PASSWORD")
	}
	if p == "" {
		return "", fmt.Errorf("--%s or BLOG_PASSWORD is required", name)
	}
	return p, nil
}

func newLoginCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login USERNAME",
		Short: "Sign in with a username and password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordFlag(cmd, "password")
			if err != nil {
				return err
			}
			user, err := a.client.Auth.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", user.Username)
			return nil
		},
	}
	cmd.Flags().StringP("password", "p", "", "account password")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register USERNAME",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordFlag(cmd, "password")
			if err != nil {
				return err
			}
			user, err := a.client.Auth.Register(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringP("password", "p", "", "account password")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.client.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "whoami",
		Aliases: []string{"status"},
		Short:   "Show the stored session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, user, status := a.client.Store.Snapshot()
			out := map[string]any{"status": status, "user": nil}
			if user != nil {
				// The refresh token stays out of terminal output.
				u := *user
				u.RefreshToken = ""
				out["user"] = u
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newPasswdCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the account password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			oldPassword, _ := cmd.Flags().GetString("old")
			newPassword, _ := cmd.Flags().GetString("new")
			if err := a.client.Auth.ChangePassword(cmd.Context(), oldPassword, newPassword); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password changed")
			return nil
		},
	}
	cmd.Flags().String("old", "", "current password")
	cmd.Flags().String("new", "", "new password")
	_ = cmd.MarkFlagRequired("old")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}

func newSetPasswordCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Give an OAuth-only account a password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := passwordFlag(cmd, "password")
			if err != nil {
				return err
			}
			if err := a.client.Auth.SetPassword(cmd.Context(), password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password set")
			return nil
		},
	}
	cmd.Flags().StringP("password", "p", "", "new password")
	return cmd
}

func newAdminCmd(a *app) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Account administration",
	}

	admin.AddCommand(
		&cobra.Command{
			Use:   "users",
			Short: "List accounts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				users, err := a.client.Auth.ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), users)
			},
		},
		&cobra.Command{
			Use:   "delete USER_ID",
			Short: "Delete an account",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.client.Auth.DeleteUser(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "join SECRET",
			Short: "Promote the current account with the admin secret",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				user, err := a.client.Auth.JoinAdmin(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !user.IsAdmin {
					return errors.New("server did not grant admin")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now an admin\n", user.Username)
				return nil
			},
		},
	)
	return admin
}
