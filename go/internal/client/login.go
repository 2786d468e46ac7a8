package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login <badge-url|user-id>",
		Short: "Log in with a scanned badge URL or a known user id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			api := opts.apiClient(cfg)
			ctx := cmd.Context()

			userID := args[0]
			if strings.Contains(userID, "://") {
				resolved, err := api.URLToUser(ctx, userID)
				if err != nil {
					return fmt.Errorf("resolve badge url: %w", err)
				}
				userID = resolved.UserID
				if resolved.NewUser {
					fmt.Fprintln(cmd.OutOrStdout(), "Welcome! Your account was just created.")
				}
			}

			cookie, err := api.Login(ctx, userID)
			if err != nil {
				return err
			}

			cfg.Cookie = cookie
			cfg.UserID = userID
			if err := cfg.Save(opts.configPath); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", userID)
			return nil
		},
	}
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Cookie == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}

			// Server logout is best effort; the saved session is cleared
			// either way.
			if err := opts.apiClient(cfg).Logout(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Server logout failed: %v\n", err)
			}

			cfg.Cookie = ""
			cfg.UserID = ""
			if err := cfg.Save(opts.configPath); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}
