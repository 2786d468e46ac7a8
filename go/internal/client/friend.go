package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newFriendCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "friend",
		Short: "Manage friends",
	}
	cmd.AddCommand(newFriendAddCmd(opts))
	return cmd
}

func newFriendAddCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <badge-url|user-id>",
		Short: "Add a friend by scanned badge URL or user id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if _, ok := cfg.SessionToken(); !ok {
				fmt.Fprintln(cmd.OutOrStdout(), MsgPleaseLogIn)
				return nil
			}

			api := opts.apiClient(cfg)
			ctx := cmd.Context()

			friendID := args[0]
			if strings.Contains(friendID, "://") {
				resolved, err := api.URLToUser(ctx, friendID)
				if err != nil {
					return fmt.Errorf("resolve badge url: %w", err)
				}
				friendID = resolved.UserID
			}

			if err := api.AddFriend(ctx, friendID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added friend %s\n", friendID)
			return nil
		},
	}
}
