package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/karmahq/questline/go/clients/karma_api_client"
)

// Fixed profile messages. The fetch has exactly two terminal outcomes, data
// rendered or one of these.
const (
	MsgPleaseLogIn = "Please log in to view your profile."
	MsgLoadFailed  = "Failed to load user data."
)

// RenderProfile writes the profile the way the profile page lays it out.
func RenderProfile(w io.Writer, profile *karma_api_client.UserProfile) {
	fmt.Fprintf(w, "%s\n", profile.Name)
	fmt.Fprintf(w, "Karma: %d\n", profile.Karma)
	if len(profile.Socials) > 0 {
		fmt.Fprintf(w, "Socials: %s\n", strings.Join(profile.Socials, ", "))
	}
	if len(profile.Friends) > 0 {
		fmt.Fprintf(w, "Friends: %d\n", len(profile.Friends))
	}
	if len(profile.Photos) > 0 {
		fmt.Fprintf(w, "Photos: %d\n", len(profile.Photos))
	}
}

func newProfileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the logged-in user's profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			token, ok := cfg.SessionToken()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), MsgPleaseLogIn)
				return nil
			}

			api := opts.apiClient(cfg)
			profile, err := api.GetUserJSON(cmd.Context(), token)
			if err != nil {
				log.Debug().Err(err).Msg("profile fetch failed")
				fmt.Fprintln(cmd.OutOrStdout(), MsgLoadFailed)
				return nil
			}

			RenderProfile(cmd.OutOrStdout(), profile)
			return nil
		},
	}
}
