package client

import (
	"github.com/spf13/cobra"

	"github.com/karmahq/questline/go/clients/karma_api_client"
)

// rootOptions carries the persistent flags into the subcommands.
type rootOptions struct {
	configPath string
	serverURL  string
}

func (o *rootOptions) loadConfig() (*Config, error) {
	cfg, err := LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.serverURL != "" {
		cfg.ServerURL = o.serverURL
	}
	return cfg, nil
}

func (o *rootOptions) apiClient(cfg *Config) *karma_api_client.KarmaApiClient {
	api := karma_api_client.NewKarmaApiClient(cfg.ServerURL)
	if cfg.Cookie != "" {
		api.SetSessionCookie(cfg.Cookie)
	}
	return api
}

// NewRootCmd builds the questline CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "questline",
		Short:         "Quest and karma client",
		Long:          "Command-line client for the questline server: log in with a badge URL, view your profile, track quest countdowns and submit completion photos.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", DefaultConfigPath(), "config file path")
	cmd.PersistentFlags().StringVar(&opts.serverURL, "server", "", "server base URL (overrides config)")

	cmd.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newProfileCmd(opts),
		newQuestsCmd(opts),
		newCaptureCmd(opts),
		newFriendCmd(opts),
	)
	return cmd
}
