// Package cli holds the pausee command tree.
package cli

import (
	"github.com/spf13/cobra"

	"pausee/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath      string
	CredentialsPath string
}

// loadConfig reads the config and configures the global logger from it.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	config.SetupLogging(cfg.Server.LogLevel, cfg.Server.LogFormat)
	return cfg, nil
}

// NewRootCommand creates the pausee command. Without a subcommand it runs the service.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	run := NewRunCommand(opts)
	cmd := &cobra.Command{
		Use:           "pausee",
		Short:         "Pause and resume app campaigns by install volume",
		Long:          "Watches recent installs and pauses the smallest enabled campaigns while the volume is above the pause limit, resuming them once it drops.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          run.RunE,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config.yaml (default ./config.yaml or ./configs/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.CredentialsPath, "credentials", "", "path to the Google Ads credentials file (overrides google_ads.credentials)")

	cmd.AddCommand(run)
	cmd.AddCommand(NewOnceCommand(opts))
	cmd.AddCommand(NewAuthCommand(opts))
	return cmd
}
