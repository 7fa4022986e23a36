package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	app "pausee/internal/app/server"
)

// NewRunCommand creates the run command.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run decision cycles on a schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return app.Run(cmd.Context(), cfg, opts.CredentialsPath)
		},
	}
}

// NewOnceCommand creates the once command.
func NewOnceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single decision cycle and print its report as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			deps, closeStore, err := app.Build(cmd.Context(), cfg, opts.CredentialsPath)
			if err != nil {
				return err
			}
			defer closeStore()

			rep := app.New(cfg, deps).Scheduler().RunOnce(cmd.Context())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				return err
			}
			if rep.Error != "" {
				return &CycleFailedError{Reason: rep.Error}
			}
			return nil
		},
	}
}

// CycleFailedError makes `once` exit non-zero when the cycle aborted.
type CycleFailedError struct{ Reason string }

func (e *CycleFailedError) Error() string { return "cycle failed: " + e.Reason }
