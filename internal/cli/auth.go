package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pausee/internal/config"
	"pausee/internal/credentials"
	"pausee/internal/googleads"
)

// NewAuthCommand creates the auth command. It obtains a refresh token and
// writes it back into the credentials file.
func NewAuthCommand(opts *RootOptions) *cobra.Command {
	var redirectURL string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Ads and store the refresh token",
		Long: `Runs the OAuth consent flow for the Google Ads API.

Open the printed URL, approve access and paste the returned code. The refresh
token is saved into the credentials file, leaving its other keys untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.CredentialsPath
			if path == "" {
				path = config.DefaultCredentialsPath
			}
			creds, err := credentials.Load(path)
			if err != nil {
				return err
			}
			if err := creds.Validate(false); err != nil {
				return err
			}

			a := &googleads.Authorizer{
				Config: googleads.OAuthConfig(creds, redirectURL),
				In:     cmd.InOrStdin(),
				Out:    cmd.OutOrStdout(),
			}
			tok, err := a.Authorize(cmd.Context())
			if err != nil {
				return err
			}
			if err := credentials.SaveRefreshToken(path, tok.RefreshToken); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nRefresh token saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&redirectURL, "redirect-url", googleads.DefaultRedirectURL, "OAuth redirect URL registered for the client")
	return cmd
}
