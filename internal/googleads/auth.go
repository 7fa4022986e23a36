package googleads

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"pausee/internal/credentials"
)

const Scope = "https://www.googleapis.com/auth/adwords"

// DefaultRedirectURL is a loopback address; the code is copied from the
// browser's address bar after consent.
const DefaultRedirectURL = "http://127.0.0.1:8085"

func OAuthConfig(creds credentials.Credentials, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.GoogleAds.ClientID,
		ClientSecret: creds.GoogleAds.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{Scope},
	}
}

// Authorizer runs the interactive consent flow that yields a refresh token.
type Authorizer struct {
	Config *oauth2.Config
	In     io.Reader
	Out    io.Writer
}

func (a *Authorizer) Authorize(ctx context.Context) (*oauth2.Token, error) {
	verifier := oauth2.GenerateVerifier()
	authURL := a.Config.AuthCodeURL("pausee",
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.S256ChallengeOption(verifier),
	)

	fmt.Fprintf(a.Out, "Log into the Google account you use for Google Ads and open:\n\n%s\n\n", authURL)
	fmt.Fprintf(a.Out, "After approving, paste the value of the `code` parameter from the redirect URL.\nCode: ")

	sc := bufio.NewScanner(a.In)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read code: %w", err)
		}
		return nil, errors.New("read code: no input")
	}
	code := strings.TrimSpace(sc.Text())
	if code == "" {
		return nil, errors.New("empty authorization code")
	}

	tok, err := a.Config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if tok.RefreshToken == "" {
		return nil, errors.New("authentication returned no refresh token; revoke the app's access and retry")
	}
	return tok, nil
}
