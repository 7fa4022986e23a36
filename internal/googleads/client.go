// Package googleads talks to the Google Ads REST API: it lists enabled app
// campaigns and changes campaign status.
package googleads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"pausee/internal/config"
	"pausee/internal/credentials"
	"pausee/internal/engine"
)

const enabledAppCampaignsQuery = `SELECT campaign.id FROM campaign ` +
	`WHERE campaign.status = 'ENABLED' AND campaign.advertising_channel_sub_type = 'APP_CAMPAIGN'`

// APIError is a non-2xx answer from the API.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("google ads: status %d: %s", e.Code, e.Message) }

type Options struct {
	BaseURL         string
	APIVersion      string
	CustomerID      string
	DeveloperToken  string
	LoginCustomerID string
	Timeout         time.Duration
}

type Client struct {
	opts Options
	http *http.Client
}

// New builds a client whose requests are authorized by ts.
func New(ctx context.Context, opts Options, ts oauth2.TokenSource) *Client {
	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = opts.Timeout
	opts.CustomerID = normalizeCustomerID(opts.CustomerID)
	opts.LoginCustomerID = normalizeCustomerID(opts.LoginCustomerID)
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{opts: opts, http: hc}
}

// NewFromConfig refreshes access tokens from the stored refresh token.
func NewFromConfig(ctx context.Context, cfg config.Config, creds credentials.Credentials) (*Client, error) {
	if err := creds.Validate(true); err != nil {
		return nil, err
	}
	if cfg.GoogleAds.CustomerID == "" {
		return nil, fmt.Errorf("google_ads.customer_id must be set")
	}
	ts := OAuthConfig(creds, "").TokenSource(ctx, &oauth2.Token{RefreshToken: creds.GoogleAds.RefreshToken})
	return New(ctx, Options{
		BaseURL:         cfg.GoogleAds.BaseURL,
		APIVersion:      cfg.GoogleAds.APIVersion,
		CustomerID:      cfg.GoogleAds.CustomerID,
		DeveloperToken:  creds.GoogleAds.DeveloperToken,
		LoginCustomerID: creds.GoogleAds.LoginCustomerID,
		Timeout:         cfg.GoogleAds.Timeout,
	}, ts), nil
}

// ListEnabledCampaigns returns the ids of all enabled app campaigns.
func (c *Client) ListEnabledCampaigns(ctx context.Context) (map[string]struct{}, error) {
	ids := map[string]struct{}{}
	pageToken := ""
	for {
		req := map[string]string{"query": enabledAppCampaignsQuery}
		if pageToken != "" {
			req["pageToken"] = pageToken
		}
		body, err := c.post(ctx, "googleAds:search", req)
		if err != nil {
			return nil, fmt.Errorf("list enabled campaigns: %w", err)
		}
		gjson.GetBytes(body, "results.#.campaign.id").ForEach(func(_, id gjson.Result) bool {
			ids[id.String()] = struct{}{}
			return true
		})
		pageToken = gjson.GetBytes(body, "nextPageToken").String()
		if pageToken == "" {
			return ids, nil
		}
	}
}

// SetCampaignStatus updates the status of a single campaign.
func (c *Client) SetCampaignStatus(ctx context.Context, campaignID string, status engine.Status) error {
	req := map[string]any{
		"operations": []any{
			map[string]any{
				"update": map[string]string{
					"resourceName": fmt.Sprintf("customers/%s/campaigns/%s", c.opts.CustomerID, campaignID),
					"status":       string(status),
				},
				"updateMask": "status",
			},
		},
	}
	body, err := c.post(ctx, "campaigns:mutate", req)
	if err != nil {
		return fmt.Errorf("set campaign %s %s: %w", campaignID, status, err)
	}
	if gjson.GetBytes(body, "results.0.resourceName").String() == "" {
		return fmt.Errorf("set campaign %s %s: empty mutate result", campaignID, status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, method string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%s/customers/%s/%s", c.opts.BaseURL, c.opts.APIVersion, c.opts.CustomerID, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("developer-token", c.opts.DeveloperToken)
	if c.opts.LoginCustomerID != "" {
		req.Header.Set("login-customer-id", c.opts.LoginCustomerID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, &APIError{Code: resp.StatusCode, Message: msg}
	}
	return body, nil
}

func normalizeCustomerID(id string) string { return strings.ReplaceAll(strings.TrimSpace(id), "-", "") }
