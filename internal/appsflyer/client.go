// Package appsflyer fetches raw installs reports from the AppsFlyer export API.
package appsflyer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"pausee/internal/config"
	"pausee/internal/engine"
)

const (
	reportType   = "installs_report"
	timeLayout   = "2006-01-02 15:04"
	maxBodyBytes = 64 << 20
)

// StatusError is a non-200 response from the export API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("appsflyer: status %d: %s", e.Code, e.Body)
}

type Options struct {
	BaseURL       string
	APIToken      string
	MediaSource   string
	Timeout       time.Duration
	Retries       int
	RetryInterval time.Duration
	HTTPClient    *http.Client
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		BaseURL:       cfg.AppsFlyer.BaseURL,
		APIToken:      cfg.AppsFlyer.APIToken,
		MediaSource:   cfg.AppsFlyer.MediaSource,
		Timeout:       cfg.AppsFlyer.Timeout,
		Retries:       cfg.AppsFlyer.Retries,
		RetryInterval: 10 * time.Second,
	}
}

type Client struct {
	opts Options
	http *http.Client
	now  func() time.Time
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}
	return &Client{opts: opts, http: hc, now: time.Now}
}

// FetchInstalls downloads the installs report of appID for [now-lookback, now]
// in loc. 5xx, 429 and transport errors are retried; other statuses fail at once.
func (c *Client) FetchInstalls(ctx context.Context, appID string, loc *time.Location, lookback time.Duration) ([]engine.InstallRow, error) {
	if loc == nil {
		loc = time.UTC
	}
	logger := zerolog.Ctx(ctx).With().Str("app_id", appID).Logger()
	reqURL := c.reportURL(appID, loc, lookback)

	op := func() (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.opts.APIToken)
		req.Header.Set("Accept", "text/csv")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusOK {
			return resp.Body, nil
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		statusErr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.opts.RetryInterval
	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(c.opts.Retries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn().Err(err).Dur("retry_in", next).Msg("installs report fetch failed")
		}),
	)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, fmt.Errorf("installs report for %s: request URL not found: %w", appID, err)
		}
		return nil, fmt.Errorf("installs report for %s: %w", appID, err)
	}
	defer body.Close()

	rows, err := ParseInstalls(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("installs report for %s: %w", appID, err)
	}
	logger.Debug().Int("rows", len(rows)).Msg("installs report fetched")
	return rows, nil
}

func (c *Client) reportURL(appID string, loc *time.Location, lookback time.Duration) string {
	now := c.now().In(loc)
	q := url.Values{}
	q.Set("from", now.Add(-lookback).Format(timeLayout))
	q.Set("to", now.Format(timeLayout))
	q.Set("timezone", loc.String())
	q.Set("category", "standard")
	if c.opts.MediaSource != "" {
		q.Set("media_source", c.opts.MediaSource)
	}
	base := strings.TrimRight(c.opts.BaseURL, "/")
	return fmt.Sprintf("%s/api/raw-data/export/app/%s/%s/v5?%s", base, url.PathEscape(appID), reportType, q.Encode())
}
