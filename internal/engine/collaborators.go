package engine

import (
	"context"
	"time"
)

// ReportFetcher returns the raw install rows of one app over the trailing lookback.
type ReportFetcher interface {
	FetchInstalls(ctx context.Context, appID string, loc *time.Location, lookback time.Duration) ([]InstallRow, error)
}

// Mutator changes the status of a single campaign on the ad platform.
type Mutator interface {
	SetCampaignStatus(ctx context.Context, campaignID string, status Status) error
}

// Platform is the ad platform as seen by the controller.
type Platform interface {
	Mutator
	ListEnabledCampaigns(ctx context.Context) (map[string]struct{}, error)
}

// Notifier delivers alerts and mutation notices. Errors are logged by the caller, never propagated.
type Notifier interface {
	SendAlert(ctx context.Context, installs int, lookback time.Duration) error
	SendMutationNotice(ctx context.Context, outcome MutationOutcome) error
}

// StateStore persists the paused set. Save replaces the whole set.
type StateStore interface {
	Load(ctx context.Context) (PausedSet, error)
	Save(ctx context.Context, set PausedSet) error
}
