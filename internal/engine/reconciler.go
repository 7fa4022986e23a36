package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Apply sets status on every candidate independently. A failure only marks
// that candidate as failed; the rest of the batch still runs.
func Apply(ctx context.Context, candidates []Target, status Status, m Mutator) MutationOutcome {
	out := MutationOutcome{Status: status, Errors: map[string]error{}}
	logger := zerolog.Ctx(ctx)
	for _, t := range candidates {
		if err := setStatus(ctx, m, t.ID, status); err != nil {
			logger.Warn().Err(err).Str("campaign_id", t.ID).Str("campaign", t.Name).
				Str("status", string(status)).Msg("set campaign status failed")
			out.Failed = append(out.Failed, t)
			out.Errors[t.ID] = err
			continue
		}
		logger.Info().Str("campaign_id", t.ID).Str("campaign", t.Name).
			Str("status", string(status)).Msg("campaign status set")
		out.Succeeded = append(out.Succeeded, t)
	}
	return out
}

func setStatus(ctx context.Context, m Mutator, id string, status Status) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic setting status: %v", r)
		}
	}()
	return m.SetCampaignStatus(ctx, id, status)
}
