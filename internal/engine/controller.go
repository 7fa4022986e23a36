package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Cycle stages that can abort a cycle.
const (
	StageLoadState     = "load_state"
	StageFetchInstalls = "fetch_installs"
	StageListEnabled   = "list_enabled"
	StageSaveState     = "save_state"
)

const saveTimeout = 10 * time.Second

// CycleAbortError ends a cycle early. Nothing after Stage ran.
type CycleAbortError struct {
	Stage string
	Err   error
}

func (e *CycleAbortError) Error() string { return fmt.Sprintf("cycle aborted at %s: %v", e.Stage, e.Err) }
func (e *CycleAbortError) Unwrap() error  { return e.Err }

func abort(stage string, err error) error { return &CycleAbortError{Stage: stage, Err: err} }

// Settings is the part of the configuration a cycle needs.
type Settings struct {
	Thresholds Thresholds
	Window     OperatingWindow
	AppIDs     []string
	Lookback   time.Duration
}

// Controller runs decision cycles. It is not safe for concurrent cycles;
// the scheduler serializes them.
type Controller struct {
	settings Settings
	store    StateStore
	reports  ReportFetcher
	platform Platform
	notifier Notifier
	now      func() time.Time
}

func NewController(s Settings, store StateStore, reports ReportFetcher, platform Platform, notifier Notifier) *Controller {
	return &Controller{
		settings: s,
		store:    store,
		reports:  reports,
		platform: platform,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// RunCycle executes one decision cycle. The returned report is filled in as far
// as the cycle got; a non-nil error is a *CycleAbortError.
func (c *Controller) RunCycle(ctx context.Context) (CycleReport, error) {
	rep := CycleReport{StartedAt: c.now()}
	rep.InWindow = c.settings.Window.Contains(rep.StartedAt)

	var err error
	if rep.InWindow {
		err = c.thresholdCycle(ctx, &rep)
	} else {
		err = c.resumeAll(ctx, &rep)
	}
	rep.FinishedAt = c.now()
	if err != nil {
		rep.Error = err.Error()
	}
	return rep, err
}

func (c *Controller) resumeAll(ctx context.Context, rep *CycleReport) error {
	logger := zerolog.Ctx(ctx)
	rep.Branch = BranchResumeAll

	paused, err := c.store.Load(ctx)
	if err != nil {
		return abort(StageLoadState, err)
	}
	rep.PausedCount = len(paused)
	if len(paused) == 0 {
		logger.Info().Msg("out of operating window; nothing paused")
		return nil
	}

	logger.Info().Int("paused", len(paused)).Msg("out of operating window; enabling all paused campaigns")
	outcome := Apply(ctx, recordTargets(paused.Sorted()), StatusEnabled, c.platform)
	rep.Outcome = &outcome
	c.notifyMutation(ctx, outcome)

	next := paused.Clone()
	next.Remove(outcome.SucceededIDs()...)
	return c.save(ctx, rep, paused, next)
}

func (c *Controller) thresholdCycle(ctx context.Context, rep *CycleReport) error {
	logger := zerolog.Ctx(ctx)
	limits := c.settings.Thresholds

	// Gather every input before any side effect so an abort leaves nothing half done.
	reports := make([][]InstallRow, 0, len(c.settings.AppIDs))
	for _, app := range c.settings.AppIDs {
		rows, err := c.reports.FetchInstalls(ctx, app, c.settings.Window.Location, c.settings.Lookback)
		if err != nil {
			return abort(StageFetchInstalls, fmt.Errorf("app %s: %w", app, err))
		}
		reports = append(reports, rows)
	}
	agg := Aggregate(reports...)
	rep.TotalInstalls = agg.Total

	paused, err := c.store.Load(ctx)
	if err != nil {
		return abort(StageLoadState, err)
	}
	rep.PausedCount = len(paused)

	enabled, err := c.platform.ListEnabledCampaigns(ctx)
	if err != nil {
		return abort(StageListEnabled, err)
	}

	logger.Info().Int("installs", agg.Total).Int("campaigns", len(agg.Campaigns)).
		Int("enabled", len(enabled)).Int("paused", len(paused)).Msg("installs aggregated")

	if agg.Total > limits.AlertLimit {
		logger.Info().Int("installs", agg.Total).Int("alert_limit", limits.AlertLimit).Msg("installs above alert limit")
		rep.Alerted = true
		if err := c.notifier.SendAlert(ctx, agg.Total, c.settings.Lookback); err != nil {
			logger.Error().Err(err).Msg("send alert")
		}
	}

	if agg.Total > limits.PauseLimit {
		return c.pause(ctx, rep, agg, paused, enabled)
	}
	return c.resume(ctx, rep, agg, paused, enabled)
}

func (c *Controller) pause(ctx context.Context, rep *CycleReport, agg Aggregation, paused PausedSet, enabled map[string]struct{}) error {
	logger := zerolog.Ctx(ctx)
	rep.Branch = BranchPause

	// Campaigns paused outside the engine are not enabled and never become candidates.
	active := make([]CampaignSnapshot, 0, len(agg.Campaigns))
	for _, cs := range agg.Campaigns {
		if _, ok := enabled[cs.ID]; ok {
			active = append(active, cs)
		}
	}
	SortByInstalls(active)

	selected := SelectToPause(active, agg.Total, c.settings.Thresholds.PauseLimit)
	logger.Info().Int("installs", agg.Total).Int("pause_limit", c.settings.Thresholds.PauseLimit).
		Int("candidates", len(active)).Int("selected", len(selected)).Msg("installs above pause limit")
	if len(selected) == 0 {
		return nil
	}

	outcome := Apply(ctx, snapshotTargets(selected), StatusPaused, c.platform)
	rep.Outcome = &outcome
	c.notifyMutation(ctx, outcome)

	byID := agg.ByID()
	next := paused.Clone()
	for _, id := range outcome.SucceededIDs() {
		cs := byID[id]
		next.Merge(PausedRecord{ID: cs.ID, Name: cs.Name, InstallsAtPause: cs.Installs})
	}
	return c.save(ctx, rep, paused, next)
}

func (c *Controller) resume(ctx context.Context, rep *CycleReport, agg Aggregation, paused PausedSet, enabled map[string]struct{}) error {
	logger := zerolog.Ctx(ctx)
	rep.Branch = BranchResume

	// Records the platform already reports enabled were resumed externally.
	var candidates []PausedRecord
	for _, r := range paused.Sorted() {
		if _, ok := enabled[r.ID]; ok {
			rep.Dropped = append(rep.Dropped, r.ID)
			continue
		}
		candidates = append(candidates, r)
	}
	if len(rep.Dropped) > 0 {
		logger.Info().Strs("campaign_ids", rep.Dropped).Msg("dropping records of externally enabled campaigns")
	}

	selected := SelectToResume(candidates, agg.Total, c.settings.Thresholds.PauseLimit)
	logger.Info().Int("installs", agg.Total).Int("pause_limit", c.settings.Thresholds.PauseLimit).
		Int("candidates", len(candidates)).Int("selected", len(selected)).Msg("installs below pause limit")

	next := paused.Clone()
	next.Remove(rep.Dropped...)
	if len(selected) > 0 {
		outcome := Apply(ctx, recordTargets(selected), StatusEnabled, c.platform)
		rep.Outcome = &outcome
		c.notifyMutation(ctx, outcome)
		next.Remove(outcome.SucceededIDs()...)
	}
	return c.save(ctx, rep, paused, next)
}

// save writes next when it differs from prev. The store is written at most once per cycle.
func (c *Controller) save(ctx context.Context, rep *CycleReport, prev, next PausedSet) error {
	rep.PausedCount = len(next)
	if equalSets(prev, next) {
		return nil
	}
	// Mutations already reached the platform; a shutdown must not lose their record.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := c.store.Save(saveCtx, next); err != nil {
		rep.PausedCount = len(prev)
		return abort(StageSaveState, err)
	}
	zerolog.Ctx(ctx).Info().Int("paused", len(next)).Msg("paused campaigns saved")
	return nil
}

func (c *Controller) notifyMutation(ctx context.Context, outcome MutationOutcome) {
	if outcome.Empty() {
		return
	}
	if err := c.notifier.SendMutationNotice(ctx, outcome); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("status", string(outcome.Status)).Msg("send mutation notice")
	}
}

func equalSets(a, b PausedSet) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
