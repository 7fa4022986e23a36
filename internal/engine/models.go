package engine

import (
	"slices"
	"strings"
	"time"
)

// Status is the campaign status requested from the ad platform.
type Status string

const (
	StatusPaused  Status = "PAUSED"
	StatusEnabled Status = "ENABLED"
)

// InstallRow is one attributed install as reported by the analytics service.
type InstallRow struct {
	CampaignID   string
	CampaignName string
}

// CampaignSnapshot is a campaign's install volume for the current cycle.
type CampaignSnapshot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Installs int    `json:"installs"`
}

// PausedRecord is a campaign the engine paused, with the volume that caused it.
type PausedRecord struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	InstallsAtPause int    `json:"installs_at_pause"`
}

// PausedSet maps campaign id to its paused record.
type PausedSet map[string]PausedRecord

// Merge adds or overwrites records.
func (s PausedSet) Merge(records ...PausedRecord) {
	for _, r := range records {
		s[r.ID] = r
	}
}

// Remove drops the given ids; unknown ids are ignored.
func (s PausedSet) Remove(ids ...string) {
	for _, id := range ids {
		delete(s, id)
	}
}

func (s PausedSet) Clone() PausedSet {
	out := make(PausedSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Sorted returns the records ascending by install count at pause.
// Ties fall back to id order so the walk is deterministic across runs.
func (s PausedSet) Sorted() []PausedRecord {
	out := make([]PausedRecord, 0, len(s))
	for _, r := range s {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b PausedRecord) int {
		if a.InstallsAtPause != b.InstallsAtPause {
			return a.InstallsAtPause - b.InstallsAtPause
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Thresholds drive the alert and pause decisions. PauseLimit > AlertLimit.
type Thresholds struct {
	AlertLimit int
	PauseLimit int
}

// OperatingWindow is the local-time span of hours during which thresholds apply.
// FromHour >= ToHour means the window spans midnight.
type OperatingWindow struct {
	FromHour int
	ToHour   int
	Location *time.Location
}

// Target is a campaign handed to the mutation step.
type Target struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// MutationOutcome partitions one batch of status changes.
type MutationOutcome struct {
	Status    Status           `json:"status"`
	Succeeded []Target         `json:"succeeded"`
	Failed    []Target         `json:"failed"`
	Errors    map[string]error `json:"-"`
}

func (o MutationOutcome) SucceededIDs() []string {
	ids := make([]string, 0, len(o.Succeeded))
	for _, t := range o.Succeeded {
		ids = append(ids, t.ID)
	}
	return ids
}

func (o MutationOutcome) Empty() bool {
	return len(o.Succeeded) == 0 && len(o.Failed) == 0
}

// Branch names the path a cycle took.
type Branch string

const (
	BranchResumeAll Branch = "resume_all"
	BranchPause     Branch = "pause"
	BranchResume    Branch = "resume"
)

// CycleReport summarizes one decision cycle for logs, metrics and the ops API.
type CycleReport struct {
	ID            string           `json:"id"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
	InWindow      bool             `json:"in_window"`
	Branch        Branch           `json:"branch,omitempty"`
	TotalInstalls int              `json:"total_installs"`
	Alerted       bool             `json:"alerted"`
	Outcome       *MutationOutcome `json:"outcome,omitempty"`
	Dropped       []string         `json:"dropped,omitempty"`
	PausedCount   int              `json:"paused_count"`
	Error         string           `json:"error,omitempty"`
}
