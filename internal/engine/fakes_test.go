package engine

import (
	"context"
	"errors"
	"time"
)

type fakeStore struct {
	set     PausedSet
	loadErr error
	saveErr error
	saves   int
	// honorCtx fails Save on a done context, like a database driver.
	honorCtx bool
}

func (s *fakeStore) Load(context.Context) (PausedSet, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.set == nil {
		return PausedSet{}, nil
	}
	return s.set.Clone(), nil
}

func (s *fakeStore) Save(ctx context.Context, set PausedSet) error {
	if s.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.set = set.Clone()
	return nil
}

type fakeReports struct {
	rows map[string][]InstallRow
	err  error
}

func (f *fakeReports) FetchInstalls(_ context.Context, appID string, _ *time.Location, _ time.Duration) ([]InstallRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[appID], nil
}

type mutation struct {
	ID     string
	Status Status
}

type fakePlatform struct {
	enabled map[string]struct{}
	listErr error
	failIDs map[string]bool
	calls   []mutation
	// afterMutate runs after each accepted mutation.
	afterMutate func()
}

func (p *fakePlatform) ListEnabledCampaigns(context.Context) (map[string]struct{}, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.enabled, nil
}

func (p *fakePlatform) SetCampaignStatus(_ context.Context, id string, status Status) error {
	p.calls = append(p.calls, mutation{ID: id, Status: status})
	if p.failIDs[id] {
		return errors.New("platform rejected mutation")
	}
	switch status {
	case StatusPaused:
		delete(p.enabled, id)
	case StatusEnabled:
		if p.enabled == nil {
			p.enabled = map[string]struct{}{}
		}
		p.enabled[id] = struct{}{}
	}
	if p.afterMutate != nil {
		p.afterMutate()
	}
	return nil
}

type fakeNotifier struct {
	alerts  []int
	notices []MutationOutcome
	err     error
}

func (n *fakeNotifier) SendAlert(_ context.Context, installs int, _ time.Duration) error {
	n.alerts = append(n.alerts, installs)
	return n.err
}

func (n *fakeNotifier) SendMutationNotice(_ context.Context, o MutationOutcome) error {
	n.notices = append(n.notices, o)
	return n.err
}

func enabledSet(ids ...string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// rowsFor builds a report with count rows per campaign, in the given order.
func rowsFor(pairs ...any) []InstallRow {
	var out []InstallRow
	for i := 0; i+1 < len(pairs); i += 2 {
		id := pairs[i].(string)
		for n := 0; n < pairs[i+1].(int); n++ {
			out = append(out, InstallRow{CampaignID: id, CampaignName: "campaign " + id})
		}
	}
	return out
}
