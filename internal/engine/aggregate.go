package engine

import "slices"

// Aggregation is the per-campaign view of one cycle's install reports.
type Aggregation struct {
	Campaigns []CampaignSnapshot // first-seen order
	Total     int
}

// Aggregate groups rows from all reports by campaign id, one row per install.
// Rows without a campaign id count toward Total only.
func Aggregate(reports ...[]InstallRow) Aggregation {
	var agg Aggregation
	idx := map[string]int{}
	for _, rows := range reports {
		for _, r := range rows {
			agg.Total++
			if r.CampaignID == "" {
				continue
			}
			i, ok := idx[r.CampaignID]
			if !ok {
				i = len(agg.Campaigns)
				idx[r.CampaignID] = i
				agg.Campaigns = append(agg.Campaigns, CampaignSnapshot{ID: r.CampaignID, Name: r.CampaignName})
			}
			agg.Campaigns[i].Installs++
		}
	}
	return agg
}

// ByID indexes the aggregation by campaign id.
func (a Aggregation) ByID() map[string]CampaignSnapshot {
	out := make(map[string]CampaignSnapshot, len(a.Campaigns))
	for _, c := range a.Campaigns {
		out[c.ID] = c
	}
	return out
}

// SortByInstalls orders snapshots ascending by install count, keeping input order on ties.
func SortByInstalls(cs []CampaignSnapshot) {
	slices.SortStableFunc(cs, func(a, b CampaignSnapshot) int { return a.Installs - b.Installs })
}
