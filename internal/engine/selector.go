package engine

// SelectToPause walks active (ascending by installs) and returns the shortest
// prefix whose removal brings totalInstalls below pauseLimit. The campaign that
// tips the balance is included. If no prefix suffices, every campaign is returned.
func SelectToPause(active []CampaignSnapshot, totalInstalls, pauseLimit int) []CampaignSnapshot {
	pausedSoFar := 0
	for i, c := range active {
		pausedSoFar += c.Installs
		if totalInstalls-pausedSoFar < pauseLimit {
			return append([]CampaignSnapshot(nil), active[:i+1]...)
		}
	}
	return append([]CampaignSnapshot(nil), active...)
}

// SelectToResume walks paused (ascending by installs at pause) and returns the
// longest prefix that keeps currentActiveInstalls plus the resumed volume
// strictly below pauseLimit. The first candidate that would reach the limit stops the walk.
func SelectToResume(paused []PausedRecord, currentActiveInstalls, pauseLimit int) []PausedRecord {
	resumedSoFar := 0
	for i, r := range paused {
		if currentActiveInstalls+resumedSoFar+r.InstallsAtPause >= pauseLimit {
			return append([]PausedRecord(nil), paused[:i]...)
		}
		resumedSoFar += r.InstallsAtPause
	}
	return append([]PausedRecord(nil), paused...)
}

func snapshotTargets(cs []CampaignSnapshot) []Target {
	out := make([]Target, 0, len(cs))
	for _, c := range cs {
		out = append(out, Target{ID: c.ID, Name: c.Name})
	}
	return out
}

func recordTargets(rs []PausedRecord) []Target {
	out := make([]Target, 0, len(rs))
	for _, r := range rs {
		out = append(out, Target{ID: r.ID, Name: r.Name})
	}
	return out
}
