package engine

import (
	"strconv"
	"testing"
)

func BenchmarkSelectToPause(b *testing.B) {
	active := make([]CampaignSnapshot, 200)
	total := 0
	for i := range active {
		active[i] = CampaignSnapshot{ID: strconv.Itoa(i), Installs: i * 3}
		total += i * 3
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = SelectToPause(active, total, total/10)
	}
}

func BenchmarkSelectToResume(b *testing.B) {
	set := PausedSet{}
	for i := 0; i < 200; i++ {
		id := strconv.Itoa(i)
		set[id] = PausedRecord{ID: id, InstallsAtPause: i}
	}
	sorted := set.Sorted()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = SelectToResume(sorted, 100, 10000)
	}
}
