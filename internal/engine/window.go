package engine

import "time"

// IsActive reports whether now falls inside the operating window.
// The hour is taken in the window's location; a nil location means UTC.
func IsActive(now time.Time, w OperatingWindow) bool {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	h := now.In(loc).Hour()
	from, to := w.FromHour, w.ToHour
	if from >= to {
		to += 24
	}
	return (from <= h && h < to) || (from <= h+24 && h+24 < to)
}

// Contains reports whether now falls inside w. See IsActive.
func (w OperatingWindow) Contains(now time.Time) bool { return IsActive(now, w) }
