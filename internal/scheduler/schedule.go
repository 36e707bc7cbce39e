package scheduler

import "time"

// Schedule decides when the next run should be triggered after the given time.
type Schedule interface {
	Next(after time.Time) time.Time
}

// Window is one data interval. A run covering it is triggered at End and
// carries Start as its logical date.
type Window struct {
	Start time.Time
	End   time.Time
}

// Interval triggers at every boundary Start+k*Every, k >= 1.
type Interval struct {
	Start time.Time
	Every time.Duration
}

// Daily creates an Interval of 24 hours anchored at start.
func Daily(start time.Time) Interval {
	return Interval{Start: start.UTC(), Every: 24 * time.Hour}
}

// Next returns the first trigger strictly after the given time, or the zero
// time when the interval is invalid.
func (i Interval) Next(after time.Time) time.Time {
	if i.Every <= 0 {
		return time.Time{}
	}
	first := i.Start.Add(i.Every)
	if after.Before(first) {
		return first
	}
	k := after.Sub(i.Start)/i.Every + 1
	return i.Start.Add(k * i.Every)
}

// LatestCompleted returns the most recent window whose end is not after now.
func (i Interval) LatestCompleted(now time.Time) (Window, bool) {
	if i.Every <= 0 || now.Before(i.Start.Add(i.Every)) {
		return Window{}, false
	}
	k := now.Sub(i.Start) / i.Every
	start := i.Start.Add((k - 1) * i.Every)
	return Window{Start: start, End: start.Add(i.Every)}, true
}

// Completed returns every window from Start whose end is not after now,
// oldest first.
func (i Interval) Completed(now time.Time) []Window {
	latest, ok := i.LatestCompleted(now)
	if !ok {
		return nil
	}
	var out []Window
	for t := i.Start; !t.After(latest.Start); t = t.Add(i.Every) {
		out = append(out, Window{Start: t, End: t.Add(i.Every)})
	}
	return out
}

// WindowFor returns the window that starts at the logical date.
func (i Interval) WindowFor(logicalDate time.Time) Window {
	return Window{Start: logicalDate, End: logicalDate.Add(i.Every)}
}
