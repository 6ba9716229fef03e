package model

import "time"

// Window restricts ledger lines by entry date. Both bounds are inclusive
// calendar days; a zero bound is open.
type Window struct {
	From time.Time
	To   time.Time
}

// AsOf is the cumulative window: every entry dated on or before cutoff.
// A zero cutoff means the whole ledger.
func AsOf(cutoff time.Time) Window {
	return Window{To: Day(cutoff)}
}

// Period is the inclusive window [start, end].
func Period(start, end time.Time) Window {
	return Window{From: Day(start), To: Day(end)}
}

// Contains reports whether date falls inside the window.
func (w Window) Contains(date time.Time) bool {
	d := Day(date)
	if !w.From.IsZero() && d.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && d.After(w.To) {
		return false
	}
	return true
}

// Empty reports whether the window can contain no date at all.
func (w Window) Empty() bool {
	return !w.From.IsZero() && !w.To.IsZero() && w.To.Before(w.From)
}
