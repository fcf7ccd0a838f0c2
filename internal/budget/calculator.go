package budget

import (
	"fmt"
	"time"

	"github.com/tempora-app/tempora/internal/timesheet"
)

// Window is an optional date range applied against an entry's Begin. Both
// bounds are inclusive; a nil bound is unbounded on that side. A window whose
// End precedes Begin is a caller error and is not validated here.
type Window struct {
	Begin *time.Time
	End   *time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.Begin != nil && t.Before(*w.Begin) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}

// MonthOf returns the fully-bounded window covering the calendar month of t.
func MonthOf(t time.Time) Window {
	begin := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	end := begin.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return Window{Begin: &begin, End: &end}
}

// KeyFunc selects the grouping id for an entry, e.g. its project id.
type KeyFunc func(timesheet.Entry) int64

// Grouping selectors for the entity hierarchy.
var (
	ByActivity KeyFunc = func(e timesheet.Entry) int64 { return e.ActivityID }
	ByProject  KeyFunc = func(e timesheet.Entry) int64 { return e.ProjectID }
	ByCustomer KeyFunc = func(e timesheet.Entry) int64 { return e.CustomerID }
	ByUser     KeyFunc = func(e timesheet.Entry) int64 { return e.UserID }
)

// Aggregate rolls up entries into one Statistic per grouping id.
//
// Running entries (nil End) are skipped, the window is applied inclusively
// against Begin, and every seeded id appears in the result even with zero
// matching entries. An entry whose key is not seeded violates the caller
// contract and panics: the caller must pre-seed every entity of interest.
func Aggregate(entries []timesheet.Entry, window Window, seed []int64, key KeyFunc) map[int64]*Statistic {
	stats := make(map[int64]*Statistic, len(seed))
	for _, id := range seed {
		stats[id] = &Statistic{}
	}
	for _, e := range entries {
		if e.Running() {
			continue
		}
		if !window.Contains(e.Begin) {
			continue
		}
		id := key(e)
		stat, ok := stats[id]
		if !ok {
			panic(fmt.Sprintf("budget: entry %d references unseeded entity %d", e.ID, id))
		}
		stat.apply(e)
	}
	return stats
}
