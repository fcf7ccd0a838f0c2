package timesheet

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested entry does not exist.
	ErrNotFound = errors.New("timesheet: entry not found")
	// ErrAlreadyStopped indicates a stop on an entry that is not running.
	ErrAlreadyStopped = errors.New("timesheet: entry already stopped")
	// ErrRunning indicates an operation that requires a stopped entry.
	ErrRunning = errors.New("timesheet: entry still running")
	// ErrExported indicates a mutation on an entry locked by export.
	ErrExported = errors.New("timesheet: entry already exported")
)

// Entry is a single time-tracking record. Project and customer ids are
// denormalized from the owning activity so aggregation can group by any
// level of the hierarchy without extra lookups.
type Entry struct {
	ID           int64
	UserID       int64
	ActivityID   int64
	ProjectID    int64
	CustomerID   int64
	Begin        time.Time
	End          *time.Time
	Duration     int64
	Rate         float64
	InternalRate float64
	Billable     bool
	Exported     bool
	Description  string
	ExportBatch  *string
}

// Running reports whether the entry has not been stopped yet. Running entries
// never contribute to statistics.
func (e Entry) Running() bool {
	return e.End == nil
}

// Date returns the date-only projection of Begin used for calendar bucketing.
func (e Entry) Date() time.Time {
	y, m, d := e.Begin.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.Begin.Location())
}

// stop closes the entry at the given time, deriving the duration unless a
// manual override is kept.
func (e *Entry) stop(at time.Time, keepDuration bool) error {
	if e.End != nil {
		return ErrAlreadyStopped
	}
	end := at
	e.End = &end
	if !keepDuration || e.Duration == 0 {
		e.Duration = int64(end.Sub(e.Begin).Seconds())
	}
	return nil
}
