package budget

import (
	"sort"
	"time"

	"github.com/tempora-app/tempora/internal/timesheet"
)

// Month is a per-calendar-month rollup of duration and rate with the billable
// subset alongside.
type Month struct {
	Month            time.Month `json:"month"`
	Duration         int64      `json:"duration"`
	Rate             float64    `json:"rate"`
	InternalRate     float64    `json:"internalRate"`
	DurationBillable int64      `json:"durationBillable"`
	RateBillable     float64    `json:"rateBillable"`
}

// Year owns exactly 12 month buckets, pre-populated 1..12 regardless of data
// presence so chart rendering always sees a fixed-width series.
type Year struct {
	Year   int      `json:"year"`
	Months []*Month `json:"months"`
}

// NewYear constructs a year bucket with all 12 months present.
func NewYear(year int) *Year {
	y := &Year{Year: year, Months: make([]*Month, 12)}
	for i := range y.Months {
		y.Months[i] = &Month{Month: time.Month(i + 1)}
	}
	return y
}

// MonthOf returns the bucket for m.
func (y *Year) MonthOf(m time.Month) *Month {
	return y.Months[int(m)-1]
}

// Day is a per-calendar-day rollup, materialized only under a month filter.
type Day struct {
	Date             time.Time `json:"date"`
	Duration         int64     `json:"duration"`
	Rate             float64   `json:"rate"`
	DurationBillable int64     `json:"durationBillable"`
	RateBillable     float64   `json:"rateBillable"`
}

// Years groups completed entries by the calendar year and month of their date
// projection. The returned slice is key-sorted ascending by year; months are
// already sequential within each year.
func Years(entries []timesheet.Entry) []*Year {
	byYear := make(map[int]*Year)
	for _, e := range entries {
		if e.Running() {
			continue
		}
		date := e.Date()
		year, ok := byYear[date.Year()]
		if !ok {
			year = NewYear(date.Year())
			byYear[date.Year()] = year
		}
		month := year.MonthOf(date.Month())
		month.Duration += e.Duration
		month.Rate += e.Rate
		month.InternalRate += e.InternalRate
		if e.Billable {
			month.DurationBillable += e.Duration
			month.RateBillable += e.Rate
		}
	}
	years := make([]*Year, 0, len(byYear))
	for _, y := range byYear {
		years = append(years, y)
	}
	sort.Slice(years, func(i, j int) bool { return years[i].Year < years[j].Year })
	return years
}

// Days rolls up completed entries of the given calendar month into day
// buckets. Days without entries are synthesized as zero-value records so the
// calendar grid renders gap-free.
func Days(entries []timesheet.Entry, year int, month time.Month) []*Day {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	count := first.AddDate(0, 1, -1).Day()
	days := make([]*Day, count)
	for i := range days {
		days[i] = &Day{Date: first.AddDate(0, 0, i)}
	}
	for _, e := range entries {
		if e.Running() {
			continue
		}
		date := e.Date()
		if date.Year() != year || date.Month() != month {
			continue
		}
		day := days[date.Day()-1]
		day.Duration += e.Duration
		day.Rate += e.Rate
		if e.Billable {
			day.DurationBillable += e.Duration
			day.RateBillable += e.Rate
		}
	}
	return days
}
