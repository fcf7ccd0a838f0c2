package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tempora-app/tempora/internal/timesheet"
)

func TestYearsAlwaysHoldTwelveMonths(t *testing.T) {
	entries := []timesheet.Entry{
		completed(1, 7, time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC), 3600, 90, true, false),
		completed(2, 7, time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC), 1800, 45, false, false),
	}

	years := Years(entries)
	require.Len(t, years, 2)
	require.Equal(t, 2025, years[0].Year)
	require.Equal(t, 2026, years[1].Year)

	for _, y := range years {
		require.Len(t, y.Months, 12)
		for i, m := range y.Months {
			require.Equal(t, time.Month(i+1), m.Month)
		}
	}

	nov := years[0].MonthOf(time.November)
	require.EqualValues(t, 3600, nov.Duration)
	require.InDelta(t, 90, nov.Rate, 1e-9)
	require.EqualValues(t, 3600, nov.DurationBillable)

	// Untouched months stay zero-valued.
	require.EqualValues(t, 0, years[0].MonthOf(time.January).Duration)
	require.EqualValues(t, 0, years[1].MonthOf(time.December).Rate)
}

func TestYearsSkipRunning(t *testing.T) {
	running := timesheet.Entry{ID: 1, ProjectID: 7, Begin: time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)}
	years := Years([]timesheet.Entry{running})
	require.Empty(t, years)
}

func TestDaysGapFree(t *testing.T) {
	entries := []timesheet.Entry{
		completed(1, 7, time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC), 3600, 80, true, false),
		completed(2, 7, time.Date(2026, 2, 14, 14, 0, 0, 0, time.UTC), 1800, 40, false, false),
		completed(3, 7, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), 900, 20, false, false),
	}

	days := Days(entries, 2026, time.February)
	require.Len(t, days, 28)

	for i, d := range days {
		require.Equal(t, time.Date(2026, 2, i+1, 0, 0, 0, 0, time.UTC), d.Date)
	}

	feb14 := days[13]
	require.EqualValues(t, 5400, feb14.Duration)
	require.InDelta(t, 120, feb14.Rate, 1e-9)
	require.EqualValues(t, 3600, feb14.DurationBillable)

	// The March entry is outside the filter.
	var total int64
	for _, d := range days {
		total += d.Duration
	}
	require.EqualValues(t, 5400, total)
}

func TestDaysLeapFebruary(t *testing.T) {
	days := Days(nil, 2028, time.February)
	require.Len(t, days, 29)
}
