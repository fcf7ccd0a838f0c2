package budget

import "github.com/tempora-app/tempora/internal/timesheet"

// Statistic accumulates duration, monetary rate, internal rate and record
// count over a set of completed time entries, cross-tabulated by the billable
// and exported flags. All fields are plain sums; no averaging or normalization
// is ever applied, so the subset invariants
//
//	DurationBillable <= Duration
//	DurationBillableExported <= DurationBillable
//	DurationExported <= Duration
//
// hold by construction (and likewise for rate and counter fields).
type Statistic struct {
	Counter      int64   `json:"counter"`
	Duration     int64   `json:"duration"`
	Rate         float64 `json:"rate"`
	InternalRate float64 `json:"internalRate"`

	CounterBillable      int64   `json:"counterBillable"`
	DurationBillable     int64   `json:"durationBillable"`
	RateBillable         float64 `json:"rateBillable"`
	InternalRateBillable float64 `json:"internalRateBillable"`

	CounterBillableExported  int64   `json:"counterBillableExported"`
	DurationBillableExported int64   `json:"durationBillableExported"`
	RateBillableExported     float64 `json:"rateBillableExported"`

	CounterExported      int64   `json:"counterExported"`
	DurationExported     int64   `json:"durationExported"`
	RateExported         float64 `json:"rateExported"`
	InternalRateExported float64 `json:"internalRateExported"`
}

// apply folds one completed entry into the statistic.
func (s *Statistic) apply(e timesheet.Entry) {
	s.Counter++
	s.Duration += e.Duration
	s.Rate += e.Rate
	s.InternalRate += e.InternalRate

	if e.Billable {
		s.CounterBillable++
		s.DurationBillable += e.Duration
		s.RateBillable += e.Rate
		s.InternalRateBillable += e.InternalRate
		if e.Exported {
			s.CounterBillableExported++
			s.DurationBillableExported += e.Duration
			s.RateBillableExported += e.Rate
		}
	}
	if e.Exported {
		s.CounterExported++
		s.DurationExported += e.Duration
		s.RateExported += e.Rate
		s.InternalRateExported += e.InternalRate
	}
}

// Merge adds another statistic into s.
func (s *Statistic) Merge(o Statistic) {
	s.Counter += o.Counter
	s.Duration += o.Duration
	s.Rate += o.Rate
	s.InternalRate += o.InternalRate
	s.CounterBillable += o.CounterBillable
	s.DurationBillable += o.DurationBillable
	s.RateBillable += o.RateBillable
	s.InternalRateBillable += o.InternalRateBillable
	s.CounterBillableExported += o.CounterBillableExported
	s.DurationBillableExported += o.DurationBillableExported
	s.RateBillableExported += o.RateBillableExported
	s.CounterExported += o.CounterExported
	s.DurationExported += o.DurationExported
	s.RateExported += o.RateExported
	s.InternalRateExported += o.InternalRateExported
}
