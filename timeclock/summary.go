package timeclock

import "github.com/shopspring/decimal"

// =============================================================================
// PERIOD SUMMARY - Day metrics aggregated over a pay period
// =============================================================================

// DaySummary pairs a stored record with its computed metrics.
type DaySummary struct {
	Record  AttendanceRecord
	Metrics DayMetrics
}

// PeriodSummary is what an external payroll step consumes. It carries minutes
// and hours, never money.
type PeriodSummary struct {
	EmployeeID  string
	Period      Period
	Days        []DaySummary
	Totals      DayMetrics
	DaysPunched int
	DaysPaid    int
}

var sixty = decimal.NewFromInt(60)

// MinutesToHours converts whole minutes to hours rounded to two places.
func MinutesToHours(mins int) decimal.Decimal {
	return decimal.NewFromInt(int64(mins)).Div(sixty).Round(2)
}

func (p PeriodSummary) RegularHours() decimal.Decimal { return MinutesToHours(p.Totals.Regular) }
func (p PeriodSummary) DeductHours() decimal.Decimal  { return MinutesToHours(p.Totals.Deduct) }
func (p PeriodSummary) OTHours() decimal.Decimal      { return MinutesToHours(p.Totals.OT) }

// Summarize computes every record in the period. Records outside the period
// are ignored; days without a record are absent from Days.
func (e *Engine) Summarize(employeeID string, period Period, records []AttendanceRecord) PeriodSummary {
	sum := PeriodSummary{EmployeeID: employeeID, Period: period, Days: []DaySummary{}}
	for _, rec := range records {
		if !period.Contains(rec.WorkDate) {
			continue
		}
		r := rec
		m := e.ComputeDay(rec.WorkDate, &r)
		sum.Days = append(sum.Days, DaySummary{Record: rec, Metrics: m})
		sum.Totals = sum.Totals.Add(m)
		if rec.HasAnyPunch() {
			sum.DaysPunched++
		}
		if rec.Paid {
			sum.DaysPaid++
		}
	}
	return sum
}
