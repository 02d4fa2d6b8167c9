// Package analytics resolves reporting periods and aggregates transactions
// into summaries, chart series and reports. Everything here is pure: callers
// fetch and filter transactions, this package only folds them.
package analytics

import (
	"time"

	"fintrack/internal/core"
)

// Period tags accepted by Resolve.
const (
	PeriodToday  = "today"
	PeriodWeek   = "week"
	PeriodMonth  = "month"
	PeriodYear   = "year"
	PeriodCustom = "custom"
)

// DateRange is an inclusive pair of calendar dates.
type DateRange struct {
	Start core.Date `json:"start_date"`
	End   core.Date `json:"end_date"`
}

// Contains reports whether d falls within the range, bounds included.
func (r DateRange) Contains(d core.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// PeriodResolver maps period tags to date ranges relative to Now.
type PeriodResolver struct {
	Now func() time.Time
}

// NewPeriodResolver returns a resolver using the wall clock.
func NewPeriodResolver() *PeriodResolver {
	return &PeriodResolver{Now: time.Now}
}

func (p *PeriodResolver) today() core.Date {
	now := time.Now
	if p != nil && p.Now != nil {
		now = p.Now
	}
	return core.DateOf(now())
}

// Resolve returns the range for tag. Unknown tags resolve to the current
// month. For PeriodCustom both bounds are returned as given, unchecked; if
// either is zero the current month is used instead.
func (p *PeriodResolver) Resolve(tag string, customStart, customEnd core.Date) DateRange {
	today := p.today()
	switch tag {
	case PeriodToday:
		return DateRange{Start: today, End: today}
	case PeriodWeek:
		return WeekOf(today)
	case PeriodYear:
		return DateRange{
			Start: core.NewDate(today.Year(), 1, 1),
			End:   core.NewDate(today.Year(), 12, 31),
		}
	case PeriodCustom:
		if !customStart.IsZero() && !customEnd.IsZero() {
			return DateRange{Start: customStart, End: customEnd}
		}
	}
	return MonthOf(today)
}

// BudgetRange returns the bounds a budget created today gets. Monthly
// budgets cover the current month, anything else the current week.
func (p *PeriodResolver) BudgetRange(period core.BudgetPeriod) DateRange {
	today := p.today()
	if period == core.PeriodMonthly {
		return MonthOf(today)
	}
	return WeekOf(today)
}

// WeekOf returns the Monday-to-Sunday week containing d.
func WeekOf(d core.Date) DateRange {
	offset := (int(d.Weekday()) + 6) % 7
	start := d.AddDays(-offset)
	return DateRange{Start: start, End: start.AddDays(6)}
}

// MonthOf returns the calendar month containing d.
func MonthOf(d core.Date) DateRange {
	start := core.NewDate(d.Year(), int(d.Month()), 1)
	end := core.Date{Time: start.AddDate(0, 1, -1)}
	return DateRange{Start: start, End: end}
}
