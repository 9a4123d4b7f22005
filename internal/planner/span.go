package planner

import (
	"fmt"
	"time"
)

// Span is a calendar-relative length of time. Months and years follow the
// calendar, so the wall-clock duration of a span depends on where it starts.
type Span struct {
	Years  int
	Months int
	Days   int
}

// DefaultSpan is the longest lookback the report service accepts per request
var DefaultSpan = Span{Months: 6}

// MonthSpan returns a span of n calendar months
func MonthSpan(n int) Span {
	return Span{Months: n}
}

// Validate checks that the span is positive
func (s Span) Validate() error {
	if s.Years < 0 || s.Months < 0 || s.Days < 0 {
		return fmt.Errorf("invalid span %s: components must not be negative", s)
	}
	if s.Years == 0 && s.Months == 0 && s.Days == 0 {
		return fmt.Errorf("invalid span: must be greater than zero")
	}
	return nil
}

// AddTo returns t moved forward by the span. When the target month is shorter
// than t's day of month, the day is clipped to the month's last day
// (Aug 31 + 6 months is Feb 28, not Mar 3 as time.AddDate would give).
func (s Span) AddTo(t time.Time) time.Time {
	year, month, day := t.Date()
	months := int(month) - 1 + s.Months + 12*s.Years
	targetYear := year + months/12
	targetMonth := time.Month(months%12 + 1)

	if last := daysIn(targetYear, targetMonth, t.Location()); day > last {
		day = last
	}

	hour, minute, sec := t.Clock()
	out := time.Date(targetYear, targetMonth, day, hour, minute, sec, t.Nanosecond(), t.Location())
	if s.Days != 0 {
		out = out.AddDate(0, 0, s.Days)
	}
	return out
}

func (s Span) String() string {
	return fmt.Sprintf("%dy%dm%dd", s.Years, s.Months, s.Days)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
