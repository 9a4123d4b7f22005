package main

import (
	"fmt"
	"time"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
)

var dateLayouts = []string{domain.ReportTimeLayout, "2006-01-02"}

// parseDate accepts "YYYY-MM-DD HH:MM:SS" or "YYYY-MM-DD" in loc
func parseDate(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD HH:MM:SS or YYYY-MM-DD", s)
}

// parseTimeRange builds the fetch range. An empty end means now.
func parseTimeRange(start, end string, now time.Time, loc *time.Location) (domain.TimeRange, error) {
	s, err := parseDate(start, loc)
	if err != nil {
		return domain.TimeRange{}, fmt.Errorf("--start: %w", err)
	}

	e := now.In(loc).Truncate(time.Second)
	if end != "" {
		e, err = parseDate(end, loc)
		if err != nil {
			return domain.TimeRange{}, fmt.Errorf("--end: %w", err)
		}
	}

	return domain.NewTimeRange(s, e)
}
