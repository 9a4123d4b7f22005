package export

import (
	"fmt"
	"strings"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
)

// Filter keeps the records whose Field equals Value. The zero Filter keeps
// every record.
type Filter struct {
	Field string
	Value string
}

// ParseFilter parses "field=value"
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return Filter{}, nil
	}
	field, value, ok := strings.Cut(s, "=")
	field = strings.TrimSpace(field)
	if !ok || field == "" {
		return Filter{}, fmt.Errorf("invalid filter %q: expected field=value", s)
	}
	return Filter{Field: field, Value: strings.TrimSpace(value)}, nil
}

// IsZero reports whether the filter keeps everything
func (f Filter) IsZero() bool {
	return f.Field == ""
}

// Match reports whether the record passes the filter. A record without the
// field never matches a non-zero filter.
func (f Filter) Match(r domain.Record) bool {
	if f.IsZero() {
		return true
	}
	v, ok := r[f.Field]
	if !ok || v == nil {
		return false
	}
	return CellString(v) == f.Value
}

// Apply returns the matching records, preserving their order
func (f Filter) Apply(records []domain.Record) []domain.Record {
	if f.IsZero() {
		return records
	}
	out := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (f Filter) String() string {
	if f.IsZero() {
		return "none"
	}
	return f.Field + "=" + f.Value
}
