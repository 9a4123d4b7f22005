package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
)

// Columns returns the union of record keys in first-seen order. Keys of a
// single record are taken in sorted order since maps carry no order.
func Columns(records []domain.Record) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, r := range records {
		for _, k := range sortedKeys(r) {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	return columns
}

// CellString renders a record value for text formats. Nested values are
// JSON encoded.
func CellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

// cellValue keeps numbers and booleans typed for spreadsheet formats
func cellValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case string, bool, float64, int, int64:
		return val
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		return CellString(val)
	}
}

func sortedKeys(r domain.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
