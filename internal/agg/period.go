// Package agg implements the aggregation kernels: cross-tabs, time-series
// bucketing, market insights, agent roll-ups, and pagination. Grounded on
// the teacher's aggregation.go (the shape of composing Go-side result
// structs around SQL group-bys) but built against a single static table
// rather than chronicle's partitioned time-series store.
package agg

import (
	"strings"

	"github.com/cea-insights/analytics-engine/internal/model"
)

var monthNumber = map[string]string{
	"JAN": "01", "FEB": "02", "MAR": "03", "APR": "04",
	"MAY": "05", "JUN": "06", "JUL": "07", "AUG": "08",
	"SEP": "09", "OCT": "10", "NOV": "11", "DEC": "12",
}

// MonthPeriod converts a MMM-YYYY transaction_date (e.g. "OCT-2017") to its
// YYYY-MM bucket (e.g. "2017-10"). The sentinel value and any string that
// doesn't match the MMM-YYYY shape return ok=false — callers exclude these
// rows from chronological operations rather than parsing them as a
// language date type, per the "keep the raw string, compute on demand"
// design note.
func MonthPeriod(date string) (period string, ok bool) {
	if date == model.Sentinel || date == "" {
		return "", false
	}
	parts := strings.SplitN(date, "-", 2)
	if len(parts) != 2 {
		return "", false
	}
	month, ok := monthNumber[strings.ToUpper(parts[0])]
	if !ok {
		return "", false
	}
	year := parts[1]
	if len(year) != 4 {
		return "", false
	}
	return year + "-" + month, true
}

// YearPeriod converts a MMM-YYYY transaction_date to its YYYY bucket.
func YearPeriod(date string) (period string, ok bool) {
	if date == model.Sentinel || date == "" {
		return "", false
	}
	parts := strings.SplitN(date, "-", 2)
	if len(parts) != 2 {
		return "", false
	}
	if _, known := monthNumber[strings.ToUpper(parts[0])]; !known {
		return "", false
	}
	year := parts[1]
	if len(year) != 4 {
		return "", false
	}
	return year, true
}

// Period is the closed set of time-series bucket granularities.
type Period string

const (
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Bucket dispatches to MonthPeriod or YearPeriod by granularity.
func Bucket(p Period, date string) (string, bool) {
	if p == PeriodYear {
		return YearPeriod(date)
	}
	return MonthPeriod(date)
}

// Unknown projects an empty or sentinel categorical value to the literal
// "Unknown", per the cross-tab null-projection rule. Non-empty,
// non-sentinel values pass through unchanged.
func Unknown(value string) string {
	if value == "" || value == model.Sentinel {
		return model.Unknown
	}
	return value
}
