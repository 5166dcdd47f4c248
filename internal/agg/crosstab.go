package agg

import (
	"context"
	"fmt"

	"github.com/cea-insights/analytics-engine/internal/apierr"
	"github.com/cea-insights/analytics-engine/internal/model"
	"github.com/cea-insights/analytics-engine/internal/query"
	"github.com/cea-insights/analytics-engine/internal/store"
)

// CrossTabRow is one grouped row of a single- or two-dimension cross-tab.
type CrossTabRow struct {
	Dim1  string `json:"dim1"`
	Dim2  string `json:"dim2,omitempty"`
	Count int64  `json:"count"`
}

// ChartPoint is a {name, value} pair shaped for direct chart-library
// consumption.
type ChartPoint struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// CrossTabResult is the body of /api/datasets/{id}/analytics.
type CrossTabResult struct {
	Dimensions []string     `json:"dimensions"`
	Data       []CrossTabRow `json:"data"`
	ChartData  []ChartPoint  `json:"chartData"`
	Total      int64         `json:"total"`
}

// normalizedPeriodSQL builds a SQL expression that maps a MMM-YYYY column
// to its YYYY-MM sortable form, the same mapping MonthPeriod performs in Go
// — needed wherever ordering or MIN/MAX must respect chronological rather
// than lexicographic order. Rows whose value doesn't match a known month
// abbreviation (including the sentinel) evaluate to NULL and sort outside
// any MIN/MAX over non-null values.
func normalizedPeriodSQL(col string) string {
	return fmt.Sprintf(`(CASE substr(UPPER(%s),1,3)
		WHEN 'JAN' THEN '01' WHEN 'FEB' THEN '02' WHEN 'MAR' THEN '03' WHEN 'APR' THEN '04'
		WHEN 'MAY' THEN '05' WHEN 'JUN' THEN '06' WHEN 'JUL' THEN '07' WHEN 'AUG' THEN '08'
		WHEN 'SEP' THEN '09' WHEN 'OCT' THEN '10' WHEN 'NOV' THEN '11' WHEN 'DEC' THEN '12'
		ELSE NULL END) || '-' || substr(%s, 5, 4)`, col, col)
}

func caseUnknown(col string) string {
	return fmt.Sprintf("CASE WHEN %s IS NULL OR %s = '' OR %s = '%s' THEN '%s' ELSE %s END", col, col, col, model.Sentinel, model.Unknown, col)
}

func validateDimension(name string) error {
	if !model.GroupableColumns[name] {
		return apierr.Invalid("unknown dimension field %q", name)
	}
	return nil
}

// SingleDimension groups transactions by one allow-listed column, projecting
// null/empty/sentinel values to "Unknown", ordered by count descending and
// ties broken by dim1 ascending. dim1="town" is the one exception: town_stats
// (the fast-path table SingleDimensionFast reads) excludes sentinel town
// rows entirely rather than projecting them to Unknown, so the slow path
// excludes them too here — otherwise the two paths would disagree on both
// the row set and Total whenever a request is forced onto the slow path
// (e.g. an explicit empty filters={}).
func SingleDimension(ctx context.Context, s *store.Store, dim1 string, filter query.Filter) (*CrossTabResult, error) {
	if err := validateDimension(dim1); err != nil {
		return nil, err
	}

	where, args := filter.WhereClause()
	selectExpr := caseUnknown(dim1)
	if dim1 == "town" {
		selectExpr = dim1
		where = andClause(where, fmt.Sprintf("town != '%s'", model.Sentinel))
	}
	sql := fmt.Sprintf(
		"SELECT %s AS dim1, COUNT(*) AS count FROM transactions%s GROUP BY dim1 ORDER BY count DESC, dim1 ASC",
		selectExpr, whereSuffix(where),
	)

	stmt, err := s.Prepare(ctx, sql)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer stmt.Close()

	rows, err := stmt.All(ctx, args...)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	result := &CrossTabResult{Dimensions: []string{dim1}}
	var total int64
	for _, r := range rows {
		count := toInt64(r["count"])
		total += count
		d1 := toString(r["dim1"])
		result.Data = append(result.Data, CrossTabRow{Dim1: d1, Count: count})
		result.ChartData = append(result.ChartData, ChartPoint{Name: d1, Value: count})
	}
	result.Total = total
	return result, nil
}

// fastStatsTables maps the single-dimension fields PRECOMP materializes a
// dedicated stats table for to that table's name and column shape.
var fastStatsTables = map[string]struct{ table, valueCol, countCol string }{
	"property_type":    {"property_type_stats", "propertyType", "count"},
	"transaction_type": {"transaction_type_stats", "transactionType", "count"},
	"town":             {"town_stats", "town", "count"},
}

// SingleDimensionFast reads one of the precomputed single-column stats
// tables directly — only valid when SelectPath chose FastPath (no filters)
// for a dimension PRECOMP materializes a table for.
func SingleDimensionFast(ctx context.Context, s *store.Store, dim1 string) (*CrossTabResult, error) {
	shape, ok := fastStatsTables[dim1]
	if !ok {
		return nil, apierr.Internal(fmt.Errorf("no fast-path table for dimension %q", dim1))
	}

	sqlText := fmt.Sprintf(
		"SELECT %s AS dim1, %s AS count FROM %s ORDER BY %s DESC, dim1 ASC",
		shape.valueCol, shape.countCol, shape.table, shape.countCol,
	)
	stmt, err := s.Prepare(ctx, sqlText)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer stmt.Close()

	rows, err := stmt.All(ctx)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	result := &CrossTabResult{Dimensions: []string{dim1}}
	var total int64
	for _, r := range rows {
		count := toInt64(r["count"])
		total += count
		d1 := toString(r["dim1"])
		result.Data = append(result.Data, CrossTabRow{Dim1: d1, Count: count})
		result.ChartData = append(result.ChartData, ChartPoint{Name: d1, Value: count})
	}
	result.Total = total
	return result, nil
}

// TwoDimension groups transactions by two allow-listed columns, ordered by
// count descending and ties broken lexicographically by (dim1, dim2).
func TwoDimension(ctx context.Context, s *store.Store, dim1, dim2 string, filter query.Filter) (*CrossTabResult, error) {
	if err := validateDimension(dim1); err != nil {
		return nil, err
	}
	if err := validateDimension(dim2); err != nil {
		return nil, err
	}

	where, args := filter.WhereClause()
	sqlText := fmt.Sprintf(
		"SELECT %s AS dim1, %s AS dim2, COUNT(*) AS count FROM transactions%s GROUP BY dim1, dim2 ORDER BY count DESC, dim1 ASC, dim2 ASC",
		caseUnknown(dim1), caseUnknown(dim2), whereSuffix(where),
	)

	stmt, err := s.Prepare(ctx, sqlText)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer stmt.Close()

	rows, err := stmt.All(ctx, args...)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	result := &CrossTabResult{Dimensions: []string{dim1, dim2}, ChartData: []ChartPoint{}}
	var total int64
	for _, r := range rows {
		count := toInt64(r["count"])
		total += count
		result.Data = append(result.Data, CrossTabRow{
			Dim1:  toString(r["dim1"]),
			Dim2:  toString(r["dim2"]),
			Count: count,
		})
	}
	result.Total = total
	return result, nil
}

// andClause conjoins an extra condition onto an existing (possibly empty)
// WHERE fragment.
func andClause(where, extra string) string {
	if where == "" {
		return extra
	}
	return where + " AND " + extra
}

func whereSuffix(where string) string {
	if where == "" {
		return ""
	}
	return " WHERE " + where
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}
