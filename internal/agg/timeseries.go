package agg

import (
	"context"
	"fmt"
	"sort"

	"github.com/cea-insights/analytics-engine/internal/apierr"
	"github.com/cea-insights/analytics-engine/internal/query"
	"github.com/cea-insights/analytics-engine/internal/store"
)

// SeriesPoint is one row of a time-series: a period bucket and its count,
// optionally broken down by a groupBy value.
type SeriesPoint struct {
	Period  string `json:"period"`
	Group   string `json:"group,omitempty"`
	Count   int64  `json:"count"`
}

// TimeSeriesResult is the body of /api/datasets/{id}/timeseries.
type TimeSeriesResult struct {
	Period    string        `json:"period"`
	GroupBy   string        `json:"groupBy,omitempty"`
	Series    []SeriesPoint `json:"series"`
	ChartData []SeriesPoint `json:"chartData"`
	Total     int64         `json:"total"`
}

// chartClipWindow is the number of trailing periods a "chart" view clips
// the full series to.
const chartClipWindow = 24

// TimeSeries buckets non-sentinel transaction_date values into month or
// year periods, optionally grouped by an allow-listed categorical column.
// Output is ascending by period, which is safe under lexicographic
// comparison once dates are normalized to YYYY-MM/YYYY.
func TimeSeries(ctx context.Context, s *store.Store, period Period, groupBy string, filter query.Filter) (*TimeSeriesResult, error) {
	if groupBy != "" {
		if err := validateDimension(groupBy); err != nil {
			return nil, err
		}
	}

	where, args := filter.WhereClause()
	selectCols := "transaction_date AS date"
	if groupBy != "" {
		selectCols += ", " + caseUnknown(groupBy) + " AS groupval"
	}
	sqlText := fmt.Sprintf("SELECT %s FROM transactions%s", selectCols, whereSuffix(where))

	stmt, err := s.Prepare(ctx, sqlText)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer stmt.Close()

	rows, err := stmt.All(ctx, args...)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	type key struct{ period, group string }
	counts := make(map[key]int64)
	var total int64

	for _, r := range rows {
		date := toString(r["date"])
		bucket, ok := Bucket(period, date)
		if !ok {
			continue
		}
		group := ""
		if groupBy != "" {
			group = Unknown(toString(r["groupval"]))
		}
		counts[key{bucket, group}]++
		total++
	}

	series := make([]SeriesPoint, 0, len(counts))
	for k, count := range counts {
		series = append(series, SeriesPoint{Period: k.period, Group: k.group, Count: count})
	}
	sort.Slice(series, func(i, j int) bool {
		if series[i].Period != series[j].Period {
			return series[i].Period < series[j].Period
		}
		return series[i].Group < series[j].Group
	})

	result := &TimeSeriesResult{
		Period:  string(period),
		GroupBy: groupBy,
		Series:  series,
		Total:   total,
	}
	result.ChartData = clipTrailing(series, chartClipWindow)
	return result, nil
}

// TimeSeriesFast reads the precomputed monthly_stats/monthly_stats_grouped
// tables built by PRECOMP — only valid when SelectPath chose FastPath (no
// filters). monthly_stats_grouped's supplemental (period, group_column,
// group_value, count) shape (§9, adopted in the grouped-monthly-stats open
// question) lets any allow-listed groupBy be served without touching
// transactions; the plain (ungrouped) case sums across monthly_stats'
// (property_type, transaction_type) cross-tab per period.
func TimeSeriesFast(ctx context.Context, s *store.Store, period Period, groupBy string) (*TimeSeriesResult, error) {
	periodExpr := "period"
	if period == PeriodYear {
		periodExpr = "substr(period, 1, 4)"
	}

	var sqlText string
	args := []any{}
	if groupBy == "" {
		sqlText = fmt.Sprintf(
			"SELECT %s AS period, SUM(count) AS count FROM monthly_stats GROUP BY %s ORDER BY period",
			periodExpr, periodExpr,
		)
	} else {
		if err := validateDimension(groupBy); err != nil {
			return nil, err
		}
		sqlText = fmt.Sprintf(`
			SELECT %s AS period, group_value AS groupval, SUM(count) AS count
			FROM monthly_stats_grouped
			WHERE group_column = ?
			GROUP BY %s, groupval
			ORDER BY period, groupval`, periodExpr, periodExpr)
		args = append(args, groupBy)
	}

	stmt, err := s.Prepare(ctx, sqlText)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer stmt.Close()

	rows, err := stmt.All(ctx, args...)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	series := make([]SeriesPoint, 0, len(rows))
	var total int64
	for _, r := range rows {
		count := toInt64(r["count"])
		total += count
		group := ""
		if groupBy != "" {
			group = toString(r["groupval"])
		}
		series = append(series, SeriesPoint{Period: toString(r["period"]), Group: group, Count: count})
	}

	result := &TimeSeriesResult{
		Period:  string(period),
		GroupBy: groupBy,
		Series:  series,
		Total:   total,
	}
	result.ChartData = clipTrailing(series, chartClipWindow)
	return result, nil
}

// clipTrailing returns the trailing n periods of an ascending-by-period
// series. When groupBy is set, multiple groups share the same trailing
// window of distinct periods, not the trailing n rows.
func clipTrailing(series []SeriesPoint, n int) []SeriesPoint {
	periods := make([]string, 0, len(series))
	seen := make(map[string]bool)
	for _, p := range series {
		if !seen[p.Period] {
			seen[p.Period] = true
			periods = append(periods, p.Period)
		}
	}
	if len(periods) <= n {
		return series
	}
	cutoff := periods[len(periods)-n]
	var out []SeriesPoint
	for _, p := range series {
		if p.Period >= cutoff {
			out = append(out, p)
		}
	}
	return out
}
