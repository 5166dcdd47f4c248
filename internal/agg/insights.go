package agg

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cea-insights/analytics-engine/internal/apierr"
	"github.com/cea-insights/analytics-engine/internal/query"
	"github.com/cea-insights/analytics-engine/internal/store"
)

// Distribution is one categorical bucket with its share of the post-filter
// total, rounded to one decimal.
type Distribution struct {
	Value      string  `json:"value"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Insights is the body of /api/datasets/{id}/insights.
type Insights struct {
	Summary struct {
		Total          int64  `json:"total"`
		DateRangeFirst string `json:"dateRangeFirst"`
		DateRangeLast  string `json:"dateRangeLast"`
	} `json:"summary"`
	Trends struct {
		MonthlyAverage int64  `json:"monthlyAverage"`
		YearlyGrowth   string `json:"yearlyGrowth"`
	} `json:"trends"`
	Distributions struct {
		PropertyType    []Distribution `json:"propertyType"`
		TransactionType []Distribution `json:"transactionType"`
		Represented     []Distribution `json:"represented"`
	} `json:"distributions"`
}

// BuildInsights composes the market-insights response: overall total, the
// chronologically first/last non-sentinel transaction_date observed (in
// original MMM-YYYY form), distributions over the three closed-set
// dimensions, the monthly average of the plain time-series counts, and the
// year-over-year growth rate of the final two observed years.
func BuildInsights(ctx context.Context, s *store.Store, filter query.Filter) (*Insights, error) {
	where, args := filter.WhereClause()

	total, err := filteredTotal(ctx, s, where, args)
	if err != nil {
		return nil, err
	}

	first, last, err := dateRange(ctx, s, where, args)
	if err != nil {
		return nil, err
	}

	insights := &Insights{}
	insights.Summary.Total = total
	insights.Summary.DateRangeFirst = first
	insights.Summary.DateRangeLast = last

	for dim, dst := range map[string]*[]Distribution{
		"property_type":    &insights.Distributions.PropertyType,
		"transaction_type": &insights.Distributions.TransactionType,
		"represented":      &insights.Distributions.Represented,
	} {
		dist, err := distributionFor(ctx, s, dim, where, args, total)
		if err != nil {
			return nil, err
		}
		*dst = dist
	}

	series, err := TimeSeries(ctx, s, PeriodMonth, "", filter)
	if err != nil {
		return nil, err
	}
	insights.Trends.MonthlyAverage = monthlyAverage(series.Series)
	insights.Trends.YearlyGrowth = yearlyGrowth(series.Series)

	return insights, nil
}

func filteredTotal(ctx context.Context, s *store.Store, where string, args []any) (int64, error) {
	sqlText := fmt.Sprintf("SELECT COUNT(*) AS n FROM transactions%s", whereSuffix(where))
	stmt, err := s.Prepare(ctx, sqlText)
	if err != nil {
		return 0, apierr.Internal(err)
	}
	defer stmt.Close()

	row, ok, err := stmt.Get(ctx, args...)
	if err != nil {
		return 0, apierr.Internal(err)
	}
	if !ok {
		return 0, nil
	}
	return toInt64(row["n"]), nil
}

// dateRange returns the first/last non-sentinel transaction_date in
// ORIGINAL MMM-YYYY form, ordered chronologically (via
// the YYYY-MM normalization), not by raw-string comparison — MMM-YYYY
// ordering does not match chronological order (e.g. "APR-2024" < "JAN-2023"
// alphabetically despite being the later month).
func dateRange(ctx context.Context, s *store.Store, where string, args []any) (first, last string, err error) {
	clause := "(" + normalizedPeriodSQL("transaction_date") + ") IS NOT NULL"
	if where != "" {
		clause = where + " AND " + clause
	}
	np := normalizedPeriodSQL("transaction_date")

	firstDate, err := edgeDate(ctx, s, clause, args, np, "ASC")
	if err != nil {
		return "", "", err
	}
	lastDate, err := edgeDate(ctx, s, clause, args, np, "DESC")
	if err != nil {
		return "", "", err
	}
	return firstDate, lastDate, nil
}

func edgeDate(ctx context.Context, s *store.Store, clause string, args []any, normalizedPeriod, direction string) (string, error) {
	sqlText := fmt.Sprintf(
		"SELECT transaction_date AS date FROM transactions WHERE %s ORDER BY %s %s LIMIT 1",
		clause, normalizedPeriod, direction,
	)
	stmt, err := s.Prepare(ctx, sqlText)
	if err != nil {
		return "", apierr.Internal(err)
	}
	defer stmt.Close()

	row, ok, err := stmt.Get(ctx, args...)
	if err != nil {
		return "", apierr.Internal(err)
	}
	if !ok {
		return "", nil
	}
	return toString(row["date"]), nil
}

func distributionFor(ctx context.Context, s *store.Store, dim, where string, args []any, total int64) ([]Distribution, error) {
	sqlText := fmt.Sprintf(
		"SELECT %s AS value, COUNT(*) AS count FROM transactions%s GROUP BY value ORDER BY count DESC, value ASC",
		caseUnknown(dim), whereSuffix(where),
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

	out := make([]Distribution, 0, len(rows))
	for _, r := range rows {
		count := toInt64(r["count"])
		out = append(out, Distribution{
			Value:      toString(r["value"]),
			Count:      count,
			Percentage: percentage(count, total, 1),
		})
	}
	return out, nil
}

// percentage computes count/total*100 rounded to the given decimal places.
// A zero denominator yields 0, not NaN/Inf.
func percentage(count, total int64, decimals int) float64 {
	if total == 0 {
		return 0
	}
	factor := math.Pow(10, float64(decimals))
	return math.Round(float64(count)/float64(total)*100*factor) / factor
}

func monthlyAverage(series []SeriesPoint) int64 {
	if len(series) == 0 {
		return 0
	}
	var sum int64
	for _, p := range series {
		sum += p.Count
	}
	return int64(math.Round(float64(sum) / float64(len(series))))
}

// yearlyGrowth compares the final two observed calendar years' totals. With
// fewer than two distinct years, or a zero prior-year denominator, it
// reports "0%".
func yearlyGrowth(series []SeriesPoint) string {
	byYear := map[string]int64{}
	for _, p := range series {
		if len(p.Period) < 4 {
			continue
		}
		byYear[p.Period[:4]] += p.Count
	}
	if len(byYear) < 2 {
		return "0%"
	}

	years := make([]string, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Strings(years)

	last := byYear[years[len(years)-1]]
	prev := byYear[years[len(years)-2]]
	if prev == 0 {
		return "0%"
	}

	growth := float64(last-prev) / float64(prev) * 100
	rounded := math.Round(growth*10) / 10
	return fmt.Sprintf("%.1f%%", rounded)
}
