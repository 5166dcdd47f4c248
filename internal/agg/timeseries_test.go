package agg

import (
	"context"
	"testing"

	"github.com/cea-insights/analytics-engine/internal/query"
)

func TestTimeSeries_FixtureScenario(t *testing.T) {
	s := seedStore(t, threeRowFixture())

	result, err := TimeSeries(context.Background(), s, PeriodMonth, "", query.Filter{})
	if err != nil {
		t.Fatalf("TimeSeries: %v", err)
	}

	if len(result.Series) != 2 {
		t.Fatalf("Series = %v, want 2 periods", result.Series)
	}
	if result.Series[0] != (SeriesPoint{Period: "2024-01", Count: 2}) {
		t.Errorf("Series[0] = %+v, want {2024-01 2}", result.Series[0])
	}
	if result.Series[1] != (SeriesPoint{Period: "2024-02", Count: 1}) {
		t.Errorf("Series[1] = %+v, want {2024-02 1}", result.Series[1])
	}
}

func TestTimeSeries_ExcludesSentinelDates(t *testing.T) {
	rows := append(threeRowFixture(), row{regNum: "C", propertyType: "HDB", date: "-"})
	s := seedStore(t, rows)

	result, err := TimeSeries(context.Background(), s, PeriodMonth, "", query.Filter{})
	if err != nil {
		t.Fatalf("TimeSeries: %v", err)
	}
	if result.Total != 3 {
		t.Errorf("Total = %d, want 3 (sentinel-dated row excluded)", result.Total)
	}
}

func TestTimeSeries_AscendingAfterNormalization(t *testing.T) {
	s := seedStore(t, []row{
		{regNum: "A", date: "JAN-2024"},
		{regNum: "B", date: "DEC-2023"},
	})

	result, err := TimeSeries(context.Background(), s, PeriodMonth, "", query.Filter{})
	if err != nil {
		t.Fatalf("TimeSeries: %v", err)
	}
	if len(result.Series) != 2 {
		t.Fatalf("Series = %v, want 2 periods", result.Series)
	}
	if result.Series[0].Period != "2023-12" || result.Series[1].Period != "2024-01" {
		t.Errorf("Series not ascending: %+v", result.Series)
	}
}

func TestTimeSeries_GroupByProducesOneRowPerGroup(t *testing.T) {
	s := seedStore(t, threeRowFixture())

	result, err := TimeSeries(context.Background(), s, PeriodMonth, "represented", query.Filter{})
	if err != nil {
		t.Fatalf("TimeSeries: %v", err)
	}
	if len(result.Series) != 2 {
		t.Fatalf("Series = %v, want 2 (period,group) rows", result.Series)
	}
}

func TestTimeSeries_ChartClipsTrailingWindow(t *testing.T) {
	var rows []row
	for year := 2000; year < 2030; year++ {
		rows = append(rows, row{regNum: "A", date: "JAN-" + itoa(year)})
	}
	s := seedStore(t, rows)

	result, err := TimeSeries(context.Background(), s, PeriodYear, "", query.Filter{})
	if err != nil {
		t.Fatalf("TimeSeries: %v", err)
	}
	if len(result.Series) != 30 {
		t.Fatalf("Series = %d, want 30 full years", len(result.Series))
	}
	if len(result.ChartData) != chartClipWindow {
		t.Errorf("ChartData = %d, want %d", len(result.ChartData), chartClipWindow)
	}
	if result.ChartData[0].Period != "2006" {
		t.Errorf("ChartData[0].Period = %q, want 2006 (trailing 24 of 2000-2029)", result.ChartData[0].Period)
	}
}

func TestTimeSeriesFast_ReadsPrecomputedTable(t *testing.T) {
	s := seedStoreWithExtra(t, threeRowFixture(), []string{
		`CREATE TABLE monthly_stats (period TEXT, property_type TEXT, transaction_type TEXT, count INTEGER)`,
		`INSERT INTO monthly_stats VALUES ('2024-01', 'HDB', '', 1), ('2024-01', 'CONDO', '', 1), ('2024-02', 'HDB', '', 1)`,
	})

	result, err := TimeSeriesFast(context.Background(), s, PeriodMonth, "")
	if err != nil {
		t.Fatalf("TimeSeriesFast: %v", err)
	}
	if result.Total != 3 {
		t.Errorf("Total = %d, want 3", result.Total)
	}
	if len(result.Series) != 2 {
		t.Fatalf("Series = %v, want 2 periods", result.Series)
	}
	if result.Series[0].Period != "2024-01" || result.Series[0].Count != 2 {
		t.Errorf("Series[0] = %+v, want {2024-01 2}", result.Series[0])
	}
}

func TestTimeSeriesFast_GroupByReadsGroupedTable(t *testing.T) {
	s := seedStoreWithExtra(t, threeRowFixture(), []string{
		`CREATE TABLE monthly_stats_grouped (period TEXT, group_column TEXT, group_value TEXT, count INTEGER)`,
		`INSERT INTO monthly_stats_grouped VALUES
			('2024-01', 'represented', 'BUYER', 2),
			('2024-02', 'represented', 'SELLER', 1)`,
	})

	result, err := TimeSeriesFast(context.Background(), s, PeriodMonth, "represented")
	if err != nil {
		t.Fatalf("TimeSeriesFast: %v", err)
	}
	if len(result.Series) != 2 {
		t.Fatalf("Series = %v, want 2 rows", result.Series)
	}
	if result.Series[0].Group != "BUYER" || result.Series[0].Count != 2 {
		t.Errorf("Series[0] = %+v, want {group BUYER count 2}", result.Series[0])
	}
}

// TestTimeSeriesFast_GroupByPassesThroughPrecomputedUnknown exercises the
// fast/slow equivalence contract for sentinel-bearing columns like town: the
// grouped table (built by cmd/precompute) stores group_value already
// Unknown-projected, so the fast path must return it unchanged, matching
// what TimeSeries' caseUnknown projection produces on the slow path —
// never the raw sentinel.
func TestTimeSeriesFast_GroupByPassesThroughPrecomputedUnknown(t *testing.T) {
	s := seedStoreWithExtra(t, threeRowFixture(), []string{
		`CREATE TABLE monthly_stats_grouped (period TEXT, group_column TEXT, group_value TEXT, count INTEGER)`,
		`INSERT INTO monthly_stats_grouped VALUES
			('2024-01', 'town', 'ANG MO KIO', 1),
			('2024-01', 'town', 'Unknown', 1)`,
	})

	result, err := TimeSeriesFast(context.Background(), s, PeriodMonth, "town")
	if err != nil {
		t.Fatalf("TimeSeriesFast: %v", err)
	}

	var sawUnknown, sawRawSentinel bool
	for _, point := range result.Series {
		if point.Group == "Unknown" {
			sawUnknown = true
		}
		if point.Group == "-" {
			sawRawSentinel = true
		}
	}
	if !sawUnknown {
		t.Error("expected a row with group Unknown")
	}
	if sawRawSentinel {
		t.Error("fast path must never surface the raw sentinel value")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
