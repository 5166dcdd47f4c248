package agg

import (
	"context"
	"testing"

	"github.com/cea-insights/analytics-engine/internal/query"
)

func TestBuildInsights_FixtureScenario(t *testing.T) {
	s := seedStore(t, threeRowFixture())

	insights, err := BuildInsights(context.Background(), s, query.Filter{})
	if err != nil {
		t.Fatalf("BuildInsights: %v", err)
	}

	if insights.Summary.Total != 3 {
		t.Errorf("Summary.Total = %d, want 3", insights.Summary.Total)
	}
	if insights.Summary.DateRangeFirst != "JAN-2024" || insights.Summary.DateRangeLast != "FEB-2024" {
		t.Errorf("date range = (%q, %q), want (JAN-2024, FEB-2024)", insights.Summary.DateRangeFirst, insights.Summary.DateRangeLast)
	}
	if len(insights.Distributions.Represented) != 2 {
		t.Errorf("Represented distribution = %v, want 2 buckets", insights.Distributions.Represented)
	}
}

func TestBuildInsights_DateRangeIsChronologicalNotLexicographic(t *testing.T) {
	// "APR-2024" sorts before "JAN-2023" lexicographically despite being
	// the chronologically later month; dateRange must not be fooled by it.
	s := seedStore(t, []row{
		{regNum: "A", date: "JAN-2023"},
		{regNum: "B", date: "APR-2024"},
	})

	insights, err := BuildInsights(context.Background(), s, query.Filter{})
	if err != nil {
		t.Fatalf("BuildInsights: %v", err)
	}
	if insights.Summary.DateRangeFirst != "JAN-2023" {
		t.Errorf("DateRangeFirst = %q, want JAN-2023", insights.Summary.DateRangeFirst)
	}
	if insights.Summary.DateRangeLast != "APR-2024" {
		t.Errorf("DateRangeLast = %q, want APR-2024", insights.Summary.DateRangeLast)
	}
}

func TestYearlyGrowth_FewerThanTwoYears(t *testing.T) {
	got := yearlyGrowth([]SeriesPoint{{Period: "2024-01", Count: 5}})
	if got != "0%" {
		t.Errorf("yearlyGrowth single year = %q, want 0%%", got)
	}
}

func TestYearlyGrowth_ZeroPriorYear(t *testing.T) {
	got := yearlyGrowth([]SeriesPoint{
		{Period: "2023-01", Count: 0},
		{Period: "2024-01", Count: 10},
	})
	if got != "0%" {
		t.Errorf("yearlyGrowth zero denominator = %q, want 0%%", got)
	}
}

func TestYearlyGrowth_ComputesPercentage(t *testing.T) {
	got := yearlyGrowth([]SeriesPoint{
		{Period: "2023-01", Count: 100},
		{Period: "2024-01", Count: 150},
	})
	if got != "50.0%" {
		t.Errorf("yearlyGrowth = %q, want 50.0%%", got)
	}
}

func TestPercentage_ZeroDenominator(t *testing.T) {
	if got := percentage(5, 0, 1); got != 0 {
		t.Errorf("percentage with zero total = %v, want 0", got)
	}
}

func TestPercentage_RoundsToDecimals(t *testing.T) {
	if got := percentage(1, 3, 1); got != 33.3 {
		t.Errorf("percentage(1,3,1) = %v, want 33.3", got)
	}
	if got := percentage(2, 3, 2); got != 66.67 {
		t.Errorf("percentage(2,3,2) = %v, want 66.67", got)
	}
}

func TestMonthlyAverage(t *testing.T) {
	got := monthlyAverage([]SeriesPoint{{Count: 2}, {Count: 1}, {Count: 3}})
	if got != 2 {
		t.Errorf("monthlyAverage = %d, want 2", got)
	}
}
