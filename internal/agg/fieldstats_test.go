package agg

import (
	"context"
	"testing"

	"github.com/cea-insights/analytics-engine/internal/query"
)

func TestStats_FixtureScenario(t *testing.T) {
	s := seedStore(t, threeRowFixture())
	defer s.Close()

	got, err := Stats(context.Background(), s, "property_type", 100, query.Filter{})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if got.Total != 3 {
		t.Errorf("Total = %d, want 3", got.Total)
	}
	if got.UniqueValues != 2 {
		t.Errorf("UniqueValues = %d, want 2 (HDB, CONDO)", got.UniqueValues)
	}
	if len(got.Stats) != 2 {
		t.Errorf("Stats has %d entries, want 2", len(got.Stats))
	}
}

func TestStats_LimitCapsReturnedEntriesButNotUniqueValues(t *testing.T) {
	rows := []row{
		{regNum: "A", propertyType: "HDB", date: "JAN-2024"},
		{regNum: "A", propertyType: "CONDO", date: "JAN-2024"},
		{regNum: "A", propertyType: "LANDED", date: "JAN-2024"},
	}
	s := seedStore(t, rows)
	defer s.Close()

	got, err := Stats(context.Background(), s, "property_type", 1, query.Filter{})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if got.UniqueValues != 3 {
		t.Errorf("UniqueValues = %d, want 3", got.UniqueValues)
	}
	if len(got.Stats) != 1 {
		t.Errorf("Stats has %d entries, want 1 (limit)", len(got.Stats))
	}
}

func TestStats_InvalidLimitRejected(t *testing.T) {
	s := seedStore(t, threeRowFixture())
	defer s.Close()

	if _, err := Stats(context.Background(), s, "property_type", 0, query.Filter{}); err == nil {
		t.Fatal("expected error for non-positive limit")
	}
}
