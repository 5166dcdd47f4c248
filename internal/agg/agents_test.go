package agg

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cea-insights/analytics-engine/internal/query"
)

func TestTopAgentsSlow_FixtureScenario(t *testing.T) {
	s := seedStore(t, threeRowFixture())

	result, err := TopAgentsSlow(context.Background(), s, 10, query.Filter{}, "")
	if err != nil {
		t.Fatalf("TopAgentsSlow: %v", err)
	}

	if len(result.Agents) != 2 {
		t.Fatalf("Agents = %v, want 2", result.Agents)
	}
	if result.Agents[0].RegNum != "A" || result.Agents[0].TotalTransactions != 2 {
		t.Errorf("Agents[0] = %+v, want regNum=A total=2", result.Agents[0])
	}
	if result.Agents[1].RegNum != "B" {
		t.Errorf("Agents[1].RegNum = %q, want B", result.Agents[1].RegNum)
	}
	if result.Agents[0].TopPropertyType == nil || result.Agents[0].TopPropertyType.Value != "HDB" {
		t.Errorf("Agents[0].TopPropertyType = %v, want HDB", result.Agents[0].TopPropertyType)
	}
}

func TestTopValue_MarshalsAsArray(t *testing.T) {
	v := TopValue{Value: "HDB", Count: 2}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `["HDB",2]` {
		t.Errorf("Marshal = %s, want [\"HDB\",2]", b)
	}
}

func TestTopAgentsSlow_RankingStableOnTies(t *testing.T) {
	// Two agents tied on count: order must be regNum ascending, and stable
	// across repeated calls.
	s := seedStore(t, []row{
		{regNum: "Z", propertyType: "HDB", date: "JAN-2024"},
		{regNum: "A", propertyType: "HDB", date: "JAN-2024"},
	})

	for i := 0; i < 3; i++ {
		result, err := TopAgentsSlow(context.Background(), s, 10, query.Filter{}, "")
		if err != nil {
			t.Fatalf("TopAgentsSlow: %v", err)
		}
		if result.Agents[0].RegNum != "A" || result.Agents[1].RegNum != "Z" {
			t.Fatalf("iteration %d: order = [%s, %s], want [A, Z]", i, result.Agents[0].RegNum, result.Agents[1].RegNum)
		}
	}
}

func TestTopAgentsSlow_SearchFiltersByNameOrRegNum(t *testing.T) {
	s := seedStore(t, []row{
		{regNum: "A", propertyType: "HDB", date: "JAN-2024"},
		{regNum: "B", propertyType: "HDB", date: "JAN-2024"},
	})

	result, err := TopAgentsSlow(context.Background(), s, 10, query.Filter{}, "a")
	if err != nil {
		t.Fatalf("TopAgentsSlow: %v", err)
	}
	if len(result.Agents) != 1 || result.Agents[0].RegNum != "A" {
		t.Fatalf("search 'a' = %v, want only agent A", result.Agents)
	}
}

func TestTopAgentsSlow_MarketShareZeroDenominator(t *testing.T) {
	s := seedStore(t, []row{})

	result, err := TopAgentsSlow(context.Background(), s, 10, query.Filter{}, "")
	if err != nil {
		t.Fatalf("TopAgentsSlow: %v", err)
	}
	if result.Statistics.TopAgentMarketShare != 0 || result.Statistics.Top10MarketShare != 0 {
		t.Errorf("Statistics = %+v, want zero shares for empty dataset", result.Statistics)
	}
}

func TestTopValuePerAgent_ExcludesSentinelTown(t *testing.T) {
	s := seedStore(t, []row{
		{regNum: "A", town: "-", date: "JAN-2024"},
		{regNum: "A", town: "Punggol", date: "JAN-2024"},
	})

	towns, err := topValuePerAgent(context.Background(), s, []string{"A"}, "town", true)
	if err != nil {
		t.Fatalf("topValuePerAgent: %v", err)
	}
	if towns["A"].Value != "Punggol" {
		t.Errorf("top town for A = %+v, want Punggol (sentinel excluded)", towns["A"])
	}
}

func TestTopAgentsFast_ReadsPrecomputedTable(t *testing.T) {
	s := seedStoreWithExtra(t, threeRowFixture(), []string{
		`CREATE TABLE top_agents (regNum TEXT, name TEXT, totalTransactions INTEGER, lastTransaction TEXT)`,
		`INSERT INTO top_agents VALUES ('A', 'Agent A', 2, '2024-02')`,
		`INSERT INTO top_agents VALUES ('B', 'Agent B', 1, '2024-01')`,
	})

	result, err := TopAgentsFast(context.Background(), s, 10)
	if err != nil {
		t.Fatalf("TopAgentsFast: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("Total = %d, want 2", result.Total)
	}
	if len(result.Agents) != 2 || result.Agents[0].RegNum != "A" {
		t.Fatalf("Agents = %v, want [A, B]", result.Agents)
	}
}
