package agg

import (
	"context"
	"fmt"
	"sort"

	"github.com/cea-insights/analytics-engine/internal/apierr"
	"github.com/cea-insights/analytics-engine/internal/model"
	"github.com/cea-insights/analytics-engine/internal/store"
)

// AgentProfile is the body of /api/datasets/{id}/agents/{regNum}.
type AgentProfile struct {
	Agent struct {
		RegNum            string `json:"regNum"`
		Name              string `json:"name"`
		TotalTransactions int64  `json:"totalTransactions"`
	} `json:"agent"`
	DateRange struct {
		First string `json:"first"`
		Last  string `json:"last"`
	} `json:"dateRange"`
	PropertyTypes    []Distribution `json:"propertyTypes"`
	TransactionTypes []Distribution `json:"transactionTypes"`
	Representation   []Distribution `json:"representation"`
	TopTowns         []Distribution `json:"topTowns"`
	MonthlyActivity  []SeriesPoint  `json:"monthlyActivity"`
}

const topTownsLimit = 10

// Profile builds the full per-agent breakdown: basic totals, date range,
// the three closed-set distributions, top-10 towns (sentinel excluded),
// and the complete monthly time series for that agent alone. Returns a
// not-found error if the registration number has no transactions.
func Profile(ctx context.Context, s *store.Store, regNum string) (*AgentProfile, error) {
	where := "salesperson_reg_num = ?"
	args := []any{regNum}

	total, err := filteredTotal(ctx, s, where, args)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, apierr.NotFound(fmt.Sprintf("no agent with registration number %q", regNum))
	}

	name, err := agentName(ctx, s, regNum)
	if err != nil {
		return nil, err
	}

	first, last, err := dateRange(ctx, s, where, args)
	if err != nil {
		return nil, err
	}

	profile := &AgentProfile{}
	profile.Agent.RegNum = regNum
	profile.Agent.Name = name
	profile.Agent.TotalTransactions = total
	profile.DateRange.First = first
	profile.DateRange.Last = last

	propertyTypes, err := distributionFor(ctx, s, "property_type", where, args, total)
	if err != nil {
		return nil, err
	}
	profile.PropertyTypes = propertyTypes

	transactionTypes, err := distributionFor(ctx, s, "transaction_type", where, args, total)
	if err != nil {
		return nil, err
	}
	profile.TransactionTypes = transactionTypes

	represented, err := distributionFor(ctx, s, "represented", where, args, total)
	if err != nil {
		return nil, err
	}
	profile.Representation = represented

	topTowns, err := agentTopTowns(ctx, s, regNum, total)
	if err != nil {
		return nil, err
	}
	profile.TopTowns = topTowns

	monthly, err := agentMonthlyActivity(ctx, s, regNum)
	if err != nil {
		return nil, err
	}
	profile.MonthlyActivity = monthly

	return profile, nil
}

func agentName(ctx context.Context, s *store.Store, regNum string) (string, error) {
	stmt, err := s.Prepare(ctx, "SELECT salesperson_name AS name FROM transactions WHERE salesperson_reg_num = ? LIMIT 1")
	if err != nil {
		return "", apierr.Internal(err)
	}
	defer stmt.Close()

	row, ok, err := stmt.Get(ctx, regNum)
	if err != nil {
		return "", apierr.Internal(err)
	}
	if !ok {
		return "", nil
	}
	return toString(row["name"]), nil
}

// agentTopTowns returns the agent's top-10 towns by count, sentinel `-`
// excluded, each carrying its percentage of the agent's total.
func agentTopTowns(ctx context.Context, s *store.Store, regNum string, total int64) ([]Distribution, error) {
	sqlText := fmt.Sprintf(`
		SELECT town AS value, COUNT(*) AS count
		FROM transactions
		WHERE salesperson_reg_num = ? AND town != '%s'
		GROUP BY town
		ORDER BY count DESC, town ASC
		LIMIT %d`, model.Sentinel, topTownsLimit)

	stmt, err := s.Prepare(ctx, sqlText)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer stmt.Close()

	rows, err := stmt.All(ctx, regNum)
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

// agentMonthlyActivity is the complete (unclipped) monthly series scoped to
// one agent — the per-agent equivalent of TimeSeries, but filtered on
// salesperson_reg_num rather than the closed filter-key set.
func agentMonthlyActivity(ctx context.Context, s *store.Store, regNum string) ([]SeriesPoint, error) {
	stmt, err := s.Prepare(ctx, "SELECT transaction_date AS date FROM transactions WHERE salesperson_reg_num = ?")
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer stmt.Close()

	rows, err := stmt.All(ctx, regNum)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	counts := make(map[string]int64)
	for _, r := range rows {
		bucket, ok := MonthPeriod(toString(r["date"]))
		if !ok {
			continue
		}
		counts[bucket]++
	}

	series := make([]SeriesPoint, 0, len(counts))
	for period, count := range counts {
		series = append(series, SeriesPoint{Period: period, Count: count})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Period < series[j].Period })
	return series, nil
}
