package agg

import (
	"context"
	"fmt"
	"strings"

	"github.com/cea-insights/analytics-engine/internal/apierr"
	"github.com/cea-insights/analytics-engine/internal/model"
	"github.com/cea-insights/analytics-engine/internal/query"
	"github.com/cea-insights/analytics-engine/internal/store"
)

// TopValue is a {value, count} pair that marshals as a 2-element JSON array
// (["HDB", 2]), matching the wire shape the agents/top endpoint returns.
type TopValue struct {
	Value string
	Count int64
}

// MarshalJSON renders TopValue as a 2-element array.
func (t TopValue) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%q,%d]", t.Value, t.Count)), nil
}

// AgentSummary is one row of the agents/top roll-up.
type AgentSummary struct {
	RegNum            string    `json:"regNum"`
	Name              string    `json:"name"`
	TotalTransactions int64     `json:"totalTransactions"`
	LastTransaction   string    `json:"lastTransaction"`
	TopPropertyType   *TopValue `json:"topPropertyType,omitempty"`
	TopTransactionType *TopValue `json:"topTransactionType,omitempty"`
	TopRepresented    *TopValue `json:"topRepresented,omitempty"`
	TopTown           *TopValue `json:"topTown,omitempty"`
}

// TopAgentsStatistics summarizes market concentration among the returned
// agents.
type TopAgentsStatistics struct {
	TopAgentMarketShare float64 `json:"topAgentMarketShare"`
	Top10MarketShare    float64 `json:"top10MarketShare"`
}

// TopAgentsResult is the body of /api/datasets/{id}/agents/top.
type TopAgentsResult struct {
	Total      int64                `json:"total"`
	Showing    int                  `json:"showing"`
	Agents     []AgentSummary       `json:"agents"`
	Statistics TopAgentsStatistics  `json:"statistics"`
}

type baseAgent struct {
	RegNum string
	Name   string
	Total  int64
	Last   string
}

// TopAgentsSlow composes the top-agents roll-up directly against
// transactions, honoring filters and an optional case-insensitive substring
// search over name or registration number.
func TopAgentsSlow(ctx context.Context, s *store.Store, limit int, filter query.Filter, search string) (*TopAgentsResult, error) {
	clauses := []string{
		"salesperson_reg_num != ''",
		fmt.Sprintf("salesperson_reg_num != '%s'", model.Sentinel),
	}
	where, args := filter.WhereClause()
	if where != "" {
		clauses = append(clauses, where)
	}
	if search != "" {
		clauses = append(clauses, "(LOWER(salesperson_name) LIKE ? OR LOWER(salesperson_reg_num) LIKE ?)")
		pattern := "%" + strings.ToLower(search) + "%"
		args = append(args, pattern, pattern)
	}
	whereAll := strings.Join(clauses, " AND ")

	total, err := distinctAgentCount(ctx, s, whereAll, args)
	if err != nil {
		return nil, err
	}

	sqlText := fmt.Sprintf(`
		SELECT salesperson_reg_num AS regnum, MAX(salesperson_name) AS name,
		       COUNT(*) AS total, MAX(%s) AS last
		FROM transactions
		WHERE %s
		GROUP BY regnum
		ORDER BY total DESC, regnum ASC
		LIMIT ?`,
		normalizedPeriodSQL("transaction_date"), whereAll,
	)
	stmt, err := s.Prepare(ctx, sqlText)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer stmt.Close()

	rows, err := stmt.All(ctx, append(args, limit)...)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	bases := make([]baseAgent, 0, len(rows))
	for _, r := range rows {
		bases = append(bases, baseAgent{
			RegNum: toString(r["regnum"]),
			Name:   toString(r["name"]),
			Total:  toInt64(r["total"]),
			Last:   toString(r["last"]),
		})
	}

	return assembleTopAgents(ctx, s, bases, total)
}

// TopAgentsFast reads the precomputed top_agents table; only valid when
// SelectPath chose FastPath (no filters, no search).
func TopAgentsFast(ctx context.Context, s *store.Store, limit int) (*TopAgentsResult, error) {
	countStmt, err := s.Prepare(ctx, "SELECT COUNT(*) AS n FROM top_agents")
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer countStmt.Close()
	countRow, _, err := countStmt.Get(ctx)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	total := toInt64(countRow["n"])

	stmt, err := s.Prepare(ctx, `
		SELECT regNum, name, totalTransactions, lastTransaction
		FROM top_agents
		ORDER BY totalTransactions DESC, regNum ASC
		LIMIT ?`)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer stmt.Close()

	rows, err := stmt.All(ctx, limit)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	bases := make([]baseAgent, 0, len(rows))
	for _, r := range rows {
		bases = append(bases, baseAgent{
			RegNum: toString(r["regNum"]),
			Name:   toString(r["name"]),
			Total:  toInt64(r["totalTransactions"]),
			Last:   toString(r["lastTransaction"]),
		})
	}

	return assembleTopAgents(ctx, s, bases, total)
}

// assembleTopAgents runs the four batched per-agent top-value queries —
// exactly one query each for topPropertyType/topTransactionType/
// topRepresented/topTown across all selected agents at once, using a
// partitioned-ranking window function — then joins in memory on regNum.
// Per-agent loops are never issued, the N+1 pattern the design explicitly
// forbids.
func assembleTopAgents(ctx context.Context, s *store.Store, bases []baseAgent, total int64) (*TopAgentsResult, error) {
	regNums := make([]string, len(bases))
	for i, b := range bases {
		regNums[i] = b.RegNum
	}

	propertyTypes, err := topValuePerAgent(ctx, s, regNums, "property_type", false)
	if err != nil {
		return nil, err
	}
	transactionTypes, err := topValuePerAgent(ctx, s, regNums, "transaction_type", false)
	if err != nil {
		return nil, err
	}
	represented, err := topValuePerAgent(ctx, s, regNums, "represented", false)
	if err != nil {
		return nil, err
	}
	towns, err := topValuePerAgent(ctx, s, regNums, "town", true)
	if err != nil {
		return nil, err
	}

	agents := make([]AgentSummary, len(bases))
	var sumTopL, sumTop10 int64
	for i, b := range bases {
		agents[i] = AgentSummary{
			RegNum:             b.RegNum,
			Name:               b.Name,
			TotalTransactions:  b.Total,
			LastTransaction:    b.Last,
			TopPropertyType:    refOrNil(propertyTypes, b.RegNum),
			TopTransactionType: refOrNil(transactionTypes, b.RegNum),
			TopRepresented:     refOrNil(represented, b.RegNum),
			TopTown:            refOrNil(towns, b.RegNum),
		}
		sumTopL += b.Total
		if i < 10 {
			sumTop10 += b.Total
		}
	}

	var topAgentShare, top10Share float64
	if sumTopL > 0 {
		if len(bases) > 0 {
			topAgentShare = percentage(bases[0].Total, sumTopL, 1)
		}
		top10Share = percentage(sumTop10, sumTopL, 1)
	}

	return &TopAgentsResult{
		Total:   total,
		Showing: len(agents),
		Agents:  agents,
		Statistics: TopAgentsStatistics{
			TopAgentMarketShare: topAgentShare,
			Top10MarketShare:    top10Share,
		},
	}, nil
}

func refOrNil(m map[string]TopValue, regNum string) *TopValue {
	v, ok := m[regNum]
	if !ok {
		return nil
	}
	return &v
}

func distinctAgentCount(ctx context.Context, s *store.Store, where string, args []any) (int64, error) {
	sqlText := fmt.Sprintf("SELECT COUNT(DISTINCT salesperson_reg_num) AS n FROM transactions WHERE %s", where)
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

// topValuePerAgent returns, for each of regNums, the single highest-count
// value of column among that agent's rows — computed in one batched query
// via ROW_NUMBER() partitioned by agent, never per-agent. Ties on count
// resolve by value ascending.
func topValuePerAgent(ctx context.Context, s *store.Store, regNums []string, column string, excludeSentinel bool) (map[string]TopValue, error) {
	out := map[string]TopValue{}
	if len(regNums) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(regNums))
	args := make([]any, len(regNums))
	for i, r := range regNums {
		placeholders[i] = "?"
		args[i] = r
	}

	exclude := ""
	if excludeSentinel {
		exclude = fmt.Sprintf(" AND %s != '%s'", column, model.Sentinel)
	}

	sqlText := fmt.Sprintf(`
		WITH grouped AS (
			SELECT salesperson_reg_num AS regnum, %s AS value, COUNT(*) AS cnt
			FROM transactions
			WHERE salesperson_reg_num IN (%s)%s
			GROUP BY regnum, value
		), ranked AS (
			SELECT regnum, value, cnt,
			       ROW_NUMBER() OVER (PARTITION BY regnum ORDER BY cnt DESC, value ASC) AS rn
			FROM grouped
		)
		SELECT regnum, value, cnt FROM ranked WHERE rn = 1`,
		column, strings.Join(placeholders, ","), exclude,
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

	for _, r := range rows {
		out[toString(r["regnum"])] = TopValue{Value: toString(r["value"]), Count: toInt64(r["cnt"])}
	}
	return out, nil
}
