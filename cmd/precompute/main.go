// Command precompute rebuilds the aggregate tables the server's fast paths
// read: top_agents, monthly_stats (plain and grouped), property_type_stats,
// transaction_type_stats, and town_stats. It is always rebuildable from
// transactions alone, and is meant to run once at data-processing time, not
// at server startup.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/cea-insights/analytics-engine/internal/model"
)

const dbFileName = "cea-transactions.db"

func main() {
	dataDir := flag.String("data", "data/processed", "directory holding cea-transactions.db")
	flag.Parse()

	if err := run(*dataDir); err != nil {
		log.Fatalf("precompute: %v", err)
	}
}

func run(dataDir string) error {
	path := filepath.Join(dataDir, dbFileName)
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(30000)", path))
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}

	if _, err := tx.ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Printf("precompute: rebuilt aggregate tables in %s", path)
	return nil
}

// statements returns, in order, every DDL/DML statement the rebuild issues:
// source-table indexes, then a DROP + CREATE ... AS SELECT + index triple per
// aggregate table. All run inside one transaction so a failure midway never
// leaves a half-rebuilt set of tables.
func statements() []string {
	var out []string
	out = append(out, indexStatements()...)
	out = append(out, topAgentsStatements()...)
	out = append(out, monthlyStatsStatements()...)
	out = append(out, monthlyStatsGroupedStatements()...)
	out = append(out, singleDimensionStatsStatements("property_type_stats", "propertyType", "property_type")...)
	out = append(out, singleDimensionStatsStatements("transaction_type_stats", "transactionType", "transaction_type")...)
	out = append(out, townStatsStatements()...)
	return out
}

// indexStatements builds the single-column indexes plus the two composite
// indexes agent roll-ups and time-series queries rely on.
func indexStatements() []string {
	cols := []string{
		"transaction_date", "property_type", "transaction_type",
		"salesperson_reg_num", "town", "district", "represented",
	}
	stmts := make([]string, 0, len(cols)+2)
	for _, c := range cols {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_transactions_%s ON transactions(%s)", c, c))
	}
	stmts = append(stmts,
		`CREATE INDEX IF NOT EXISTS idx_transactions_agent_rollup
			ON transactions(salesperson_reg_num, property_type, transaction_type, represented, town)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_timeseries
			ON transactions(transaction_date, property_type, transaction_type)`,
	)
	return stmts
}

func topAgentsStatements() []string {
	return []string{
		"DROP TABLE IF EXISTS top_agents",
		fmt.Sprintf(`
			CREATE TABLE top_agents AS
			SELECT salesperson_reg_num AS regNum,
			       MAX(salesperson_name) AS name,
			       COUNT(*) AS totalTransactions,
			       MAX(%s) AS lastTransaction
			FROM transactions
			WHERE salesperson_reg_num != '' AND salesperson_reg_num != '%s'
			GROUP BY regNum
			ORDER BY totalTransactions DESC, regNum ASC`,
			normalizedPeriodSQL("transaction_date"), model.Sentinel,
		),
		"CREATE INDEX IF NOT EXISTS idx_top_agents_total ON top_agents(totalTransactions DESC)",
	}
}

func monthlyStatsStatements() []string {
	return []string{
		"DROP TABLE IF EXISTS monthly_stats",
		fmt.Sprintf(`
			CREATE TABLE monthly_stats AS
			SELECT %s AS period, property_type, transaction_type, COUNT(*) AS count
			FROM transactions
			WHERE %s IS NOT NULL
			GROUP BY period, property_type, transaction_type`,
			normalizedPeriodSQL("transaction_date"), normalizedPeriodSQL("transaction_date"),
		),
		"CREATE INDEX IF NOT EXISTS idx_monthly_stats_period ON monthly_stats(period)",
	}
}

// monthlyStatsGroupedStatements builds the supplemental (period,
// group_column, group_value, count) table: one UNION ALL branch per
// allow-listed groupBy column, so any of them can be served from a single
// table without touching transactions. group_value is Unknown-projected
// with the same caseUnknownSQL expression AGG's slow path (TimeSeries)
// applies at request time, so a request forced onto the slow path (e.g.
// filters={}) sees the same grouped buckets the fast path precomputed.
func monthlyStatsGroupedStatements() []string {
	groupCols := []string{"property_type", "transaction_type", "represented", "town", "district"}
	branches := make([]string, 0, len(groupCols))
	for _, col := range groupCols {
		branches = append(branches, fmt.Sprintf(`
			SELECT %s AS period, '%s' AS group_column, %s AS group_value, COUNT(*) AS count
			FROM transactions
			WHERE %s IS NOT NULL
			GROUP BY period, group_value`,
			normalizedPeriodSQL("transaction_date"), col, caseUnknownSQL(col), normalizedPeriodSQL("transaction_date"),
		))
	}

	return []string{
		"DROP TABLE IF EXISTS monthly_stats_grouped",
		"CREATE TABLE monthly_stats_grouped AS " + joinUnionAll(branches),
		"CREATE INDEX IF NOT EXISTS idx_monthly_stats_grouped_lookup ON monthly_stats_grouped(group_column, period)",
	}
}

// caseUnknownSQL mirrors internal/agg's caseUnknown: null/empty/sentinel
// values project to "Unknown" rather than appearing as their raw form or
// being dropped. Duplicated here for the same reason normalizedPeriodSQL
// is — this tool owns the aggregate tables' on-disk shape and shouldn't
// import the request-serving package to get it.
func caseUnknownSQL(col string) string {
	return fmt.Sprintf("CASE WHEN %s IS NULL OR %s = '' OR %s = '%s' THEN 'Unknown' ELSE %s END",
		col, col, col, model.Sentinel, col)
}

func singleDimensionStatsStatements(table, valueCol, sourceCol string) []string {
	return []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", table),
		fmt.Sprintf(`
			CREATE TABLE %s AS
			SELECT %s AS %s,
			       COUNT(*) AS count,
			       ROUND(100.0 * COUNT(*) / (SELECT COUNT(*) FROM transactions), 2) AS percentage
			FROM transactions
			GROUP BY %s
			ORDER BY count DESC`,
			table, sourceCol, valueCol, sourceCol,
		),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_count ON %s(count DESC)", table, table),
	}
}

// townStatsStatements excludes sentinel-town rows both from the rows
// returned and from the percentage denominator.
func townStatsStatements() []string {
	return []string{
		"DROP TABLE IF EXISTS town_stats",
		fmt.Sprintf(`
			CREATE TABLE town_stats AS
			SELECT town, COUNT(*) AS count,
			       ROUND(100.0 * COUNT(*) / (SELECT COUNT(*) FROM transactions WHERE town != '%s'), 2) AS percentage
			FROM transactions
			WHERE town != '%s'
			GROUP BY town
			ORDER BY count DESC`,
			model.Sentinel, model.Sentinel,
		),
		"CREATE INDEX IF NOT EXISTS idx_town_stats_count ON town_stats(count DESC)",
	}
}

// normalizedPeriodSQL mirrors internal/agg's mapping from a MMM-YYYY
// transaction_date to its sortable YYYY-MM form; duplicated here rather
// than imported since AGG's version lives in an internal package this
// build-time tool deliberately doesn't depend on for its storage semantics.
func normalizedPeriodSQL(col string) string {
	return fmt.Sprintf(`(CASE substr(UPPER(%s),1,3)
		WHEN 'JAN' THEN '01' WHEN 'FEB' THEN '02' WHEN 'MAR' THEN '03' WHEN 'APR' THEN '04'
		WHEN 'MAY' THEN '05' WHEN 'JUN' THEN '06' WHEN 'JUL' THEN '07' WHEN 'AUG' THEN '08'
		WHEN 'SEP' THEN '09' WHEN 'OCT' THEN '10' WHEN 'NOV' THEN '11' WHEN 'DEC' THEN '12'
		ELSE NULL END) || '-' || substr(%s, 5, 4)`, col, col)
}

func joinUnionAll(branches []string) string {
	out := branches[0]
	for _, b := range branches[1:] {
		out += " UNION ALL " + b
	}
	return out
}

func firstLine(stmt string) string {
	for i, r := range stmt {
		if r == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}
