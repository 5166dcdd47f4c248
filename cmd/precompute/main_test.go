package main

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func seedTransactions(t *testing.T, dir string) {
	t.Helper()
	path := filepath.Join(dir, dbFileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open seed db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE transactions (
		id INTEGER PRIMARY KEY,
		salesperson_name TEXT,
		salesperson_reg_num TEXT,
		transaction_date TEXT,
		property_type TEXT,
		transaction_type TEXT,
		represented TEXT,
		town TEXT,
		district TEXT,
		general_location TEXT
	)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	rows := [][]any{
		{1, "Alice", "A", "JAN-2024", "HDB", "RESALE", "BUYER", "ANG MO KIO", "D01"},
		{2, "Alice", "A", "FEB-2024", "HDB", "RESALE", "SELLER", "ANG MO KIO", "D01"},
		{3, "Bob", "B", "JAN-2024", "CONDO", "NEW SALE", "BUYER", "-", "D02"},
	}
	for _, r := range rows {
		if _, err := db.Exec(
			`INSERT INTO transactions (id, salesperson_name, salesperson_reg_num, transaction_date, property_type, transaction_type, represented, town, district)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r...,
		); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
}

func TestRun_RebuildsAggregateTables(t *testing.T) {
	dir := t.TempDir()
	seedTransactions(t, dir)

	if err := run(dir); err != nil {
		t.Fatalf("run: %v", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, dbFileName))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM top_agents").Scan(&total); err != nil {
		t.Fatalf("query top_agents: %v", err)
	}
	if total != 2 {
		t.Errorf("top_agents rows = %d, want 2 distinct agents", total)
	}

	var aliceTotal int
	if err := db.QueryRowContext(ctx, "SELECT totalTransactions FROM top_agents WHERE regNum = 'A'").Scan(&aliceTotal); err != nil {
		t.Fatalf("query alice: %v", err)
	}
	if aliceTotal != 2 {
		t.Errorf("Alice totalTransactions = %d, want 2", aliceTotal)
	}

	var monthlyRows int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM monthly_stats").Scan(&monthlyRows); err != nil {
		t.Fatalf("query monthly_stats: %v", err)
	}
	if monthlyRows == 0 {
		t.Error("monthly_stats is empty")
	}

	var groupedRows int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM monthly_stats_grouped WHERE group_column = 'property_type'").Scan(&groupedRows); err != nil {
		t.Fatalf("query monthly_stats_grouped: %v", err)
	}
	if groupedRows == 0 {
		t.Error("monthly_stats_grouped has no property_type rows")
	}

	var townCount int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM town_stats").Scan(&townCount); err != nil {
		t.Fatalf("query town_stats: %v", err)
	}
	if townCount != 1 {
		t.Errorf("town_stats rows = %d, want 1 (sentinel town excluded)", townCount)
	}

	var pct float64
	if err := db.QueryRowContext(ctx, "SELECT percentage FROM property_type_stats WHERE propertyType = 'HDB'").Scan(&pct); err != nil {
		t.Fatalf("query property_type_stats: %v", err)
	}
	if pct < 66.0 || pct > 67.0 {
		t.Errorf("HDB percentage = %v, want ~66.67", pct)
	}
}

func TestRun_GroupedMonthlyStatsProjectsSentinelToUnknown(t *testing.T) {
	dir := t.TempDir()
	seedTransactions(t, dir) // row 3 carries town='-'

	if err := run(dir); err != nil {
		t.Fatalf("run: %v", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, dbFileName))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	var rawSentinelRows int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM monthly_stats_grouped WHERE group_column = 'town' AND group_value = '-'").Scan(&rawSentinelRows); err != nil {
		t.Fatalf("query raw sentinel rows: %v", err)
	}
	if rawSentinelRows != 0 {
		t.Errorf("monthly_stats_grouped kept raw sentinel town value in %d rows, want 0 (must project to Unknown)", rawSentinelRows)
	}

	var unknownCount int
	if err := db.QueryRowContext(ctx,
		"SELECT count FROM monthly_stats_grouped WHERE group_column = 'town' AND group_value = 'Unknown'").Scan(&unknownCount); err != nil {
		t.Fatalf("query Unknown-projected rows: %v", err)
	}
	if unknownCount != 1 {
		t.Errorf("Unknown town count = %d, want 1 (the sentinel-town row)", unknownCount)
	}
}

func TestRun_IdempotentOnRerun(t *testing.T) {
	dir := t.TempDir()
	seedTransactions(t, dir)

	if err := run(dir); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := run(dir); err != nil {
		t.Fatalf("second run: %v", err)
	}
}
